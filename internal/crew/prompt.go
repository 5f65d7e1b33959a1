package crew

import (
	"fmt"
	"strings"
)

const finalAnswerNudge = "You have reached the maximum number of tool calls. Do not call any more tools; write your complete final answer now."

type contextOutput struct {
	Task   string
	Output string
}

func systemPrompt(agent AgentSpec, tools []Tool) string {
	var parts []string
	parts = append(parts, "# ROLE", fmt.Sprintf("You are a %s.", agent.Role), "")
	parts = append(parts, "# GOAL", agent.Goal, "")
	if backstory := strings.TrimSpace(agent.Backstory); backstory != "" {
		parts = append(parts, "# BACKSTORY", backstory, "")
	}
	if len(tools) > 0 {
		parts = append(parts, "# TOOLS")
		for _, tool := range tools {
			parts = append(parts, fmt.Sprintf("- %s: %s", tool.Name(), tool.Description()))
		}
		parts = append(parts, "- Use the tools when they help you ground your answer in current evidence.", "")
	}
	parts = append(parts,
		"# OUTPUT INSTRUCTIONS",
		"- Write your answer in Markdown.",
		"- Be specific and practical; give quantities where they matter.",
		"- Your answer is passed on verbatim, so do not address other team members.",
	)
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

func taskPrompt(task Task, deps []contextOutput) string {
	var parts []string
	parts = append(parts, "# TASK", task.Description, "")
	if task.ExpectedOutput != "" {
		parts = append(parts, "# EXPECTED OUTPUT", task.ExpectedOutput, "")
	}
	if len(deps) > 0 {
		parts = append(parts, "# CONTEXT FROM PREVIOUS TASKS")
		for _, dep := range deps {
			parts = append(parts, fmt.Sprintf("## %s", dep.Task), dep.Output, "")
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}
