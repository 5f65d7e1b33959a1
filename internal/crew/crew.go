// Package crew runs a fixed chain of LLM-backed agents. Each task is handed
// to its agent together with the output of the earlier tasks it depends on;
// the last task's output is the crew's result.
package crew

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/BerylCAtieno/nutrition-advisor-agent/internal/llm"
)

const defaultMaxIterations = 5

var (
	ErrEmptyOutput     = errors.New("crew: agent returned no output")
	ErrIterationLimit  = errors.New("crew: agent kept calling tools after the iteration limit")
	ErrToolUnavailable = errors.New("crew: tool is not registered")
)

// Tool is a function an agent may ask the model runtime to call.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any
	Call(ctx context.Context, arguments string) (string, error)
}

// TaskOutput is the result of one task.
type TaskOutput struct {
	Name      string
	Agent     string
	Output    string
	ToolCalls int
	Usage     llm.Usage
}

// Result of a crew run.
type Result struct {
	Output string
	Tasks  []TaskOutput
	Usage  llm.Usage
}

type Option func(*Crew)

func WithTools(tools ...Tool) Option {
	return func(c *Crew) {
		for _, tool := range tools {
			c.tools[tool.Name()] = tool
		}
	}
}

// WithMaxIterations caps the number of tool-calling rounds per task.
func WithMaxIterations(n int) Option {
	return func(c *Crew) {
		if n > 0 {
			c.maxIterations = n
		}
	}
}

func WithTaskStartHook(fn func(context.Context, Task)) Option {
	return func(c *Crew) {
		c.startHook = fn
	}
}

func WithTaskEndHook(fn func(context.Context, Task, TaskOutput)) Option {
	return func(c *Crew) {
		c.endHook = fn
	}
}

// Crew is a rendered definition bound to a model and its tools.
type Crew struct {
	tasks         []Task
	client        llm.Client
	tools         map[string]Tool
	maxIterations int
	startHook     func(context.Context, Task)
	endHook       func(context.Context, Task, TaskOutput)
}

// New renders def against fields and checks that every tool the agents
// reference has been supplied.
func New(def Definition, fields map[string]string, client llm.Client, opts ...Option) (*Crew, error) {
	if client == nil {
		return nil, errors.New("crew: llm client is required")
	}
	tasks, err := def.Render(fields)
	if err != nil {
		return nil, err
	}
	c := &Crew{
		tasks:         tasks,
		client:        client,
		tools:         map[string]Tool{},
		maxIterations: defaultMaxIterations,
	}
	if def.MaxIterations > 0 {
		c.maxIterations = def.MaxIterations
	}
	for _, opt := range opts {
		opt(c)
	}
	for _, name := range def.ToolNames() {
		if _, ok := c.tools[name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrToolUnavailable, name)
		}
	}
	return c, nil
}

// Tasks returns the rendered tasks in execution order.
func (c *Crew) Tasks() []Task {
	return append([]Task(nil), c.tasks...)
}

// Kickoff runs every task in order and returns the final task's output. The
// first failing task aborts the run.
func (c *Crew) Kickoff(ctx context.Context) (*Result, error) {
	outputs := make(map[string]string, len(c.tasks))
	result := &Result{Tasks: make([]TaskOutput, 0, len(c.tasks))}

	for _, task := range c.tasks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if c.startHook != nil {
			c.startHook(ctx, task)
		}

		contextOutputs := make([]contextOutput, 0, len(task.Context))
		for _, dep := range task.Context {
			contextOutputs = append(contextOutputs, contextOutput{Task: dep, Output: outputs[dep]})
		}

		out, err := c.runTask(ctx, task, contextOutputs)
		if err != nil {
			return nil, fmt.Errorf("task %s: %w", task.Name, err)
		}
		outputs[task.Name] = out.Output
		result.Tasks = append(result.Tasks, out)
		result.Usage.Add(out.Usage)
		result.Output = out.Output

		if c.endHook != nil {
			c.endHook(ctx, task, out)
		}
	}
	return result, nil
}

func (c *Crew) runTask(ctx context.Context, task Task, deps []contextOutput) (TaskOutput, error) {
	out := TaskOutput{Name: task.Name, Agent: task.Agent.Role}

	agentTools := make([]Tool, 0, len(task.Agent.Tools))
	specs := make([]llm.ToolSpec, 0, len(task.Agent.Tools))
	for _, name := range task.Agent.Tools {
		tool := c.tools[name]
		agentTools = append(agentTools, tool)
		specs = append(specs, llm.ToolSpec{
			Name:        tool.Name(),
			Description: tool.Description(),
			Parameters:  tool.Parameters(),
		})
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt(task.Agent, agentTools)},
		{Role: llm.RoleUser, Content: taskPrompt(task, deps)},
	}

	for iteration := 0; ; iteration++ {
		// Once the iteration limit is reached the model gets no tools and
		// must answer.
		final := len(specs) > 0 && iteration >= c.maxIterations
		req := llm.Request{
			Messages:    messages,
			Temperature: task.Agent.Temperature,
		}
		if !final {
			req.Tools = specs
		}
		resp, err := c.client.Chat(ctx, req)
		if err != nil {
			return out, err
		}
		out.Usage.Add(resp.Usage)

		if final || len(resp.ToolCalls) == 0 || len(req.Tools) == 0 {
			content := strings.TrimSpace(resp.Content)
			if content == "" {
				if final {
					return out, ErrIterationLimit
				}
				return out, ErrEmptyOutput
			}
			out.Output = content
			return out, nil
		}

		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for _, call := range resp.ToolCalls {
			out.ToolCalls++
			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				ToolCallID: call.ID,
				Name:       call.Name,
				Content:    c.callTool(ctx, task, call),
			})
		}
		if iteration+1 == c.maxIterations {
			messages = append(messages, llm.Message{Role: llm.RoleUser, Content: finalAnswerNudge})
		}
	}
}

// callTool executes a tool call and returns what the model should see. Tool
// failures are reported back to the model rather than aborting the task.
func (c *Crew) callTool(ctx context.Context, task Task, call llm.ToolCall) string {
	allowed := false
	for _, name := range task.Agent.Tools {
		if name == call.Name {
			allowed = true
			break
		}
	}
	tool, ok := c.tools[call.Name]
	if !allowed || !ok {
		log.Printf("WARN: task %s requested unknown tool %q", task.Name, call.Name)
		return fmt.Sprintf("error: unknown tool %q", call.Name)
	}
	log.Printf("STATE: task %s calling %s %s", task.Name, call.Name, call.Arguments)
	result, err := tool.Call(ctx, call.Arguments)
	if err != nil {
		log.Printf("WARN: tool %s failed for task %s: %v", call.Name, task.Name, err)
		return "error: " + err.Error()
	}
	return result
}
