package models

import "time"

const (
	PlanFilename  = "my_nutrition_plan.md"
	PlanMediaType = "text/markdown"
)

// TaskSummary is the output of one crew task, kept alongside the final plan
// so callers can show the intermediate research.
type TaskSummary struct {
	Name   string `json:"name"`
	Agent  string `json:"agent"`
	Output string `json:"output"`
}

// TokenUsage is the model token spend of a plan.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Plan is a generated nutrition plan. Markdown is the diet planner's output
// exactly as returned.
type Plan struct {
	ID        string        `json:"id"`
	Markdown  string        `json:"markdown"`
	Tasks     []TaskSummary `json:"tasks"`
	Profile   UserProfile   `json:"profile"`
	Usage     TokenUsage    `json:"usage"`
	CreatedAt time.Time     `json:"created_at"`
}

// Filename is the name offered when the plan is downloaded.
func (p *Plan) Filename() string {
	return PlanFilename
}
