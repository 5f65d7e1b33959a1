package search

import (
	"context"
	"encoding/json"
	"fmt"
)

// ToolName is the name the agents use to request a web search.
const ToolName = "search_internet"

// Tool exposes a SerperClient to the crew as a callable function.
type Tool struct {
	client *SerperClient
}

func NewTool(client *SerperClient) *Tool {
	return &Tool{client: client}
}

func (t *Tool) Name() string {
	return ToolName
}

func (t *Tool) Description() string {
	return "Search the internet for up-to-date, evidence-based information. Use it to look up nutrition research, dietary guidelines and food-medication interactions."
}

func (t *Tool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "The search query to look up.",
			},
		},
		"required": []string{"query"},
	}
}

// Call decodes the model's arguments and returns the formatted results.
func (t *Tool) Call(ctx context.Context, arguments string) (string, error) {
	var args struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return "", fmt.Errorf("search: invalid arguments: %w", err)
	}
	resp, err := t.client.Search(ctx, args.Query)
	if err != nil {
		return "", err
	}
	return resp.Markdown(args.Query), nil
}
