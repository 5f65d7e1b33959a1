package llm

import (
	"context"
	"testing"
	"time"

	"github.com/google/generative-ai-go/genai"
)

func TestToGeminiContentsMergesToolResults(t *testing.T) {
	system, history, err := toGeminiContents([]Message{
		{Role: RoleSystem, Content: "You are a dietitian."},
		{Role: RoleUser, Content: "Plan my week."},
		{Role: RoleAssistant, ToolCalls: []ToolCall{
			{ID: "a", Name: "search_internet", Arguments: `{"query":"iron"}`},
			{ID: "b", Name: "search_internet", Arguments: `{"query":"b12"}`},
		}},
		{Role: RoleTool, ToolCallID: "a", Name: "search_internet", Content: "iron result"},
		{Role: RoleTool, ToolCallID: "b", Name: "search_internet", Content: "b12 result"},
	})
	if err != nil {
		t.Fatalf("toGeminiContents: %v", err)
	}
	if system != "You are a dietitian." {
		t.Fatalf("unexpected system instruction %q", system)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(history))
	}
	if history[1].Role != "model" || len(history[1].Parts) != 2 {
		t.Fatalf("expected model turn with two function calls, got %+v", history[1])
	}
	last := history[2]
	if last.Role != "user" || len(last.Parts) != 2 {
		t.Fatalf("expected merged function responses, got %+v", last)
	}
	resp, ok := last.Parts[1].(genai.FunctionResponse)
	if !ok || resp.Name != "search_internet" || resp.Response["result"] != "b12 result" {
		t.Fatalf("unexpected function response %+v", last.Parts[1])
	}
}

func TestToGeminiContentsRequiresTrailingUserTurn(t *testing.T) {
	_, _, err := toGeminiContents([]Message{
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello"},
	})
	if err == nil {
		t.Fatalf("expected error when the conversation ends with the model")
	}
}

func TestSchemaFromJSON(t *testing.T) {
	schema := schemaFromJSON(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{"type": "string", "description": "search terms"},
		},
		"required": []string{"query"},
	})
	if schema.Type != genai.TypeObject {
		t.Fatalf("expected object schema, got %v", schema.Type)
	}
	query := schema.Properties["query"]
	if query == nil || query.Type != genai.TypeString || query.Description != "search terms" {
		t.Fatalf("unexpected query schema %+v", query)
	}
	if len(schema.Required) != 1 || schema.Required[0] != "query" {
		t.Fatalf("unexpected required list %v", schema.Required)
	}
}

func TestGeminiRequestContextAppliesTimeout(t *testing.T) {
	g := &GeminiClient{timeout: 2 * time.Minute}
	ctx, cancel := g.requestContext(context.Background())
	defer cancel()

	deadline, ok := ctx.Deadline()
	if !ok {
		t.Fatalf("expected a deadline from the configured timeout")
	}
	if left := time.Until(deadline); left <= time.Minute || left > 2*time.Minute {
		t.Fatalf("unexpected deadline %s from now", left)
	}

	unbounded, cancel2 := (&GeminiClient{}).requestContext(context.Background())
	defer cancel2()
	if _, ok := unbounded.Deadline(); ok {
		t.Fatalf("no deadline expected without a timeout")
	}
}
