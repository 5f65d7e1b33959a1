// Package llm is the boundary to the hosted language models that do the
// actual reasoning for the nutrition crew. Each provider adapts its SDK to a
// small chat interface with optional tool calling.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Role of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Supported providers.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

var (
	ErrEmptyResponse       = errors.New("llm: no content generated")
	ErrUnsupportedProvider = errors.New("llm: unsupported provider")
)

// Message is one turn of a conversation. Tool results carry the ID and name
// of the call they answer.
type Message struct {
	Role       Role
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
	Name       string
}

// ToolCall is a function invocation requested by the model. Arguments is the
// raw JSON object produced by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// ToolSpec describes a callable tool. Parameters is a JSON schema object.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

type Request struct {
	Messages    []Message
	Tools       []ToolSpec
	Temperature *float32
}

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Add accumulates another usage report into u.
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}

type Response struct {
	Model     string
	Content   string
	ToolCalls []ToolCall
	Usage     Usage
}

// Client sends a chat request to a hosted model.
type Client interface {
	Chat(ctx context.Context, req Request) (*Response, error)
	Close() error
}

// Options configures a provider client.
type Options struct {
	Model       string
	Temperature float32
	BaseURL     string
	Timeout     time.Duration
	MaxRetries  int
	RetryDelay  time.Duration
}

// DefaultModel returns the model used when none is configured.
func DefaultModel(provider string) string {
	switch provider {
	case ProviderGemini:
		return "gemini-2.5-flash-lite"
	default:
		return "gpt-4-turbo-preview"
	}
}

// New builds a client for the named provider, wrapped with retries when
// opts.MaxRetries is positive.
func New(ctx context.Context, provider, apiKey string, opts Options) (Client, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		provider = ProviderOpenAI
	}
	if opts.Model == "" {
		opts.Model = DefaultModel(provider)
	}

	var (
		client Client
		err    error
	)
	switch provider {
	case ProviderOpenAI:
		client = NewOpenAIClient(apiKey, opts)
	case ProviderGemini:
		client, err = NewGeminiClient(ctx, apiKey, opts)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, provider)
	}
	if err != nil {
		return nil, err
	}
	return WithRetries(client, opts.MaxRetries, opts.RetryDelay), nil
}
