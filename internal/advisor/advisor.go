// Package advisor turns a submitted health profile into a nutrition plan by
// running the nutrition crew against a hosted model with web search.
package advisor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/BerylCAtieno/nutrition-advisor-agent/internal/crew"
	"github.com/BerylCAtieno/nutrition-advisor-agent/internal/llm"
	"github.com/BerylCAtieno/nutrition-advisor-agent/internal/models"
	"github.com/BerylCAtieno/nutrition-advisor-agent/internal/search"
	"github.com/google/uuid"
)

var ErrMissingCredentials = errors.New("advisor: both the LLM and search API keys are required")

// Credentials are the two secrets a run needs. They are held for the
// duration of one request only.
type Credentials struct {
	LLMKey    string
	SearchKey string
}

// Complete reports whether both keys are present.
func (c Credentials) Complete() bool {
	return strings.TrimSpace(c.LLMKey) != "" && strings.TrimSpace(c.SearchKey) != ""
}

// Or fills blank keys from fallback. Keys typed in by the user win over the
// ones configured in the environment.
func (c Credentials) Or(fallback Credentials) Credentials {
	out := Credentials{LLMKey: strings.TrimSpace(c.LLMKey), SearchKey: strings.TrimSpace(c.SearchKey)}
	if out.LLMKey == "" {
		out.LLMKey = strings.TrimSpace(fallback.LLMKey)
	}
	if out.SearchKey == "" {
		out.SearchKey = strings.TrimSpace(fallback.SearchKey)
	}
	return out
}

// LLMFactory builds a model client for one run.
type LLMFactory func(ctx context.Context, apiKey string) (llm.Client, error)

// ToolFactory builds the web search tool for one run.
type ToolFactory func(apiKey string) (crew.Tool, error)

// NewLLMFactory binds a provider and its options.
func NewLLMFactory(provider string, opts llm.Options) LLMFactory {
	return func(ctx context.Context, apiKey string) (llm.Client, error) {
		return llm.New(ctx, provider, apiKey, opts)
	}
}

// NewSearchFactory builds Serper-backed search tools.
func NewSearchFactory(opts ...search.Option) ToolFactory {
	return func(apiKey string) (crew.Tool, error) {
		client, err := search.NewSerperClient(apiKey, opts...)
		if err != nil {
			return nil, err
		}
		return search.NewTool(client), nil
	}
}

type Option func(*Advisor)

// WithMaxIterations overrides the definition's tool-calling limit.
func WithMaxIterations(n int) Option {
	return func(a *Advisor) {
		a.maxIterations = n
	}
}

func WithClock(now func() time.Time) Option {
	return func(a *Advisor) {
		a.now = now
	}
}

type Advisor struct {
	definition    crew.Definition
	newLLM        LLMFactory
	newSearch     ToolFactory
	maxIterations int
	now           func() time.Time
}

func New(def crew.Definition, newLLM LLMFactory, newSearch ToolFactory, opts ...Option) *Advisor {
	a := &Advisor{
		definition: def,
		newLLM:     newLLM,
		newSearch:  newSearch,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// GeneratePlan runs the crew for profile. Missing credentials are rejected
// before any external client is created.
func (a *Advisor) GeneratePlan(ctx context.Context, profile models.UserProfile, creds Credentials) (*models.Plan, error) {
	if !creds.Complete() {
		log.Printf("WARN: plan requested without credentials")
		return nil, ErrMissingCredentials
	}

	profile = profile.Normalize()
	if err := profile.Validate(); err != nil {
		return nil, err
	}

	client, err := a.newLLM(ctx, creds.LLMKey)
	if err != nil {
		return nil, fmt.Errorf("create llm client: %w", err)
	}
	defer client.Close()

	tool, err := a.newSearch(creds.SearchKey)
	if err != nil {
		return nil, fmt.Errorf("create search tool: %w", err)
	}

	opts := []crew.Option{
		crew.WithTools(tool),
		crew.WithTaskStartHook(func(_ context.Context, task crew.Task) {
			log.Printf("STATE: %s started (%s)", task.Name, task.Agent.Role)
		}),
		crew.WithTaskEndHook(func(_ context.Context, task crew.Task, out crew.TaskOutput) {
			log.Printf("STATE: %s finished after %d tool call(s), %d chars", task.Name, out.ToolCalls, len(out.Output))
		}),
	}
	if a.maxIterations > 0 {
		opts = append(opts, crew.WithMaxIterations(a.maxIterations))
	}

	c, err := crew.New(a.definition, profile.Fields(), client, opts...)
	if err != nil {
		return nil, fmt.Errorf("build crew: %w", err)
	}

	started := a.now()
	result, err := c.Kickoff(ctx)
	if err != nil {
		log.Printf("ERROR: crew run failed after %s: %v", a.now().Sub(started).Round(time.Millisecond), err)
		return nil, fmt.Errorf("generate plan: %w", err)
	}
	log.Printf("STATE: plan generated in %s (%d input / %d output tokens)",
		a.now().Sub(started).Round(time.Millisecond), result.Usage.InputTokens, result.Usage.OutputTokens)

	plan := &models.Plan{
		ID:        uuid.NewString(),
		Markdown:  result.Output,
		Profile:   profile,
		CreatedAt: a.now().UTC(),
		Usage: models.TokenUsage{
			InputTokens:  result.Usage.InputTokens,
			OutputTokens: result.Usage.OutputTokens,
		},
	}
	for _, task := range result.Tasks {
		plan.Tasks = append(plan.Tasks, models.TaskSummary{
			Name:   task.Name,
			Agent:  task.Agent,
			Output: task.Output,
		})
	}
	return plan, nil
}

// UserMessage flattens an error from GeneratePlan into the text shown to the
// user. Validation and credential problems are actionable and pass through;
// everything else becomes a generic message.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var vErr *models.ValidationError
	switch {
	case errors.Is(err, ErrMissingCredentials):
		return "Please enter both API keys."
	case errors.As(err, &vErr):
		return vErr.Message
	case errors.Is(err, context.DeadlineExceeded):
		return "Generating your plan took too long. Please try again."
	default:
		return "An error occurred while generating your nutrition plan. Please try again."
	}
}
