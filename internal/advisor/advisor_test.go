package advisor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/BerylCAtieno/nutrition-advisor-agent/internal/crew"
	"github.com/BerylCAtieno/nutrition-advisor-agent/internal/llm"
	"github.com/BerylCAtieno/nutrition-advisor-agent/internal/models"
)

type fakeLLM struct {
	calls  int
	closed bool
	prompt []string
	err    error
}

func (f *fakeLLM) Chat(_ context.Context, req llm.Request) (*llm.Response, error) {
	f.calls++
	for _, msg := range req.Messages {
		if msg.Role == llm.RoleUser {
			f.prompt = append(f.prompt, msg.Content)
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Response{
		Content: fmt.Sprintf("# Output %d", f.calls),
		Usage:   llm.Usage{InputTokens: 100, OutputTokens: 20},
	}, nil
}

func (f *fakeLLM) Close() error {
	f.closed = true
	return nil
}

type fakeTool struct{}

func (fakeTool) Name() string                                 { return "search_internet" }
func (fakeTool) Description() string                          { return "search" }
func (fakeTool) Parameters() map[string]any                   { return map[string]any{"type": "object"} }
func (fakeTool) Call(context.Context, string) (string, error) { return "", nil }

type factories struct {
	llm        *fakeLLM
	llmBuilt   int
	toolsBuilt int
	llmKey     string
}

func (f *factories) advisor(t *testing.T, opts ...Option) *Advisor {
	t.Helper()
	def, err := crew.DefaultDefinition()
	if err != nil {
		t.Fatalf("DefaultDefinition: %v", err)
	}
	if f.llm == nil {
		f.llm = &fakeLLM{}
	}
	newLLM := func(_ context.Context, key string) (llm.Client, error) {
		f.llmBuilt++
		f.llmKey = key
		return f.llm, nil
	}
	newTool := func(string) (crew.Tool, error) {
		f.toolsBuilt++
		return fakeTool{}, nil
	}
	return New(def, newLLM, newTool, opts...)
}

func testProfile() models.UserProfile {
	return models.UserProfile{
		Age:               52,
		Gender:            "Male",
		Height:            "180 cm",
		Weight:            "95 kg",
		ActivityLevel:     "Sedentary",
		Goals:             []string{"Weight Loss", "Disease Management"},
		MedicalConditions: "Type 2 diabetes",
		CookingAbility:    "Basic/Quick Meals",
		Budget:            "Budget Conscious",
	}
}

func TestGeneratePlanMissingCredentialsMakesNoExternalCall(t *testing.T) {
	tests := []struct {
		name  string
		creds Credentials
	}{
		{"both missing", Credentials{}},
		{"llm missing", Credentials{SearchKey: "serper"}},
		{"search missing", Credentials{LLMKey: "sk"}},
		{"blank", Credentials{LLMKey: "  ", SearchKey: "\t"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := &factories{}
			a := f.advisor(t)

			plan, err := a.GeneratePlan(context.Background(), testProfile(), tc.creds)
			if !errors.Is(err, ErrMissingCredentials) || plan != nil {
				t.Fatalf("expected ErrMissingCredentials, got %v", err)
			}
			if f.llmBuilt != 0 || f.toolsBuilt != 0 || f.llm.calls != 0 {
				t.Fatalf("no client should be built: llm=%d tools=%d calls=%d", f.llmBuilt, f.toolsBuilt, f.llm.calls)
			}
		})
	}
}

func TestGeneratePlanRejectsInvalidProfileBeforeCallingOut(t *testing.T) {
	f := &factories{}
	a := f.advisor(t)
	profile := testProfile()
	profile.Goals = nil

	_, err := a.GeneratePlan(context.Background(), profile, Credentials{LLMKey: "sk", SearchKey: "serper"})
	var vErr *models.ValidationError
	if !errors.As(err, &vErr) || vErr.Field != models.FieldGoals {
		t.Fatalf("expected goals validation error, got %v", err)
	}
	if f.llmBuilt != 0 {
		t.Fatalf("llm client should not be built for an invalid profile")
	}
}

func TestGeneratePlanReturnsFinalTaskOutput(t *testing.T) {
	f := &factories{}
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	a := f.advisor(t, WithClock(func() time.Time { return fixed }))

	plan, err := a.GeneratePlan(context.Background(), testProfile(), Credentials{LLMKey: " sk ", SearchKey: "serper"})
	if err != nil {
		t.Fatalf("GeneratePlan: %v", err)
	}
	if plan.Markdown != "# Output 3" {
		t.Fatalf("expected diet plan output, got %q", plan.Markdown)
	}
	if plan.ID == "" || !plan.CreatedAt.Equal(fixed) {
		t.Fatalf("unexpected plan metadata %+v", plan)
	}
	if len(plan.Tasks) != 3 || plan.Tasks[1].Name != "medical_analysis" {
		t.Fatalf("unexpected task summaries %+v", plan.Tasks)
	}
	if plan.Usage.InputTokens != 300 || plan.Usage.OutputTokens != 60 {
		t.Fatalf("unexpected usage %+v", plan.Usage)
	}
	if plan.Profile.Allergies != models.DefaultNoneReported {
		t.Fatalf("plan should carry the normalized profile, got allergies %q", plan.Profile.Allergies)
	}
	if plan.Filename() != "my_nutrition_plan.md" {
		t.Fatalf("unexpected filename %q", plan.Filename())
	}
	if !f.llm.closed {
		t.Fatalf("llm client should be closed after the run")
	}
	if f.llmKey != " sk " {
		t.Fatalf("factory should receive the caller's key, got %q", f.llmKey)
	}
	if !strings.Contains(f.llm.prompt[1], "Type 2 diabetes") || !strings.Contains(f.llm.prompt[1], "- Allergies/Intolerances: None reported") {
		t.Fatalf("medical prompt should carry profile values:\n%s", f.llm.prompt[1])
	}
}

func TestGeneratePlanWrapsRunFailures(t *testing.T) {
	f := &factories{llm: &fakeLLM{err: errors.New("rate limited")}}
	a := f.advisor(t)

	_, err := a.GeneratePlan(context.Background(), testProfile(), Credentials{LLMKey: "sk", SearchKey: "serper"})
	if err == nil || !strings.Contains(err.Error(), "rate limited") {
		t.Fatalf("expected wrapped run error, got %v", err)
	}
	if got := UserMessage(err); strings.Contains(got, "rate limited") {
		t.Fatalf("user message should not leak internals: %q", got)
	}
	if f.llm.calls != 1 {
		t.Fatalf("run should stop at the first failure, got %d calls", f.llm.calls)
	}
}

func TestCredentialsOrPrefersUserInput(t *testing.T) {
	env := Credentials{LLMKey: "env-llm", SearchKey: "env-search"}

	got := Credentials{LLMKey: " user-llm "}.Or(env)
	if got.LLMKey != "user-llm" || got.SearchKey != "env-search" {
		t.Fatalf("unexpected merge %+v", got)
	}
	if !got.Complete() {
		t.Fatalf("merged credentials should be complete")
	}
	if (Credentials{}).Or(Credentials{}).Complete() {
		t.Fatalf("empty credentials should not be complete")
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrMissingCredentials, "Please enter both API keys."},
		{&models.ValidationError{Field: "goals", Message: "Please select at least one nutrition goal."}, "Please select at least one nutrition goal."},
		{fmt.Errorf("generate plan: %w", context.DeadlineExceeded), "Generating your plan took too long. Please try again."},
		{errors.New("boom"), "An error occurred while generating your nutrition plan. Please try again."},
	}
	for _, tc := range tests {
		if got := UserMessage(tc.err); got != tc.want {
			t.Fatalf("UserMessage(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestNewSearchFactoryRequiresKey(t *testing.T) {
	if _, err := NewSearchFactory()(""); err == nil {
		t.Fatalf("expected an error for a blank search key")
	}
	tool, err := NewSearchFactory()("serper")
	if err != nil || tool.Name() != "search_internet" {
		t.Fatalf("unexpected tool %v / %v", tool, err)
	}
}
