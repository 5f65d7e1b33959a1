package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/BerylCAtieno/nutrition-advisor-agent/internal/advisor"
	"github.com/BerylCAtieno/nutrition-advisor-agent/internal/models"
	"github.com/gin-gonic/gin"
)

type stubPlanner struct {
	plan        *models.Plan
	err         error
	calls       int
	lastProfile models.UserProfile
	lastCreds   advisor.Credentials
}

func (s *stubPlanner) GeneratePlan(_ context.Context, profile models.UserProfile, creds advisor.Credentials) (*models.Plan, error) {
	s.calls++
	s.lastProfile = profile
	s.lastCreds = creds
	if s.err != nil {
		return nil, s.err
	}
	if s.plan != nil {
		return s.plan, nil
	}
	profile = profile.Normalize()
	return &models.Plan{
		ID:        "plan-1",
		Markdown:  "# Your Plan\n\n| Meal | Food |\n|---|---|\n| Breakfast | Oats |\n\n<script>alert(1)</script>",
		Profile:   profile,
		CreatedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		Tasks:     []models.TaskSummary{{Name: "diet_plan", Agent: "Therapeutic Diet Planner", Output: "# Your Plan"}},
	}, nil
}

func newTestRouter(t *testing.T, planner Planner, env advisor.Credentials) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h, err := NewHandler(planner, env)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	router := gin.New()
	h.Register(router)
	return router
}

func postForm(router http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func sampleForm() url.Values {
	return url.Values{
		"age":             {"34"},
		"gender":          {"Female"},
		"height":          {"170 cm"},
		"weight":          {"64 kg"},
		"activity_level":  {"Very Active"},
		"goals":           {"Muscle Building", "Better Energy"},
		"allergies":       {"Peanuts"},
		"cooking_ability": {"Average"},
		"budget":          {"Moderate"},
	}
}

func TestShowFormRendersSectionsAndDefaults(t *testing.T) {
	router := newTestRouter(t, &stubPlanner{}, advisor.Credentials{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"Basic Information",
		"Health Details",
		"Preferences &amp; Lifestyle",
		`value="30"`,
		"Improved Athletic Performance",
		"Advanced/Can Spend Time",
		"API keys not detected",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("form should contain %q", want)
		}
	}
}

func TestShowFormHidesKeyWarningWhenConfigured(t *testing.T) {
	router := newTestRouter(t, &stubPlanner{}, advisor.Credentials{LLMKey: "sk", SearchKey: "serper"})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if strings.Contains(rec.Body.String(), "API keys not detected") {
		t.Fatalf("warning should not be shown when keys are configured")
	}
}

func TestCreatePlanRendersMarkdownAndDownloadForm(t *testing.T) {
	planner := &stubPlanner{}
	router := newTestRouter(t, planner, advisor.Credentials{LLMKey: "env-llm", SearchKey: "env-search"})

	form := sampleForm()
	form.Set("llm_api_key", "user-llm")
	rec := postForm(router, "/plan", form)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if planner.lastCreds.LLMKey != "user-llm" || planner.lastCreds.SearchKey != "env-search" {
		t.Fatalf("unexpected credentials %+v", planner.lastCreds)
	}
	if got := strings.Join(planner.lastProfile.Goals, ","); got != "Muscle Building,Better Energy" {
		t.Fatalf("goals not bound from form: %q", got)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "<h1>Your Plan</h1>") || !strings.Contains(body, "<table>") {
		t.Fatalf("plan markdown should be rendered as HTML:\n%s", body)
	}
	if strings.Contains(body, "<script>alert(1)</script>") {
		t.Fatalf("raw HTML from the plan must not be passed through")
	}
	if !strings.Contains(body, `action="/plan/download"`) {
		t.Fatalf("expected download form")
	}
	if !strings.Contains(body, "&#34;allergies&#34;: &#34;Peanuts&#34;") || !strings.Contains(body, "None reported") {
		t.Fatalf("expected JSON summary with placeholders:\n%s", body)
	}
}

func TestCreatePlanWarnsOnMissingCredentials(t *testing.T) {
	planner := &stubPlanner{err: advisor.ErrMissingCredentials}
	router := newTestRouter(t, planner, advisor.Credentials{})

	rec := postForm(router, "/plan", sampleForm())

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Please enter both API keys.") {
		t.Fatalf("expected credentials warning")
	}
	if !strings.Contains(rec.Body.String(), `value="170 cm"`) {
		t.Fatalf("submitted values should be kept in the form")
	}
}

func TestCreatePlanKeepsTypedKeysOnError(t *testing.T) {
	planner := &stubPlanner{err: &models.ValidationError{Field: models.FieldGoals, Message: "Please select at least one nutrition goal."}}
	router := newTestRouter(t, planner, advisor.Credentials{})

	form := sampleForm()
	form.Del("goals")
	form.Set("llm_api_key", " sk-user ")
	form.Set("search_api_key", "serper-user")
	rec := postForm(router, "/plan", form)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `value="sk-user"`) || !strings.Contains(body, `value="serper-user"`) {
		t.Fatalf("typed keys should be kept in the form:\n%s", body)
	}
	if got := rec.Header().Get("Cache-Control"); !strings.Contains(got, "no-store") {
		t.Fatalf("form with keys should not be cached, got %q", got)
	}
	if planner.lastCreds.LLMKey != "sk-user" {
		t.Fatalf("unexpected credentials %+v", planner.lastCreds)
	}
}

func TestCreatePlanShowsGenericMessageOnFailure(t *testing.T) {
	planner := &stubPlanner{err: errors.New("upstream 503: secret details")}
	router := newTestRouter(t, planner, advisor.Credentials{LLMKey: "sk", SearchKey: "serper"})

	rec := postForm(router, "/plan", sampleForm())

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	body := rec.Body.String()
	if strings.Contains(body, "secret details") {
		t.Fatalf("internal error leaked to the page")
	}
	if !strings.Contains(body, "An error occurred while generating your nutrition plan.") {
		t.Fatalf("expected generic error message")
	}
}

func TestDownloadPlanReturnsAttachment(t *testing.T) {
	router := newTestRouter(t, &stubPlanner{}, advisor.Credentials{})

	rec := postForm(router, "/plan/download", url.Values{"markdown": {"# Plan\n- Eat greens"}})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename="my_nutrition_plan.md"` {
		t.Fatalf("unexpected disposition %q", got)
	}
	if got := rec.Header().Get("Content-Type"); !strings.HasPrefix(got, "text/markdown") {
		t.Fatalf("unexpected content type %q", got)
	}
	if rec.Body.String() != "# Plan\n- Eat greens" {
		t.Fatalf("download should return the markdown verbatim, got %q", rec.Body.String())
	}

	empty := postForm(router, "/plan/download", url.Values{})
	if empty.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty download, got %d", empty.Code)
	}
}

func TestCreatePlanJSON(t *testing.T) {
	planner := &stubPlanner{}
	router := newTestRouter(t, planner, advisor.Credentials{})

	body := `{"age":34,"gender":"Female","height":"170 cm","weight":"64 kg","activity_level":"Very Active","goals":["Maintenance"]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/plans", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderLLMKey, "sk")
	req.Header.Set(HeaderSearchKey, "serper")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if planner.lastCreds != (advisor.Credentials{LLMKey: "sk", SearchKey: "serper"}) {
		t.Fatalf("header keys not used: %+v", planner.lastCreds)
	}
	var resp struct {
		ID       string               `json:"id"`
		Markdown string               `json:"markdown"`
		Tasks    []models.TaskSummary `json:"tasks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID != "plan-1" || !strings.HasPrefix(resp.Markdown, "# Your Plan") || len(resp.Tasks) != 1 {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestCreatePlanJSONReportsValidationField(t *testing.T) {
	planner := &stubPlanner{err: &models.ValidationError{Field: models.FieldGoals, Message: "Please select at least one nutrition goal."}}
	router := newTestRouter(t, planner, advisor.Credentials{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/plans", strings.NewReader(`{"age":30}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["field"] != "goals" || resp["error"] != "Please select at least one nutrition goal." {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestCreatePlanJSONRejectsMalformedBody(t *testing.T) {
	planner := &stubPlanner{}
	router := newTestRouter(t, planner, advisor.Credentials{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/plans", strings.NewReader(`{"age":`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest || planner.calls != 0 {
		t.Fatalf("expected 400 without a planner call, got %d (%d calls)", rec.Code, planner.calls)
	}
}
