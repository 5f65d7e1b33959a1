// Package web serves the nutrition advisor form, the rendered plan and a
// JSON API over the same advisor.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"strings"

	"github.com/BerylCAtieno/nutrition-advisor-agent/internal/advisor"
	"github.com/BerylCAtieno/nutrition-advisor-agent/internal/models"
	"github.com/gin-gonic/gin"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	HeaderLLMKey    = "X-LLM-API-Key"
	HeaderSearchKey = "X-Search-API-Key"
)

// Planner generates a plan for one profile.
type Planner interface {
	GeneratePlan(ctx context.Context, profile models.UserProfile, creds advisor.Credentials) (*models.Plan, error)
}

type Handler struct {
	planner Planner
	env     advisor.Credentials
	pages   *template.Template
}

// NewHandler parses the embedded pages. env holds the keys configured on the
// server; keys sent with a request take precedence.
func NewHandler(planner Planner, env advisor.Credentials) (*Handler, error) {
	pages, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse web templates: %w", err)
	}
	return &Handler{planner: planner, env: env, pages: pages}, nil
}

// Register installs the page templates and routes on router.
func (h *Handler) Register(router *gin.Engine) {
	router.SetHTMLTemplate(h.pages)
	router.GET("/", h.ShowForm)
	router.POST("/plan", h.CreatePlan)
	router.POST("/plan/download", h.DownloadPlan)
	router.POST("/api/v1/plans", h.CreatePlanJSON)
}

type formOptions struct {
	Gender         []string
	ActivityLevel  []string
	Goals          []string
	CookingAbility []string
	Budget         []string
}

type formPage struct {
	Profile        models.UserProfile
	Options        formOptions
	MinAge         int
	MaxAge         int
	KeysConfigured bool
	// Keys typed by the user, echoed back when the form is shown again.
	LLMKey    string
	SearchKey string
	Warning   string
	Error     string
}

func (p formPage) GoalSelected(goal string) bool {
	for _, g := range p.Profile.Goals {
		if g == goal {
			return true
		}
	}
	return false
}

type planPage struct {
	Summary  string
	PlanHTML template.HTML
	Markdown string
}

// profileForm is the form body: the profile plus optional keys.
type profileForm struct {
	models.UserProfile
	LLMKey    string `form:"llm_api_key"`
	SearchKey string `form:"search_api_key"`
}

func (h *Handler) newFormPage(profile models.UserProfile) formPage {
	return formPage{
		Profile: profile,
		Options: formOptions{
			Gender:         models.GenderOptions,
			ActivityLevel:  models.ActivityLevelOptions,
			Goals:          models.GoalOptions,
			CookingAbility: models.CookingAbilityOptions,
			Budget:         models.BudgetOptions,
		},
		MinAge:         models.MinAge,
		MaxAge:         models.MaxAge,
		KeysConfigured: h.env.Complete(),
	}
}

// refillFormPage keeps everything the user submitted, keys included.
func (h *Handler) refillFormPage(form profileForm) formPage {
	page := h.newFormPage(form.UserProfile)
	page.LLMKey = strings.TrimSpace(form.LLMKey)
	page.SearchKey = strings.TrimSpace(form.SearchKey)
	return page
}

// ShowForm renders the empty form with the widget defaults filled in.
func (h *Handler) ShowForm(c *gin.Context) {
	defaults := models.UserProfile{
		Age:    models.DefaultAge,
		Height: models.DefaultHeight,
		Weight: models.DefaultWeight,
	}
	noStore(c)
	c.HTML(http.StatusOK, "index.html", h.newFormPage(defaults))
}

// CreatePlan handles a form submission and renders the finished plan.
func (h *Handler) CreatePlan(c *gin.Context) {
	var form profileForm
	if err := c.ShouldBind(&form); err != nil {
		log.Printf("WARN: failed to bind plan form: %v", err)
		page := h.refillFormPage(form)
		page.Error = "The form could not be read. Please check your entries."
		noStore(c)
		c.HTML(http.StatusBadRequest, "index.html", page)
		return
	}

	creds := advisor.Credentials{LLMKey: form.LLMKey, SearchKey: form.SearchKey}.Or(h.env)
	plan, err := h.planner.GeneratePlan(c.Request.Context(), form.UserProfile, creds)
	if err != nil {
		page := h.refillFormPage(form)
		status := statusFor(err)
		if errors.Is(err, advisor.ErrMissingCredentials) {
			page.Warning = advisor.UserMessage(err)
		} else {
			page.Error = advisor.UserMessage(err)
		}
		if status >= http.StatusInternalServerError {
			log.Printf("ERROR: plan generation failed: %v", err)
		}
		noStore(c)
		c.HTML(status, "index.html", page)
		return
	}

	summary, err := json.MarshalIndent(summaryOf(plan.Profile), "", "  ")
	if err != nil {
		log.Printf("ERROR: failed to encode profile summary: %v", err)
	}
	noStore(c)
	c.HTML(http.StatusOK, "plan.html", planPage{
		Summary:  string(summary),
		PlanHTML: renderMarkdown(plan.Markdown),
		Markdown: plan.Markdown,
	})
}

// DownloadPlan returns the posted plan Markdown as a file attachment. The
// server keeps no copy of generated plans, so the page posts it back.
func (h *Handler) DownloadPlan(c *gin.Context) {
	md := c.PostForm("markdown")
	if strings.TrimSpace(md) == "" {
		c.String(http.StatusBadRequest, "no plan to download")
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", models.PlanFilename))
	c.Data(http.StatusOK, models.PlanMediaType+"; charset=utf-8", []byte(md))
}

// CreatePlanJSON is the JSON variant of CreatePlan. Keys may be supplied in
// the X-LLM-API-Key and X-Search-API-Key headers.
func (h *Handler) CreatePlanJSON(c *gin.Context) {
	var profile models.UserProfile
	if err := c.ShouldBindJSON(&profile); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}

	creds := advisor.Credentials{
		LLMKey:    c.GetHeader(HeaderLLMKey),
		SearchKey: c.GetHeader(HeaderSearchKey),
	}.Or(h.env)

	plan, err := h.planner.GeneratePlan(c.Request.Context(), profile, creds)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			log.Printf("ERROR: plan generation failed: %v", err)
		}
		body := gin.H{"error": advisor.UserMessage(err)}
		var vErr *models.ValidationError
		if errors.As(err, &vErr) {
			body["field"] = vErr.Field
		}
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":         plan.ID,
		"markdown":   plan.Markdown,
		"tasks":      plan.Tasks,
		"usage":      plan.Usage,
		"created_at": plan.CreatedAt,
	})
}

func statusFor(err error) int {
	var vErr *models.ValidationError
	switch {
	case errors.Is(err, advisor.ErrMissingCredentials):
		return http.StatusUnauthorized
	case errors.As(err, &vErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

// summaryOf is the flat view of the submitted information shown above the
// plan, with placeholders in place of blank fields.
func summaryOf(profile models.UserProfile) map[string]any {
	summary := make(map[string]any, len(models.FieldKeys))
	for key, value := range profile.Fields() {
		summary[key] = value
	}
	summary[models.FieldAge] = profile.Age
	return summary
}

func noStore(c *gin.Context) {
	c.Header("Cache-Control", "no-store, max-age=0")
}
