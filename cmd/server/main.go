package main

import (
	"log"
	"time"

	"github.com/BerylCAtieno/nutrition-advisor-agent/internal/a2a"
	"github.com/BerylCAtieno/nutrition-advisor-agent/internal/advisor"
	"github.com/BerylCAtieno/nutrition-advisor-agent/internal/config"
	"github.com/BerylCAtieno/nutrition-advisor-agent/internal/crew"
	"github.com/BerylCAtieno/nutrition-advisor-agent/internal/llm"
	"github.com/BerylCAtieno/nutrition-advisor-agent/internal/search"
	"github.com/BerylCAtieno/nutrition-advisor-agent/internal/web"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.LoadConfig()
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	definition, err := loadDefinition(cfg.CrewConfig)
	if err != nil {
		log.Fatalf("Failed to load crew definition: %v", err)
	}

	newLLM := advisor.NewLLMFactory(cfg.LLMProvider, llm.Options{
		Model:       cfg.LLMModel,
		Temperature: cfg.LLMTemperature,
		BaseURL:     cfg.LLMBaseURL,
		Timeout:     cfg.LLMTimeout,
		MaxRetries:  cfg.LLMMaxRetries,
	})

	var searchOpts []search.Option
	if cfg.SearchBaseURL != "" {
		searchOpts = append(searchOpts, search.WithBaseURL(cfg.SearchBaseURL))
	}
	if cfg.SearchMaxResults > 0 {
		searchOpts = append(searchOpts, search.WithMaxResults(cfg.SearchMaxResults))
	}

	var advisorOpts []advisor.Option
	if cfg.CrewMaxIterations > 0 {
		advisorOpts = append(advisorOpts, advisor.WithMaxIterations(cfg.CrewMaxIterations))
	}
	planner := advisor.New(definition, newLLM, advisor.NewSearchFactory(searchOpts...), advisorOpts...)

	env := advisor.Credentials{LLMKey: cfg.LLMKey(), SearchKey: cfg.SerperKey}
	if !env.Complete() {
		log.Printf("WARN: API keys not configured; users must enter them in the form")
	}

	webHandler, err := web.NewHandler(planner, env)
	if err != nil {
		log.Fatalf("Failed to create web handler: %v", err)
	}
	a2aHandler := a2a.NewA2AHandler(planner, env)

	router := gin.Default()

	// Endpoints
	webHandler.Register(router)

	router.GET("/.well-known/agent.json", a2aHandler.ServeAgentCard)

	router.POST("/a2a/nutrition", a2a.RequestLoggingMiddleware(), a2aHandler.HandleNutrition)

	router.GET("/health", func(c *gin.Context) {
		c.String(200, "OK")
	})

	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	log.Printf("Nutrition Advisor Agent starting on port %s (provider %s, llm timeout %s)", port, cfg.LLMProvider, cfg.LLMTimeout.Round(time.Second))
	log.Printf("Form available at: http://localhost:%s/", port)
	log.Printf("Agent card available at: http://localhost:%s/.well-known/agent.json", port)
	log.Printf("A2A endpoint available at: http://localhost:%s/a2a/nutrition", port)

	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}

func loadDefinition(path string) (crew.Definition, error) {
	if path == "" {
		return crew.DefaultDefinition()
	}
	log.Printf("Loading crew definition from %s", path)
	return crew.LoadDefinitionFile(path)
}
