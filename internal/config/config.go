package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port    string
	GinMode string

	// Credentials may be blank; users can then supply them with each request.
	OpenAIKey string
	SerperKey string
	GeminiKey string

	LLMProvider    string
	LLMModel       string
	LLMTemperature float32
	LLMBaseURL     string
	LLMTimeout     time.Duration
	LLMMaxRetries  int

	SearchBaseURL    string
	SearchMaxResults int

	CrewConfig        string
	CrewMaxIterations int
}

func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	return fromEnv()
}

func fromEnv() *Config {
	return &Config{
		Port:              getEnv("PORT", "8080"),
		GinMode:           getEnv("GIN_MODE", ""),
		OpenAIKey:         strings.TrimSpace(getEnv("OPENAI_API_KEY", "")),
		SerperKey:         strings.TrimSpace(getEnv("SERPER_API_KEY", "")),
		GeminiKey:         strings.TrimSpace(getEnv("GEMINI_API_KEY", "")),
		LLMProvider:       strings.ToLower(strings.TrimSpace(getEnv("LLM_PROVIDER", "openai"))),
		LLMModel:          getEnv("LLM_MODEL", ""),
		LLMTemperature:    getEnvFloat("LLM_TEMPERATURE", 0.7),
		LLMBaseURL:        getEnv("LLM_BASE_URL", ""),
		LLMTimeout:        getEnvDuration("LLM_TIMEOUT", 120*time.Second),
		LLMMaxRetries:     getEnvInt("LLM_MAX_RETRIES", 3),
		SearchBaseURL:     getEnv("SEARCH_BASE_URL", ""),
		SearchMaxResults:  getEnvInt("SEARCH_MAX_RESULTS", 5),
		CrewConfig:        getEnv("CREW_CONFIG", ""),
		CrewMaxIterations: getEnvInt("CREW_MAX_ITERATIONS", 0),
	}
}

// LLMKey returns the configured key for the selected provider.
func (c *Config) LLMKey() string {
	if c.LLMProvider == "gemini" {
		return c.GeminiKey
	}
	return c.OpenAIKey
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		log.Printf("WARN: ignoring %s=%q: %v", key, value, err)
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float32) float32 {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 32)
	if err != nil {
		log.Printf("WARN: ignoring %s=%q: %v", key, value, err)
		return fallback
	}
	return float32(f)
}

// getEnvDuration accepts Go durations ("90s") or a bare number of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	value = strings.TrimSpace(value)
	if !exists || value == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("WARN: ignoring %s=%q: %v", key, value, err)
		return fallback
	}
	return d
}
