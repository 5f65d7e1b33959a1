package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorPurple = "\033[35m"
	colorCyan   = "\033[36m"
)

const sampleProfile = `{
  "age": 45,
  "gender": "Female",
  "height": "165 cm",
  "weight": "72 kg",
  "activity_level": "Lightly Active",
  "goals": ["Weight Loss", "Disease Management"],
  "medical_conditions": "Hypertension, Prediabetes",
  "medications": "Lisinopril",
  "allergies": "Shellfish",
  "food_preferences": "Prefers Mediterranean food, dislikes liver",
  "cooking_ability": "Basic/Quick Meals",
  "budget": "Moderate",
  "cultural_factors": ""
}`

type TestClient struct {
	baseURL   string
	llmKey    string
	searchKey string
	client    *http.Client
}

func NewTestClient(baseURL, llmKey, searchKey string) *TestClient {
	return &TestClient{
		baseURL:   baseURL,
		llmKey:    llmKey,
		searchKey: searchKey,
		client: &http.Client{
			// A full crew run makes several model and search calls.
			Timeout: 10 * time.Minute,
		},
	}
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "Base URL of the agent")
	testType := flag.String("test", "all", "Test type: all, health, agent-card, plan, a2a, custom")
	profileFile := flag.String("profile", "", "Path to a profile JSON file (for custom test)")
	llmKey := flag.String("llm-key", os.Getenv("OPENAI_API_KEY"), "LLM API key sent with plan requests")
	searchKey := flag.String("search-key", os.Getenv("SERPER_API_KEY"), "Serper API key sent with plan requests")
	flag.Parse()

	client := NewTestClient(*baseURL, *llmKey, *searchKey)

	printHeader("Nutrition Advisor Agent - Test Suite")
	fmt.Printf("%sBase URL: %s%s\n\n", colorCyan, *baseURL, colorReset)

	switch *testType {
	case "all":
		client.runAllTests()
	case "health":
		client.testHealthCheck()
	case "agent-card":
		client.testAgentCard()
	case "plan":
		client.testPlanAPI(sampleProfile)
	case "a2a":
		client.testA2APlan(sampleProfile)
	case "custom":
		if *profileFile == "" {
			printError("Profile file is required for custom test. Use -profile flag")
			os.Exit(1)
		}
		data, err := os.ReadFile(*profileFile)
		if err != nil {
			printError(fmt.Sprintf("Failed to read profile: %v", err))
			os.Exit(1)
		}
		client.testPlanAPI(string(data))
	default:
		printError(fmt.Sprintf("Unknown test type: %s", *testType))
		fmt.Println("\nAvailable tests: all, health, agent-card, plan, a2a, custom")
		os.Exit(1)
	}
}

func (tc *TestClient) runAllTests() {
	tests := []struct {
		name string
		fn   func() bool
	}{
		{"Health Check", tc.testHealthCheck},
		{"Agent Card", tc.testAgentCard},
		{"Plan API", func() bool { return tc.testPlanAPI(sampleProfile) }},
		{"A2A Plan", func() bool { return tc.testA2APlan(sampleProfile) }},
	}

	passed := 0
	failed := 0

	for _, test := range tests {
		if test.fn() {
			passed++
		} else {
			failed++
		}
		fmt.Println()
	}

	printHeader("Test Summary")
	fmt.Printf("%sPassed: %d%s\n", colorGreen, passed, colorReset)
	fmt.Printf("%sFailed: %d%s\n", colorRed, failed, colorReset)
	fmt.Printf("Total: %d\n", passed+failed)

	if failed > 0 {
		os.Exit(1)
	}
}

func (tc *TestClient) testHealthCheck() bool {
	printTestHeader("Testing Health Check Endpoint")

	url := fmt.Sprintf("%s/health", tc.baseURL)
	fmt.Printf("GET %s\n", url)

	resp, err := tc.client.Get(url)
	if err != nil {
		printError(fmt.Sprintf("Request failed: %v", err))
		return false
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		printError(fmt.Sprintf("Expected status 200, got %d", resp.StatusCode))
		return false
	}

	if string(body) != "OK" {
		printError(fmt.Sprintf("Expected body 'OK', got '%s'", string(body)))
		return false
	}

	printSuccess("Health check passed")
	return true
}

func (tc *TestClient) testAgentCard() bool {
	printTestHeader("Testing Agent Card Endpoint")

	url := fmt.Sprintf("%s/.well-known/agent.json", tc.baseURL)
	fmt.Printf("GET %s\n", url)

	resp, err := tc.client.Get(url)
	if err != nil {
		printError(fmt.Sprintf("Request failed: %v", err))
		return false
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		printError(fmt.Sprintf("Expected status 200, got %d", resp.StatusCode))
		fmt.Printf("Response: %s\n", string(body))
		return false
	}

	var agentCard map[string]interface{}
	if err := json.Unmarshal(body, &agentCard); err != nil {
		printError(fmt.Sprintf("Invalid JSON response: %v", err))
		return false
	}

	requiredFields := []string{"name", "description", "version", "capabilities", "endpoints"}
	for _, field := range requiredFields {
		if _, ok := agentCard[field]; !ok {
			printError(fmt.Sprintf("Missing required field: %s", field))
			return false
		}
	}

	printSuccess("Agent card is valid")
	printJSON(body)
	return true
}

func (tc *TestClient) testPlanAPI(profile string) bool {
	printTestHeader("Testing Plan Generation (JSON API)")

	url := fmt.Sprintf("%s/api/v1/plans", tc.baseURL)
	fmt.Printf("POST %s\n", url)
	fmt.Printf("%sProfile:%s\n%s\n\n", colorCyan, colorReset, profile)

	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(profile))
	if err != nil {
		printError(fmt.Sprintf("Failed to build request: %v", err))
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	if tc.llmKey != "" {
		req.Header.Set("X-LLM-API-Key", tc.llmKey)
	}
	if tc.searchKey != "" {
		req.Header.Set("X-Search-API-Key", tc.searchKey)
	}

	resp, err := tc.client.Do(req)
	if err != nil {
		printError(fmt.Sprintf("Request failed: %v", err))
		return false
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		printError(fmt.Sprintf("Expected status 200, got %d", resp.StatusCode))
		fmt.Printf("Response: %s\n", string(body))
		return false
	}

	var result struct {
		ID       string `json:"id"`
		Markdown string `json:"markdown"`
		Tasks    []struct {
			Name  string `json:"name"`
			Agent string `json:"agent"`
		} `json:"tasks"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		printError(fmt.Sprintf("Invalid JSON response: %v", err))
		return false
	}
	if strings.TrimSpace(result.Markdown) == "" {
		printError("Plan markdown is empty")
		return false
	}

	printSuccess(fmt.Sprintf("Plan %s generated", result.ID))
	for _, task := range result.Tasks {
		fmt.Printf("  - %s (%s)\n", task.Name, task.Agent)
	}
	fmt.Printf("\n%sGenerated Plan:%s\n", colorGreen, colorReset)
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println(result.Markdown)
	fmt.Println(strings.Repeat("=", 80))
	return true
}

func (tc *TestClient) testA2APlan(profile string) bool {
	printTestHeader("Testing Plan Generation (A2A)")

	url := fmt.Sprintf("%s/a2a/nutrition", tc.baseURL)
	fmt.Printf("POST %s\n", url)

	var data map[string]interface{}
	if err := json.Unmarshal([]byte(profile), &data); err != nil {
		printError(fmt.Sprintf("Profile is not valid JSON: %v", err))
		return false
	}

	request := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      fmt.Sprintf("test-%d", time.Now().Unix()),
		"method":  "message/send",
		"params": map[string]interface{}{
			"message": map[string]interface{}{
				"kind": "message",
				"role": "user",
				"parts": []map[string]interface{}{
					{"kind": "text", "text": "Please create a nutrition plan for this profile."},
					{"kind": "data", "data": data},
				},
			},
			"configuration": map[string]interface{}{
				"blocking":            true,
				"acceptedOutputModes": []string{"text", "data"},
			},
		},
	}

	jsonData, _ := json.MarshalIndent(request, "", "  ")
	fmt.Printf("%sRequest:%s\n", colorYellow, colorReset)
	fmt.Println(string(jsonData))
	fmt.Println()

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		printError(fmt.Sprintf("Failed to build request: %v", err))
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	if tc.llmKey != "" {
		req.Header.Set("X-LLM-API-Key", tc.llmKey)
	}
	if tc.searchKey != "" {
		req.Header.Set("X-Search-API-Key", tc.searchKey)
	}

	resp, err := tc.client.Do(req)
	if err != nil {
		printError(fmt.Sprintf("Request failed: %v", err))
		return false
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		printError(fmt.Sprintf("Expected status 200, got %d", resp.StatusCode))
		fmt.Printf("Response: %s\n", string(body))
		return false
	}

	var response map[string]interface{}
	if err := json.Unmarshal(body, &response); err != nil {
		printError(fmt.Sprintf("Invalid JSON response: %v", err))
		return false
	}

	if errObj, ok := response["error"]; ok {
		printError("Request returned an error")
		errJSON, _ := json.MarshalIndent(errObj, "", "  ")
		fmt.Println(string(errJSON))
		return false
	}

	result, ok := response["result"].(map[string]interface{})
	if !ok {
		printError("Invalid result format")
		return false
	}

	status, ok := result["status"].(map[string]interface{})
	if !ok {
		printError("Invalid status format")
		return false
	}

	state, _ := status["state"].(string)
	if state != "completed" {
		printError(fmt.Sprintf("Expected state 'completed', got '%s'", state))
		printJSON(body)
		return false
	}

	printSuccess("A2A plan generation completed successfully")

	if msg, ok := status["message"].(map[string]interface{}); ok {
		if parts, ok := msg["parts"].([]interface{}); ok {
			fmt.Printf("\n%sGenerated Plan:%s\n", colorGreen, colorReset)
			fmt.Println(strings.Repeat("=", 80))
			for _, part := range parts {
				if p, ok := part.(map[string]interface{}); ok {
					if text, ok := p["text"].(string); ok {
						fmt.Println(text)
					}
				}
			}
			fmt.Println(strings.Repeat("=", 80))
		}
	}

	if artifacts, ok := result["artifacts"].([]interface{}); ok && len(artifacts) > 0 {
		fmt.Printf("\n%sArtifacts:%s %d\n", colorPurple, colorReset, len(artifacts))
	}

	return true
}

func printHeader(text string) {
	fmt.Printf("\n%s%s%s\n", colorBlue, strings.Repeat("=", len(text)+4), colorReset)
	fmt.Printf("%s= %s =%s\n", colorBlue, text, colorReset)
	fmt.Printf("%s%s%s\n\n", colorBlue, strings.Repeat("=", len(text)+4), colorReset)
}

func printTestHeader(text string) {
	fmt.Printf("%s[TEST] %s%s\n", colorCyan, text, colorReset)
	fmt.Println(strings.Repeat("-", 80))
}

func printSuccess(text string) {
	fmt.Printf("%s✓ %s%s\n", colorGreen, text, colorReset)
}

func printError(text string) {
	fmt.Printf("%s✗ %s%s\n", colorRed, text, colorReset)
}

func printJSON(data []byte) {
	var prettyJSON bytes.Buffer
	if err := json.Indent(&prettyJSON, data, "", "  "); err == nil {
		fmt.Printf("\n%sResponse:%s\n%s\n", colorYellow, colorReset, prettyJSON.String())
	}
}
