package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func startSerperServer(t *testing.T, status int, payload string, gotQuery *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/search" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("X-API-KEY"); got != "serper-key" {
			t.Errorf("expected api key header, got %q", got)
		}
		var body searchRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if gotQuery != nil {
			*gotQuery = body.Query
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(payload))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSearchParsesOrganicResults(t *testing.T) {
	payload := `{
		"answerBox": {"answer": "0.8 g per kg"},
		"organic": [
			{"title": "Protein RDA", "link": "https://example.com/rda", "snippet": "Adults need 0.8 g/kg.", "position": 1},
			{"title": "Athletes", "link": "https://example.com/athletes", "snippet": "Up to 2 g/kg.", "position": 2},
			{"title": "Older adults", "link": "https://example.com/older", "snippet": "1.2 g/kg.", "position": 3}
		]
	}`
	var query string
	srv := startSerperServer(t, http.StatusOK, payload, &query)

	client, err := NewSerperClient("serper-key", WithBaseURL(srv.URL), WithMaxResults(2))
	if err != nil {
		t.Fatalf("NewSerperClient: %v", err)
	}
	resp, err := client.Search(context.Background(), "  protein requirements  ")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if query != "protein requirements" {
		t.Fatalf("expected trimmed query, got %q", query)
	}
	if len(resp.Organic) != 2 {
		t.Fatalf("expected results capped at 2, got %d", len(resp.Organic))
	}
	md := resp.Markdown("protein requirements")
	if !strings.Contains(md, "Answer: 0.8 g per kg") {
		t.Fatalf("expected answer box in markdown, got:\n%s", md)
	}
	if !strings.Contains(md, "- [Protein RDA](https://example.com/rda): Adults need 0.8 g/kg.") {
		t.Fatalf("expected organic item in markdown, got:\n%s", md)
	}
}

func TestSearchReportsHTTPErrors(t *testing.T) {
	srv := startSerperServer(t, http.StatusUnauthorized, `{"message":"bad key"}`, nil)
	client, _ := NewSerperClient("serper-key", WithBaseURL(srv.URL))

	_, err := client.Search(context.Background(), "fiber")
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected 401 error, got %v", err)
	}
}

func TestNewSerperClientRequiresKey(t *testing.T) {
	if _, err := NewSerperClient("  "); err != ErrMissingAPIKey {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestToolCallDecodesArguments(t *testing.T) {
	var query string
	srv := startSerperServer(t, http.StatusOK, `{"organic": []}`, &query)
	client, _ := NewSerperClient("serper-key", WithBaseURL(srv.URL))
	tool := NewTool(client)

	out, err := tool.Call(context.Background(), `{"query":"metformin vitamin b12"}`)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if query != "metformin vitamin b12" {
		t.Fatalf("unexpected query %q", query)
	}
	if !strings.Contains(out, "No results found.") {
		t.Fatalf("expected empty result notice, got %q", out)
	}

	if _, err := tool.Call(context.Background(), `not json`); err == nil {
		t.Fatalf("expected error for malformed arguments")
	}
}
