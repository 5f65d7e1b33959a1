// Package search gives the research agents access to web search through the
// Serper Google Search API.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultBaseURL    = "https://google.serper.dev"
	DefaultMaxResults = 5
)

var ErrMissingAPIKey = errors.New("search: api key is required")

type Option func(*SerperClient)

func WithBaseURL(baseURL string) Option {
	return func(c *SerperClient) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

func WithMaxResults(n int) Option {
	return func(c *SerperClient) {
		c.maxResults = n
	}
}

func WithHTTPClient(clt *http.Client) Option {
	return func(c *SerperClient) {
		c.httpClient = clt
	}
}

// SerperClient queries the Serper search endpoint.
type SerperClient struct {
	apiKey     string
	baseURL    string
	maxResults int
	httpClient *http.Client
}

func NewSerperClient(apiKey string, opts ...Option) (*SerperClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingAPIKey
	}
	c := &SerperClient{apiKey: apiKey}
	for _, opt := range opts {
		opt(c)
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.maxResults <= 0 {
		c.maxResults = DefaultMaxResults
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return c, nil
}

type searchRequest struct {
	Query string `json:"q"`
	Num   int    `json:"num,omitempty"`
}

// Result is one organic search hit.
type Result struct {
	Title    string `json:"title"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet"`
	Position int    `json:"position,omitempty"`
}

type AnswerBox struct {
	Title   string `json:"title,omitempty"`
	Answer  string `json:"answer,omitempty"`
	Snippet string `json:"snippet,omitempty"`
}

type KnowledgeGraph struct {
	Title       string `json:"title,omitempty"`
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
}

// Response is the subset of the Serper payload the agents use.
type Response struct {
	AnswerBox      *AnswerBox      `json:"answerBox,omitempty"`
	KnowledgeGraph *KnowledgeGraph `json:"knowledgeGraph,omitempty"`
	Organic        []Result        `json:"organic"`
}

// Search runs a single query.
func (c *SerperClient) Search(ctx context.Context, query string) (*Response, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("search: query is empty")
	}
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(searchRequest{Query: query, Num: c.maxResults}); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error querying search engine: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return nil, fmt.Errorf("non-200 response from search engine: %d %s", res.StatusCode, strings.TrimSpace(string(b)))
	}

	var out Response
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	if len(out.Organic) > c.maxResults {
		out.Organic = out.Organic[:c.maxResults]
	}
	return &out, nil
}

// Markdown renders the response as a compact list the model can cite from.
func (r *Response) Markdown(query string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Search results for %q:\n", query)
	if box := r.AnswerBox; box != nil {
		answer := box.Answer
		if answer == "" {
			answer = box.Snippet
		}
		if answer != "" {
			fmt.Fprintf(&b, "\nAnswer: %s\n", answer)
		}
	}
	if kg := r.KnowledgeGraph; kg != nil && kg.Description != "" {
		fmt.Fprintf(&b, "\n%s: %s\n", kg.Title, kg.Description)
	}
	if len(r.Organic) == 0 {
		b.WriteString("\nNo results found.\n")
		return b.String()
	}
	b.WriteString("\n")
	for _, item := range r.Organic {
		fmt.Fprintf(&b, "- [%s](%s): %s\n", item.Title, item.Link, item.Snippet)
	}
	return b.String()
}
