package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"google.golang.org/api/googleapi"
)

type flakyClient struct {
	failures int
	calls    int
}

func (f *flakyClient) Chat(_ context.Context, _ Request) (*Response, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("connection reset")
	}
	return &Response{Content: "ok"}, nil
}

func (f *flakyClient) Close() error { return nil }

type failingClient struct {
	err   error
	calls int
}

func (f *failingClient) Chat(context.Context, Request) (*Response, error) {
	f.calls++
	return nil, f.err
}

func (f *failingClient) Close() error { return nil }

func TestWithRetriesGeminiStatusCodes(t *testing.T) {
	tests := []struct {
		name      string
		code      int
		wantCalls int
	}{
		{"invalid key", http.StatusBadRequest, 1},
		{"forbidden", http.StatusForbidden, 1},
		{"rate limited", http.StatusTooManyRequests, 4},
		{"unavailable", http.StatusServiceUnavailable, 4},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			inner := &failingClient{err: fmt.Errorf("failed to generate content: %w", &googleapi.Error{Code: tc.code, Message: "API key not valid"})}
			client := WithRetries(inner, 3, time.Millisecond)

			if _, err := client.Chat(context.Background(), Request{}); err == nil {
				t.Fatalf("expected an error")
			}
			if inner.calls != tc.wantCalls {
				t.Fatalf("expected %d attempts, got %d", tc.wantCalls, inner.calls)
			}
		})
	}
}

func TestWithRetriesRecoversFromTransientErrors(t *testing.T) {
	inner := &flakyClient{failures: 2}
	client := WithRetries(inner, 3, time.Millisecond)

	resp, err := client.Chat(context.Background(), Request{})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if resp.Content != "ok" || inner.calls != 3 {
		t.Fatalf("expected 3 calls and ok content, got %d calls and %q", inner.calls, resp.Content)
	}
}

func TestWithRetriesStopsOnCancelledContext(t *testing.T) {
	inner := &flakyClient{failures: 10}
	client := WithRetries(inner, 5, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	if _, err := client.Chat(ctx, Request{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("expected one call before cancellation, got %d", inner.calls)
	}
}

func TestWithRetriesZeroIsPassthrough(t *testing.T) {
	inner := &flakyClient{}
	if got := WithRetries(inner, 0, 0); got != Client(inner) {
		t.Fatalf("expected the same client back when retries are disabled")
	}
}
