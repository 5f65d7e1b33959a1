package llm

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/api/googleapi"
)

const defaultRetryDelay = 2 * time.Second

type retryClient struct {
	Client
	retries int
	delay   time.Duration
}

// WithRetries retries failed chat calls up to retries extra times, waiting a
// linearly growing delay between attempts. Client errors other than rate
// limiting are returned immediately.
func WithRetries(client Client, retries int, delay time.Duration) Client {
	if retries <= 0 {
		return client
	}
	if delay <= 0 {
		delay = defaultRetryDelay
	}
	return &retryClient{Client: client, retries: retries, delay: delay}
}

func (r *retryClient) Chat(ctx context.Context, req Request) (*Response, error) {
	var lastErr error
	for attempt := 0; attempt <= r.retries; attempt++ {
		if attempt > 0 {
			wait := time.Duration(attempt) * r.delay
			log.Printf("WARN: llm call failed (attempt %d/%d), retrying in %s: %v", attempt, r.retries+1, wait, lastErr)
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}
		resp, err := r.Client.Chat(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if ctx.Err() != nil || !retryable(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrEmptyResponse) {
		return true
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return retryableStatus(gErr.Code)
	}
	return true
}

func retryableStatus(code int) bool {
	return code == 0 || code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
