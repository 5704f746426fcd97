package assist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gptlisting/backend/internal/domain"
	"golang.org/x/time/rate"
)

// resolveRequest is the wire format of the model-assist boundary
type resolveRequest struct {
	Front      domain.FeatureRow   `json:"front"`
	Candidates []domain.FeatureRow `json:"candidates"`
}

// Client handles communication with the model-assist disambiguation service
type Client struct {
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	rateLimiter *rate.Limiter
	debug       bool
}

// NewClient creates a new disambiguation client. requestsPerMinute
// bounds the call rate to the model service; the burst allows short
// ambiguous streaks within one batch through without waiting.
func NewClient(apiKey, baseURL string, timeout time.Duration, requestsPerMinute int) *Client {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	limiter := rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), 10)

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		apiKey:      apiKey,
		baseURL:     baseURL,
		rateLimiter: limiter,
	}
}

// SetDebug enables verbose request/response logging
func (c *Client) SetDebug(debug bool) {
	c.debug = debug
}

// Resolve asks the model service to pick a back image for an ambiguous
// front. A declined answer is returned as a decision, not an error;
// errors cover transport failures, timeouts, and malformed responses.
// The caller maps errors to declines, so nothing here is fatal.
func (c *Client) Resolve(ctx context.Context, front domain.FeatureRow, candidates []domain.FeatureRow) (*domain.AssistDecision, error) {
	if c.debug {
		log.Printf("[ASSIST] Resolve called: front=%s candidates=%d", front.URL, len(candidates))
	}

	payload, err := json.Marshal(resolveRequest{Front: front, Candidates: candidates})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	reqURL := fmt.Sprintf("%s/v1/pairings/resolve", c.baseURL)

	// Retry transient failures; the final attempt's error propagates
	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrRateLimited, err)
		}

		resp, err := c.doRequest(ctx, reqURL, payload)
		if err != nil {
			if c.debug {
				log.Printf("[ASSIST] Request error (attempt %d): %v", attempt, err)
			}
			lastErr = err
			if !sleepBackoff(ctx, attempt) {
				break
			}
			continue
		}

		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			if c.debug {
				log.Printf("[ASSIST] API error (attempt %d) - Status: %d, Body: %s", attempt, resp.StatusCode, string(body))
			}
			lastErr = fmt.Errorf("%w: status %d", domain.ErrAssistFailure, resp.StatusCode)
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				// Client errors won't improve on retry
				break
			}
			if !sleepBackoff(ctx, attempt) {
				break
			}
			continue
		}

		var decision domain.AssistDecision
		if err := json.Unmarshal(body, &decision); err != nil {
			return nil, fmt.Errorf("%w: malformed response: %v", domain.ErrAssistFailure, err)
		}

		if !decision.Declined && decision.BackURL == "" {
			return nil, fmt.Errorf("%w: response carries neither backUrl nor decline", domain.ErrAssistFailure)
		}

		if c.debug {
			log.Printf("[ASSIST] Decision for %s: backUrl=%q declined=%v", front.URL, decision.BackURL, decision.Declined)
		}
		return &decision, nil
	}

	return nil, lastErr
}

// doRequest executes an HTTP POST with proper headers and error handling
func (c *Client) doRequest(ctx context.Context, reqURL string, payload []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", reqURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "gptlisting-pairing/1.0")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrAssistFailure, err)
	}

	return resp, nil
}

// sleepBackoff waits out the backoff for the given attempt, returning
// false if the context expired while waiting
func sleepBackoff(ctx context.Context, attempt int) bool {
	select {
	case <-time.After(exponentialBackoff(attempt)):
		return true
	case <-ctx.Done():
		return false
	}
}

// exponentialBackoff returns the delay before retrying the given attempt
func exponentialBackoff(attempt int) time.Duration {
	return time.Duration(1<<(attempt-1)) * 500 * time.Millisecond
}
