// Package github queries the GitHub GraphQL API for merged pull requests and
// turns their co-author trailers into contributor attribution.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultEndpoint is the public GitHub GraphQL endpoint
const DefaultEndpoint = "https://api.github.com/graphql"

// ErrGraphQL is returned when the API answers with an errors payload
var ErrGraphQL = errors.New("graphql error")

// Client is a minimal GraphQL client with request pacing and retries
type Client struct {
	endpoint    string
	token       string
	httpClient  *http.Client
	limiter     *rate.Limiter
	logger      *zap.Logger
	maxAttempts int
	backoff     time.Duration
}

// NewClient creates a new Client. rps <= 0 disables pacing.
func NewClient(endpoint, token string, rps float64, burst int, logger *zap.Logger) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &Client{
		endpoint:    endpoint,
		token:       token,
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		limiter:     rate.NewLimiter(limit, burst),
		logger:      logger,
		maxAttempts: 3,
		backoff:     2 * time.Second,
	}
}

// SetBackoff overrides the base delay between retries
func (c *Client) SetBackoff(d time.Duration) {
	c.backoff = d
}

// Query runs a GraphQL query and returns its "data" member
func (c *Client) Query(ctx context.Context, query string, variables map[string]any) (gjson.Result, error) {
	payload, err := json.Marshal(map[string]any{
		"query":     query,
		"variables": variables,
	})
	if err != nil {
		return gjson.Result{}, fmt.Errorf("failed to encode query: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return gjson.Result{}, err
		}

		body, retryAfter, err := c.post(ctx, payload)
		if err == nil {
			return decode(body)
		}
		if retryAfter < 0 {
			return gjson.Result{}, err
		}
		lastErr = err

		if attempt == c.maxAttempts {
			break
		}
		wait := retryAfter
		if wait == 0 {
			wait = c.backoff * time.Duration(attempt)
		}
		c.logger.Warn("graphql request failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return gjson.Result{}, ctx.Err()
		case <-time.After(wait):
		}
	}
	return gjson.Result{}, fmt.Errorf("graphql request failed after %d attempts: %w", c.maxAttempts, lastErr)
}

// post sends one request. A negative retryAfter marks the error as permanent.
func (c *Client) post(ctx context.Context, payload []byte) ([]byte, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, -1, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, 0, nil
	case throttled(resp, body) || resp.StatusCode >= 500:
		return nil, retryAfter(resp), fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(body))
	default:
		return nil, -1, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(body))
	}
}

func decode(body []byte) (gjson.Result, error) {
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, fmt.Errorf("invalid JSON response: %s", truncate(body))
	}
	res := gjson.ParseBytes(body)
	if errs := res.Get("errors"); errs.Exists() && len(errs.Array()) > 0 {
		var msgs []string
		for _, e := range errs.Array() {
			msgs = append(msgs, e.Get("message").String())
		}
		return gjson.Result{}, fmt.Errorf("%w: %s", ErrGraphQL, strings.Join(msgs, "; "))
	}
	return res.Get("data"), nil
}

func throttled(resp *http.Response, body []byte) bool {
	if resp.StatusCode == http.StatusTooManyRequests {
		return true
	}
	if resp.StatusCode == http.StatusForbidden {
		return resp.Header.Get("X-RateLimit-Remaining") == "0" ||
			bytes.Contains(bytes.ToLower(body), []byte("rate limit"))
	}
	return false
}

func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}

func truncate(body []byte) string {
	const max = 512
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
