package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultURL     = "https://api.anthropic.com/v1/messages"
	DefaultVersion = "2023-06-01"
)

// DefaultBackoff is the wait before the second and third attempts.
var DefaultBackoff = []time.Duration{2 * time.Second, 5 * time.Second, 10 * time.Second}

// ErrMissingAPIKey is returned when the client is used without credentials.
var ErrMissingAPIKey = errors.New("llm: api key not configured")

// StatusError is a non-200 reply from the messages endpoint.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("llm: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Config configures the messages client.
type Config struct {
	APIKey         string
	URL            string
	Version        string
	Model          string
	MaxTokens      int
	AttemptTimeout time.Duration
	ConnectTimeout time.Duration
	MaxAttempts    int
	Backoff        []time.Duration
}

// Observer receives the outcome and latency of every attempt.
type Observer func(outcome string, elapsed time.Duration)

// Client calls the messages API with a bounded retry policy: network errors
// and 5xx are retried, 429/529 are retried with doubled backoff, other 4xx fail at once.
type Client struct {
	cfg      Config
	http     *http.Client
	logger   *zap.Logger
	sleep    func(context.Context, time.Duration) error
	observer Observer
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the transport, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithSleep replaces the backoff wait.
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(c *Client) { c.sleep = sleep }
}

// WithObserver registers an attempt observer.
func WithObserver(observer Observer) Option {
	return func(c *Client) { c.observer = observer }
}

// NewClient builds a client. Missing settings fall back to defaults.
func NewClient(cfg Config, logger *zap.Logger, opts ...Option) *Client {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Version == "" {
		cfg.Version = DefaultVersion
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = 60 * time.Second
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 30 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if len(cfg.Backoff) == 0 {
		cfg.Backoff = DefaultBackoff
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: cfg.ConnectTimeout}).DialContext,
		TLSHandshakeTimeout: cfg.ConnectTimeout,
	}

	c := &Client{
		cfg:    cfg,
		http:   &http.Client{Transport: transport},
		logger: logger,
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c != nil && strings.TrimSpace(c.cfg.APIKey) != ""
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type request struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system"`
	Messages  []message `json:"messages"`
}

type response struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Complete sends one system prompt and one user turn and returns the text of
// the first content block.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	if !c.Configured() {
		return "", ErrMissingAPIKey
	}

	body, err := json.Marshal(request{
		Model:     c.cfg.Model,
		MaxTokens: c.cfg.MaxTokens,
		System:    system,
		Messages:  []message{{Role: "user", Content: user}},
	})
	if err != nil {
		return "", fmt.Errorf("llm: encode request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxAttempts; attempt++ {
		text, retryable, rateLimited, err := c.attempt(ctx, body)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if !retryable || attempt == c.cfg.MaxAttempts-1 {
			break
		}

		wait := c.cfg.Backoff[minInt(attempt, len(c.cfg.Backoff)-1)]
		if rateLimited {
			wait *= 2
		}
		c.logger.Warn("llm attempt failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", wait),
			zap.Bool("rate_limited", rateLimited),
			zap.Error(err),
		)
		if err := c.sleep(ctx, wait); err != nil {
			return "", err
		}
	}

	return "", lastErr
}

func (c *Client) attempt(ctx context.Context, body []byte) (text string, retryable, rateLimited bool, err error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.AttemptTimeout)
	defer cancel()

	start := time.Now()
	outcome := "error"
	defer func() {
		if c.observer != nil {
			c.observer(outcome, time.Since(start))
		}
	}()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return "", false, false, fmt.Errorf("llm: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("anthropic-version", c.cfg.Version)

	resp, err := c.http.Do(req)
	if err != nil {
		outcome = "network_error"
		// The caller's own cancellation is final; a per-attempt timeout is not.
		return "", ctx.Err() == nil, false, fmt.Errorf("llm: request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		outcome = "network_error"
		return "", ctx.Err() == nil, false, fmt.Errorf("llm: read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == 529:
		outcome = "rate_limited"
		return "", true, true, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(payload), 256)}
	case resp.StatusCode >= http.StatusInternalServerError:
		outcome = "server_error"
		return "", true, false, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(payload), 256)}
	default:
		outcome = "client_error"
		return "", false, false, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(payload), 256)}
	}

	var decoded response
	if err := json.Unmarshal(payload, &decoded); err != nil {
		outcome = "invalid_response"
		return "", false, false, fmt.Errorf("llm: decode response: %w", err)
	}
	if len(decoded.Content) == 0 || strings.TrimSpace(decoded.Content[0].Text) == "" {
		outcome = "invalid_response"
		return "", false, false, errors.New("llm: empty response content")
	}

	outcome = "ok"
	return decoded.Content[0].Text, false, false, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit]
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
