// Package api is the HTTP client for the vendor/invoice REST API. Responses
// are decoded leniently, normalized into pkg/models types and validated here,
// so callers only ever see well-formed records.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"vendorsync/internal/logger"
)

// TokenSource supplies the bearer token for each request. An empty token
// sends no Authorization header.
type TokenSource func(ctx context.Context) (string, error)

// StaticToken returns a TokenSource that always yields token.
func StaticToken(token string) TokenSource {
	return func(context.Context) (string, error) { return token, nil }
}

// Observer receives one call per completed HTTP exchange. Status is 0 when
// no response arrived.
type Observer interface {
	ObserveRequest(op string, status int, elapsed time.Duration)
}

type Config struct {
	BaseURL    string
	Token      TokenSource
	Timeout    time.Duration
	MaxRetries int           // retries after the first attempt; 0 disables
	RetryDelay time.Duration // base delay, doubled per attempt
	RateLimit  float64       // requests per second; 0 disables
	HTTPClient *http.Client
	Observer   Observer
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	token      TokenSource
	headers    map[string]string
	maxRetries int
	retryDelay time.Duration
	limiter    *rate.Limiter
	observer   Observer
	validate   *validator.Validate
	log        zerolog.Logger
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	if cfg.Token == nil {
		cfg.Token = StaticToken("")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	c := &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		headers: map[string]string{
			"Accept":                     "application/json",
			"ngrok-skip-browser-warning": "true",
		},
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		observer:   cfg.Observer,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		log:        logger.WithComponent("api"),
	}
	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return c, nil
}

// BaseURL returns the API base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// request describes one API call.
type request struct {
	op          string
	method      string
	path        string
	body        any       // JSON encoded when non-nil
	raw         io.Reader // sent verbatim when non-nil
	contentType string
}

// do executes req and returns the response body for 2xx answers. Non-2xx
// answers become *APIError. Requests with a raw body are never retried.
func (c *Client) do(ctx context.Context, req request) ([]byte, error) {
	var payload []byte
	if req.body != nil {
		b, err := json.Marshal(req.body)
		if err != nil {
			return nil, &APIError{Op: req.op, Err: fmt.Errorf("encode body: %w", err)}
		}
		payload = b
		req.contentType = "application/json"
	}

	attempts := c.maxRetries + 1
	if req.raw != nil {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			delay := c.retryDelay * time.Duration(1<<(attempt-2))
			c.log.Warn().
				Err(lastErr).
				Str("op", req.op).
				Int("attempt", attempt).
				Dur("delay", delay).
				Msg("Retrying API request")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		body, retry, err := c.once(ctx, req, payload)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retry {
			break
		}
	}
	return nil, lastErr
}

func (c *Client) once(ctx context.Context, req request, payload []byte) ([]byte, bool, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, false, err
		}
	}

	var body io.Reader
	switch {
	case req.raw != nil:
		body = req.raw
	case payload != nil:
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+req.path, body)
	if err != nil {
		return nil, false, &APIError{Op: req.op, Err: err}
	}
	for k, v := range c.headers {
		httpReq.Header.Set(k, v)
	}
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}
	token, err := c.token(ctx)
	if err != nil {
		return nil, false, &APIError{Op: req.op, Err: fmt.Errorf("get token: %w", err)}
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.observe(req.op, 0, time.Since(start))
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, true, &APIError{Op: req.op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	c.observe(req.op, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, true, &APIError{Op: req.op, Status: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	c.log.Debug().
		Str("op", req.op).
		Str("method", req.method).
		Str("path", req.path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("API request completed")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		retry := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return nil, retry, newStatusError(req.op, resp.StatusCode, string(data))
	}
	return data, false, nil
}

func (c *Client) observe(op string, status int, elapsed time.Duration) {
	if c.observer != nil {
		c.observer.ObserveRequest(op, status, elapsed)
	}
}

// decodeList accepts either a bare JSON array or an object wrapping the array
// under key.
func decodeList(op string, data []byte, key string) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	var items []json.RawMessage
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, &APIError{Op: op, Err: errors.Join(ErrInvalidResponse, err)}
		}
		return items, nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, &APIError{Op: op, Err: errors.Join(ErrInvalidResponse, err)}
	}
	inner, ok := envelope[key]
	if !ok || bytes.Equal(bytes.TrimSpace(inner), []byte("null")) {
		return nil, nil
	}
	if err := json.Unmarshal(inner, &items); err != nil {
		return nil, &APIError{Op: op, Err: errors.Join(ErrInvalidResponse, err)}
	}
	return items, nil
}

// decodeObject accepts either the object itself or an object wrapping it
// under key.
func decodeObject(op string, data []byte, key string, out any) error {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return &APIError{Op: op, Err: errors.Join(ErrInvalidResponse, err)}
	}
	if inner, ok := envelope[key]; ok && len(inner) > 0 && inner[0] == '{' {
		data = inner
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &APIError{Op: op, Err: errors.Join(ErrInvalidResponse, err)}
	}
	return nil
}

func (c *Client) checkInput(op string, v any) error {
	if err := c.validate.Struct(v); err != nil {
		return &APIError{Op: op, Err: errors.Join(ErrInvalidInput, err)}
	}
	return nil
}
