// Package remote is the authenticated JSON client for the payment platform API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://api.withflex.com"
	DefaultTimeout = 30 * time.Second

	TraceHeader          = "X-Request-Id"
	IdempotencyKeyHeader = "Idempotency-Key"
)

type Config struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Requester performs one request against the platform and decodes the value
// found under envelope into out. Resources depend on this, not on *Client.
type Requester interface {
	Request(ctx context.Context, method, path string, body any, envelope string, out any) error
}

var _ Requester = (*Client)(nil)

type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func New(cfg Config, logger *zap.Logger) *Client {
	baseURL := strings.TrimSuffix(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		apiKey:  strings.TrimSpace(cfg.APIKey),
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Configured reports whether the client has an API key.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

func (c *Client) Request(ctx context.Context, method, path string, body any, envelope string, out any) error {
	url := c.baseURL + path

	if c.apiKey == "" {
		c.logger.Error("remote request without api key", zap.String("method", method), zap.String("url", url))
		return ErrNoAPIKey
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if traceID := TraceID(ctx); traceID != "" {
		req.Header.Set(TraceHeader, traceID)
	}
	if method == http.MethodPost {
		key := IdempotencyKey(ctx)
		if key == "" {
			key = uuid.NewString()
		}
		req.Header.Set(IdempotencyKeyHeader, key)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("remote request failed",
			zap.String("method", method),
			zap.String("url", url),
			zap.Error(err))
		return &TransportError{Method: method, URL: url, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Error("failed to read remote response",
			zap.String("method", method),
			zap.String("url", url),
			zap.Int("status", resp.StatusCode),
			zap.Error(err))
		return &TransportError{Method: method, URL: url, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("remote request returned non-2xx",
			zap.String("method", method),
			zap.String("url", url),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(raw)))
		return &ResponseError{Method: method, URL: url, StatusCode: resp.StatusCode, Body: string(raw)}
	}

	c.logger.Debug("remote request",
		zap.String("method", method),
		zap.String("url", url),
		zap.Int("status", resp.StatusCode))

	if envelope == "" && out == nil {
		return nil
	}

	if err = decode(raw, envelope, out); err != nil {
		c.logger.Error("remote response could not be decoded",
			zap.String("method", method),
			zap.String("url", url),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(raw)),
			zap.Error(err))
		return &ResponseError{Method: method, URL: url, StatusCode: resp.StatusCode, Body: string(raw), Message: err.Error()}
	}

	return nil
}

func decode(raw []byte, envelope string, out any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return fmt.Errorf("empty response body")
	}

	if envelope == "" {
		return json.Unmarshal(raw, out)
	}

	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	inner, ok := wrapped[envelope]
	if !ok || len(inner) == 0 || string(inner) == "null" {
		return fmt.Errorf("response is missing %q", envelope)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(inner, out); err != nil {
		return fmt.Errorf("failed to unmarshal %q: %w", envelope, err)
	}
	return nil
}

func (c *Client) Get(ctx context.Context, path, envelope string, out any) error {
	return c.Request(ctx, http.MethodGet, path, nil, envelope, out)
}

func (c *Client) Post(ctx context.Context, path string, body any, envelope string, out any) error {
	return c.Request(ctx, http.MethodPost, path, body, envelope, out)
}

func (c *Client) Patch(ctx context.Context, path string, body any, envelope string, out any) error {
	return c.Request(ctx, http.MethodPatch, path, body, envelope, out)
}

func (c *Client) Delete(ctx context.Context, path string) error {
	return c.Request(ctx, http.MethodDelete, path, nil, "", nil)
}
