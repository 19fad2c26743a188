// Package vision talks to an OpenAI-compatible chat completions API with
// image inputs. It scores how faithfully a generated image follows its
// source floor plan and lists the rooms of a plan.
package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"floorplan-render-backend/internal/assets"
	"floorplan-render-backend/internal/common"
	"floorplan-render-backend/internal/metrics"
	"floorplan-render-backend/internal/pool"

	"go.uber.org/zap"
)

const serviceName = "vision"

const DefaultTimeout = 60 * time.Second

type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

type Client struct {
	baseURL    string
	apiKey     string
	model      string
	timeout    time.Duration
	httpClient *http.Client
	limiter    *pool.Limiter
	metrics    *metrics.Collector
	logger     *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

func WithCollector(m *metrics.Collector) Option {
	return func(c *Client) { c.metrics = m }
}

func NewClient(cfg Config, limiter *pool.Limiter, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	c := &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		timeout:    timeout,
		httpClient: &http.Client{},
		limiter:    limiter,
		logger:     logger.With(zap.String("component", "vision")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Available reports whether a credential is configured.
func (c *Client) Available() bool {
	return c != nil && c.apiKey != ""
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type message struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []message         `json:"messages"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func textPart(text string) contentPart {
	return contentPart{Type: "text", Text: text}
}

func imagePart(data []byte) contentPart {
	return contentPart{Type: "image_url", ImageURL: &imageURL{URL: assets.DataURI("", data)}}
}

// complete sends one JSON-mode chat completion and returns the message
// content. op labels log lines.
func (c *Client) complete(ctx context.Context, op string, parts []contentPart) (string, error) {
	if !c.Available() {
		return "", &common.ConfigurationError{Setting: "OPENAI_API_KEY"}
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("vision rate limit wait: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	content, err := c.do(ctx, callCtx, parts)
	status := "ok"
	if err != nil {
		status = "error"
		if common.IsTimeout(err) {
			status = "timeout"
		}
		c.logger.Warn("vision call failed", zap.String("op", op), zap.Error(err))
	}
	c.metrics.RecordExternalCall(serviceName, status, time.Since(start))
	return content, err
}

func (c *Client) do(ctx, callCtx context.Context, parts []contentPart) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model:          c.model,
		Messages:       []message{{Role: "user", Content: parts}},
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", common.TransportError(serviceName, ctx, callCtx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", common.TransportError(serviceName, ctx, callCtx, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &common.ServiceError{
			Service: serviceName,
			Status:  resp.StatusCode,
			Message: common.UpstreamMessage(body),
		}
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &common.ServiceError{Service: serviceName, Message: "invalid response body", Err: err}
	}
	if len(parsed.Choices) == 0 {
		return "", nil
	}
	return parsed.Choices[0].Message.Content, nil
}
