// Package imagen is the client for the OpenAI-compatible image edit API
// that styles floor plans.
package imagen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"floorplan-render-backend/internal/assets"
	"floorplan-render-backend/internal/common"
	"floorplan-render-backend/internal/metrics"
	"floorplan-render-backend/internal/pool"

	"go.uber.org/zap"
)

const serviceName = "imagen"

// DefaultTimeout bounds a single edit call, including fetching a URL result.
const DefaultTimeout = 120 * time.Second

type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Size    string
	Quality string
	Timeout time.Duration
}

type Client struct {
	baseURL    string
	apiKey     string
	model      string
	size       string
	quality    string
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

// EditRequest asks for a styled version of Image. Empty Size and Quality
// fall back to the client defaults.
type EditRequest struct {
	Image   []byte
	Prompt  string
	Size    string
	Quality string
}

// Result is a generated image. URL is set when the API answered with a
// hosted image instead of inline bytes.
type Result struct {
	Image         []byte
	URL           string
	RevisedPrompt string
}

type editResponse struct {
	Data []struct {
		B64JSON       string `json:"b64_json"`
		URL           string `json:"url"`
		RevisedPrompt string `json:"revised_prompt"`
	} `json:"data"`
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
		size:       cfg.Size,
		quality:    cfg.Quality,
		timeout:    timeout,
		httpClient: &http.Client{},
		limiter:    limiter,
		logger:     logger.With(zap.String("component", "imagen")),
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

// Edit sends one image edit request. The call is bounded by the client
// timeout; there are no retries.
func (c *Client) Edit(ctx context.Context, req EditRequest) (*Result, error) {
	if !c.Available() {
		return nil, &common.ConfigurationError{Setting: "OPENAI_API_KEY"}
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("imagen rate limit wait: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	result, err := c.edit(ctx, callCtx, req)
	status := "ok"
	if err != nil {
		status = "error"
		if common.IsTimeout(err) {
			status = "timeout"
		}
	}
	c.metrics.RecordExternalCall(serviceName, status, time.Since(start))

	if err != nil {
		c.logger.Warn("image edit failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return nil, err
	}
	c.logger.Debug("image edit completed",
		zap.Int("bytes", len(result.Image)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}

func (c *Client) edit(ctx, callCtx context.Context, req EditRequest) (*Result, error) {
	body, contentType, err := c.multipartBody(req)
	if err != nil {
		return nil, fmt.Errorf("failed to build request body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+"/images/edits", body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, common.TransportError(serviceName, ctx, callCtx, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, common.TransportError(serviceName, ctx, callCtx, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &common.ServiceError{
			Service: serviceName,
			Status:  resp.StatusCode,
			Message: common.UpstreamMessage(respBody),
		}
	}

	var parsed editResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, &common.ServiceError{Service: serviceName, Message: "invalid response body", Err: err}
	}
	if len(parsed.Data) == 0 {
		return nil, &common.ServiceError{Service: serviceName, Message: "response contained no image"}
	}

	item := parsed.Data[0]
	result := &Result{URL: item.URL, RevisedPrompt: item.RevisedPrompt}
	switch {
	case item.B64JSON != "":
		result.Image, err = base64.StdEncoding.DecodeString(item.B64JSON)
		if err != nil {
			return nil, &common.ServiceError{Service: serviceName, Message: "invalid base64 image", Err: err}
		}
	case item.URL != "":
		result.Image, err = assets.Fetch(callCtx, c.httpClient, item.URL)
		if err != nil {
			if callCtx.Err() != nil {
				return nil, common.TransportError(serviceName, ctx, callCtx, err)
			}
			return nil, &common.ServiceError{Service: serviceName, Message: "failed to fetch generated image", Err: err}
		}
	default:
		return nil, &common.ServiceError{Service: serviceName, Message: "response contained no image"}
	}

	return result, nil
}

func (c *Client) multipartBody(req EditRequest) (*bytes.Buffer, string, error) {
	size := req.Size
	if size == "" {
		size = c.size
	}
	quality := req.Quality
	if quality == "" {
		quality = c.quality
	}

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	fields := [][2]string{
		{"model", c.model},
		{"prompt", req.Prompt},
		{"n", "1"},
		{"size", size},
		{"quality", quality},
	}
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="image"; filename="floorplan.png"`)
	header.Set("Content-Type", assets.ContentType(req.Image))
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(req.Image); err != nil {
		return nil, "", err
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return body, w.FormDataContentType(), nil
}
