// internal/completion/client.go
package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "answer-gateway/internal/common/errors"
	commonhttp "answer-gateway/internal/common/http"
	"answer-gateway/internal/common/logger"
)

const (
	betaHeader = "OpenAI-Beta"
	betaValue  = "assistants=v2"

	maxResponseBytes = 8 << 20
)

type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
}

// Client talks to the remote completion service over HTTP. Every failure is
// returned as a classified *errors.StandardError.
type Client struct {
	config *Config
	http   *commonhttp.Client
	logger Logger
}

func NewClient(cfg *Config, log Logger, opts ...commonhttp.Option) *Client {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	opts = append([]commonhttp.Option{commonhttp.WithRateLimit(cfg.RequestsPerSecond, cfg.Burst)}, opts...)
	return &Client{
		config: cfg,
		http:   commonhttp.NewClient(cfg.Timeout, opts...),
		logger: log,
	}
}

type requestOptions struct {
	beta        bool
	contentType string
}

func (c *Client) url(path string) string {
	return strings.TrimRight(c.config.BaseURL, "/") + path
}

// doJSON sends payload as JSON (when non-nil) and decodes a 2xx body into out (when non-nil).
func (c *Client) doJSON(ctx context.Context, method, path string, payload, out interface{}, beta bool) error {
	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return apperrors.NewInternalError(fmt.Errorf("encode request: %w", err))
		}
		body = bytes.NewReader(buf)
	}

	raw, err := c.send(ctx, method, path, body, requestOptions{beta: beta, contentType: "application/json"})
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return apperrors.NewMalformedResponseError(fmt.Errorf("decode %s %s: %w", method, path, err))
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, body io.Reader, opts requestOptions) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.url(path), body)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	if body != nil && opts.contentType != "" {
		req.Header.Set("Content-Type", opts.contentType)
	}
	if opts.beta {
		req.Header.Set(betaHeader, betaValue)
	}

	resp, err := c.http.DoWithContext(ctx, req)
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, classifyTransport(err)
	}

	if resp.StatusCode/100 != 2 {
		stdErr := classifyHTTP(resp.StatusCode, raw)
		c.logger.Warn("completion service returned an error", map[string]interface{}{
			"method":    method,
			"path":      path,
			"status":    resp.StatusCode,
			"errorCode": string(stdErr.Code),
			"details":   stdErr.Details,
		})
		return nil, stdErr
	}

	c.logger.Debug("completion service call succeeded", map[string]interface{}{
		"method": method,
		"path":   path,
		"status": resp.StatusCode,
		"bytes":  len(raw),
	})
	return raw, nil
}
