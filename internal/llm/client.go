// Package llm calls an OpenAI-compatible chat completion endpoint.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("completion api not configured")

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options tunes a single completion call.
type Options struct {
	Temperature float64
	MaxTokens   int
}

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type completionResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Client is a chat completion client. The zero-key client answers every
// call with ErrNotConfigured.
type Client struct {
	http   *resty.Client
	model  string
	apiKey string
	logger *zap.Logger
}

func NewClient(baseURL, apiKey, model string, timeout time.Duration, logger *zap.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if apiKey != "" {
		httpClient.SetAuthToken(apiKey)
	}
	return &Client{http: httpClient, model: model, apiKey: apiKey, logger: logger.Named("llm")}
}

// Configured reports whether an API key is set.
func (c *Client) Configured() bool { return c.apiKey != "" }

// Complete returns the trimmed content of the first choice.
func (c *Client) Complete(ctx context.Context, messages []Message, opts Options) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}

	var out completionResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(completionRequest{
			Model:       c.model,
			Messages:    messages,
			Temperature: opts.Temperature,
			MaxTokens:   opts.MaxTokens,
		}).
		SetResult(&out).
		SetError(&out).
		Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	if resp.IsError() {
		msg := resp.Status()
		if out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		c.logger.Warn("completion api returned error", zap.Int("status_code", resp.StatusCode()), zap.String("msg", msg))
		return "", fmt.Errorf("completion api error: %s (status: %d)", msg, resp.StatusCode())
	}
	if len(out.Choices) == 0 {
		return "", errors.New("completion api returned no choices")
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}
