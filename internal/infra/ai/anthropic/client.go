package anthropic

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/bryanwahyu/contract-shield/internal/domain/ai"
)

const (
	DefaultBaseURL = "https://api.anthropic.com"
	DefaultModel   = "claude-sonnet-4-20250514"
	APIVersion     = "2023-06-01"

	maxTokens = 8192
)

var errEmptyContent = errors.New("response contained no text content")

type Config struct {
	BaseURL string
	Model   string
	Timeout time.Duration
	Retries int
}

// Client calls the Messages API. The credential is supplied per call.
type Client struct {
	http  *resty.Client
	model string
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}

	cli := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("anthropic-version", APIVersion).
		SetHeader("Content-Type", "application/json").
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(500 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= http.StatusInternalServerError
		})

	return &Client{http: cli, model: cfg.Model}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system"`
	Messages  []message `json:"messages"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type messagesResponse struct {
	Content []contentBlock `json:"content"`
}

// Invoke sends one user message and returns the text of the first content
// block.
func (c *Client) Invoke(ctx context.Context, systemPrompt, userPrompt, credential string) (string, error) {
	var out messagesResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("x-api-key", credential).
		SetBody(messagesRequest{
			Model:     c.model,
			MaxTokens: maxTokens,
			System:    systemPrompt,
			Messages:  []message{{Role: "user", Content: userPrompt}},
		}).
		SetResult(&out).
		Post("/v1/messages")
	if err != nil {
		return "", &ai.ServiceError{Status: ai.StatusOther, Err: err}
	}
	if resp.IsError() {
		return "", ai.NewHTTPError(resp.StatusCode(), strings.TrimSpace(string(resp.Body())))
	}
	if len(out.Content) == 0 {
		return "", &ai.ServiceError{Status: ai.StatusOther, StatusCode: resp.StatusCode(), Err: errEmptyContent}
	}
	return out.Content[0].Text, nil
}

var _ ai.Client = (*Client)(nil)
