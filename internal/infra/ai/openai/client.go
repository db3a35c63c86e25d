package openai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/bryanwahyu/contract-shield/internal/domain/ai"
)

const (
	DefaultModel = "gpt-4o"

	maxTokens = 8192
)

var errNoChoices = errors.New("response contained no choices")

// Client calls the chat completions API. A go-openai client is built per
// call because the credential belongs to the user profile.
type Client struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

func NewClient(baseURL, model string, timeout time.Duration) *Client {
	return &Client{BaseURL: baseURL, Model: model, Timeout: timeout}
}

func (c *Client) Invoke(ctx context.Context, systemPrompt, userPrompt, credential string) (string, error) {
	cfg := openai.DefaultConfig(credential)
	if c.BaseURL != "" {
		cfg.BaseURL = c.BaseURL
	}
	if c.Timeout > 0 {
		cfg.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	cli := openai.NewClientWithConfig(cfg)

	model := c.Model
	if model == "" {
		model = DefaultModel
	}
	req := openai.ChatCompletionRequest{
		Model: model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	}
	// reasoning models reject max_tokens
	if isReasoningModel(model) {
		req.MaxCompletionTokens = maxTokens
	} else {
		req.MaxTokens = maxTokens
	}

	resp, err := cli.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", &ai.ServiceError{Status: ai.StatusOther, Err: errNoChoices}
	}
	return resp.Choices[0].Message.Content, nil
}

func isReasoningModel(model string) bool {
	for _, p := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(model, p) {
			return true
		}
	}
	return false
}

func classify(err error) *ai.ServiceError {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &ai.ServiceError{Status: ai.StatusFromHTTP(apiErr.HTTPStatusCode), StatusCode: apiErr.HTTPStatusCode, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &ai.ServiceError{Status: ai.StatusFromHTTP(reqErr.HTTPStatusCode), StatusCode: reqErr.HTTPStatusCode, Err: err}
	}
	return &ai.ServiceError{Status: ai.StatusOther, Err: err}
}

var _ ai.Client = (*Client)(nil)
