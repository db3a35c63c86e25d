package gemini

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/bryanwahyu/contract-shield/internal/domain/ai"
)

const DefaultModel = "gemini-1.5-flash"

var errEmptyCandidate = errors.New("response contained no candidates")

// Client calls the Gemini API with the credential given per call.
type Client struct {
	Model   string
	Timeout time.Duration
}

func NewClient(model string, timeout time.Duration) *Client {
	if model == "" {
		model = DefaultModel
	}
	return &Client{Model: model, Timeout: timeout}
}

func (c *Client) Invoke(ctx context.Context, systemPrompt, userPrompt, credential string) (string, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(credential))
	if err != nil {
		return "", &ai.ServiceError{Status: ai.StatusOther, Err: err}
	}
	defer cl.Close()

	m := cl.GenerativeModel(c.Model)
	m.ResponseMIMEType = "application/json"
	if systemPrompt != "" {
		m.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(systemPrompt)},
		}
	}

	resp, err := m.GenerateContent(ctx, genai.Text(userPrompt))
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", &ai.ServiceError{Status: ai.StatusOther, Err: errEmptyCandidate}
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String(), nil
}

func classify(err error) *ai.ServiceError {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &ai.ServiceError{Status: ai.StatusFromHTTP(gerr.Code), StatusCode: gerr.Code, Err: err}
	}
	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Unauthenticated:
			return &ai.ServiceError{Status: ai.StatusUnauthorized, StatusCode: http.StatusUnauthorized, Err: err}
		case codes.PermissionDenied:
			return &ai.ServiceError{Status: ai.StatusUnauthorized, StatusCode: http.StatusForbidden, Err: err}
		case codes.ResourceExhausted:
			return &ai.ServiceError{Status: ai.StatusRateLimited, StatusCode: http.StatusTooManyRequests, Err: err}
		}
	}
	return &ai.ServiceError{Status: ai.StatusOther, Err: err}
}

var _ ai.Client = (*Client)(nil)
