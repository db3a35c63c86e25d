package ai

import "context"

//go:generate mockgen -source=port.go -destination=../../mock/ai_client_mock.go -package=mock

// Client invokes the external model. Implementations return *ServiceError
// for transport failures and non-2xx responses.
type Client interface {
	Invoke(ctx context.Context, systemPrompt, userPrompt, credential string) (string, error)
}
