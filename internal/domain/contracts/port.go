package contracts

import "context"

//go:generate mockgen -source=port.go -destination=../../mock/contracts_repo_mock.go -package=mock

// HistoryRepository port (persistence of the history snapshot)
type HistoryRepository interface {
	// LoadHistory returns nil, nil when nothing has been saved yet.
	LoadHistory(ctx context.Context) (*HistorySnapshot, error)
	SaveHistory(ctx context.Context, s HistorySnapshot) error
}

// ReportStore port (object storage for exported reports)
type ReportStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) (string, error)
}
