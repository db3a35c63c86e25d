package contracts

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyInput is returned when the submitted text is empty or whitespace only.
	ErrEmptyInput = errors.New("no contract text provided")

	// ErrMissingCredential is returned when no model credential is configured.
	ErrMissingCredential = errors.New("model credential is required")

	// ErrQuotaExceeded is returned when the monthly review quota is used up.
	ErrQuotaExceeded = errors.New("monthly review limit reached")

	// ErrAnalysisNotFound is returned when an analysis is not in the cache,
	// either because it was evicted or because it never existed.
	ErrAnalysisNotFound = errors.New("analysis not found")

	// ErrExportDisabled is returned when no report store is configured.
	ErrExportDisabled = errors.New("report export is not configured")
)

// ParseError reports a model response that could not be read as a single
// structured object. It carries no partial data.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return "failed to parse analysis"
	}
	return fmt.Sprintf("failed to parse analysis: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
