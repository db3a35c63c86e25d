package ai

import (
	"errors"
	"fmt"
	"net/http"
)

// Status classifies a model service failure.
type Status string

const (
	StatusUnauthorized Status = "unauthorized"
	StatusRateLimited  Status = "rate_limited"
	StatusOther        Status = "other"
)

var (
	// ErrUnauthorized indicates the provider rejected the credential (HTTP 401/403).
	ErrUnauthorized = errors.New("ai credential rejected")

	// ErrRateLimited indicates the provider returned a quota/limit error (HTTP 429 or similar).
	ErrRateLimited = errors.New("ai rate limit exceeded")
)

// ServiceError wraps any failure of the model call.
type ServiceError struct {
	Status     Status
	StatusCode int
	Err        error
}

func (e *ServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("ai service error (%s, http %d): %v", e.Status, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("ai service error (%s): %v", e.Status, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Is lets errors.Is match the status sentinels.
func (e *ServiceError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == StatusUnauthorized
	case ErrRateLimited:
		return e.Status == StatusRateLimited
	}
	return false
}

// StatusFromHTTP maps an HTTP status code to a Status.
func StatusFromHTTP(code int) Status {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return StatusUnauthorized
	case http.StatusTooManyRequests:
		return StatusRateLimited
	default:
		return StatusOther
	}
}

// NewHTTPError builds a ServiceError from a non-2xx response.
func NewHTTPError(code int, body string) *ServiceError {
	if body == "" {
		body = http.StatusText(code)
	}
	return &ServiceError{
		Status:     StatusFromHTTP(code),
		StatusCode: code,
		Err:        fmt.Errorf("api error (%d): %s", code, body),
	}
}

// AsServiceError returns err as a *ServiceError, classifying unknown errors
// as StatusOther.
func AsServiceError(err error) *ServiceError {
	if err == nil {
		return nil
	}
	var se *ServiceError
	if errors.As(err, &se) {
		return se
	}
	return &ServiceError{Status: StatusOther, Err: err}
}
