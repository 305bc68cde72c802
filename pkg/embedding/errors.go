package embedding

import (
	"errors"
	"fmt"
	"net/http"
)

// Config errors are fatal and never retried.
var (
	ErrMissingAPIKey = errors.New("embedding provider API key is not configured")
	ErrMissingModel  = errors.New("embedding model is not configured")
)

// FormatError indicates a provider response that could not be normalized to
// a numeric vector. It fails the single embedding call; callers decide
// whether to skip the unit or fail the request.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("malformed embedding response: %s", e.Reason)
}

// ProviderError is a non-2xx HTTP response from the embedding provider.
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("embedding provider error (status %d): %s", e.StatusCode, e.Body)
}

// Retryable reports whether the status is a transient provider condition.
func (e *ProviderError) Retryable() bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusServiceUnavailable:
		return true
	}
	return false
}

// IsRetryable is the retry predicate for embedding calls: only transient
// provider HTTP failures qualify. Format and config errors never do.
func IsRetryable(err error) bool {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.Retryable()
	}
	return false
}
