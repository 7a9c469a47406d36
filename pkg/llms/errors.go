package llms

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ErrorKind classifies a provider failure.
type ErrorKind string

const (
	ErrTimeout         ErrorKind = "timeout"
	ErrRateLimited     ErrorKind = "rate-limited"
	ErrInvalidResponse ErrorKind = "invalid-response"
	ErrUnavailable     ErrorKind = "unavailable"
)

// ProviderError is a typed LLM provider failure. The fallback chain
// inspects Kind to decide whether advancing to the next provider can help.
type ProviderError struct {
	// Provider that failed.
	Provider string

	// Kind classifies the failure.
	Kind ErrorKind

	// Attempted lists every provider tried, set only when Kind is
	// ErrUnavailable after chain exhaustion.
	Attempted []string

	Err error
}

func (e *ProviderError) Error() string {
	if len(e.Attempted) > 0 {
		return fmt.Sprintf("all providers unavailable (attempted: %s): %v",
			strings.Join(e.Attempted, ", "), e.Err)
	}
	return fmt.Sprintf("provider %s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError wraps err with a provider name and kind.
func NewProviderError(provider string, kind ErrorKind, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: kind, Err: err}
}

// classifyError maps a transport-level error or HTTP status to an ErrorKind.
func classifyError(provider string, statusCode int, err error) *ProviderError {
	switch {
	case err != nil && errors.Is(err, context.DeadlineExceeded):
		return NewProviderError(provider, ErrTimeout, err)
	case err != nil && isTimeout(err):
		return NewProviderError(provider, ErrTimeout, err)
	case statusCode == http.StatusTooManyRequests:
		return NewProviderError(provider, ErrRateLimited, errOrStatus(err, statusCode))
	case statusCode >= 500:
		return NewProviderError(provider, ErrUnavailable, errOrStatus(err, statusCode))
	case statusCode >= 400:
		return NewProviderError(provider, ErrInvalidResponse, errOrStatus(err, statusCode))
	default:
		return NewProviderError(provider, ErrUnavailable, errOrStatus(err, statusCode))
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func errOrStatus(err error, statusCode int) error {
	if err != nil {
		return err
	}
	return fmt.Errorf("HTTP %d", statusCode)
}
