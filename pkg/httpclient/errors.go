package httpclient

import (
	"fmt"
	"time"
)

// RetryableError marks an HTTP failure the client may retry, carrying the
// server-advertised backoff when a rate-limit header supplied one.
type RetryableError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration
	Err        error
}

func (e *RetryableError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("HTTP %d: %s (retry after %v)", e.StatusCode, e.Message, e.RetryAfter)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether the error warrants another attempt. Always
// true for this type; callers branch on the presence of the type itself.
func (e *RetryableError) IsRetryable() bool {
	return true
}
