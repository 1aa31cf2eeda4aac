// -----------------------------------------------------------------------
// Adapter errors - typed failures the HTTP-backed adapters return, mirrored
// on the rate-limit/API-error pair the teacher's eodhd client defines.
// -----------------------------------------------------------------------

package adapters

import (
	"fmt"
	"time"
)

// APIError represents a non-200 response from an adapter's backing service.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("adapter API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// RateLimitError is returned when a request is abandoned waiting on the
// adapter's token bucket because the caller's context expired first.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("adapter rate limit exceeded, retry after %v", e.RetryAfter)
}
