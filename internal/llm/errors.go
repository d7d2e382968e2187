package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// maxErrorBody caps the response body kept on a ProviderError.
const maxErrorBody = 500

// ProviderError is returned by providers for any failed call: transport
// failures, deadlines, non-2xx statuses and undecodable responses.
type ProviderError struct {
	Provider   string
	StatusCode int    // zero when no response was received
	Body       string // truncated response body, if any
	Err        error
}

// NewStatusError builds a ProviderError from a non-success response body.
func NewStatusError(provider string, status int, body []byte) *ProviderError {
	return &ProviderError{Provider: provider, StatusCode: status, Body: Truncate(string(body), maxErrorBody)}
}

// NewTransportError wraps an error raised before a usable response existed.
func NewTransportError(provider string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Err: err}
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		body := e.Body
		if body == "" {
			body = http.StatusText(e.StatusCode)
		}
		return fmt.Sprintf("%s: HTTP %d: %s", e.Provider, e.StatusCode, body)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Provider, Truncate(e.Err.Error(), maxErrorBody))
	}
	return e.Provider + ": request failed"
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// RateLimited reports whether the provider rejected the call with HTTP 429.
func (e *ProviderError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// Timeout reports whether the call hit its deadline.
func (e *ProviderError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// IsRateLimited reports whether err is a rate-limit class failure.
func IsRateLimited(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.RateLimited()
}

// Truncate shortens s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
