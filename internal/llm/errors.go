package llm

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrRateLimited marks a failure the remote API reported as rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrAttemptTimeout is returned when an attempt loses the race against its timeout.
	ErrAttemptTimeout = errors.New("attempt timed out")

	// ErrEmptyResponse is returned when a reply carries no choices.
	ErrEmptyResponse = errors.New("response has no choices")
)

// APIError is a non-2xx reply from the completions endpoint.
type APIError struct {
	StatusCode int
	Body       string
	RetryAfter string
}

func (e *APIError) Error() string {
	if len(e.Body) > 512 {
		return fmt.Sprintf("api error: status %d: %s...", e.StatusCode, e.Body[:512])
	}
	return fmt.Sprintf("api error: status %d: %s", e.StatusCode, e.Body)
}

// Is lets errors.Is(err, ErrRateLimited) match 429 replies.
func (e *APIError) Is(target error) bool {
	return target == ErrRateLimited && e.StatusCode == http.StatusTooManyRequests
}

// IsRateLimited reports whether err signals rate limiting.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}
