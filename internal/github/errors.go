package github

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Sentinel errors classifying remote API failures by status code.
var (
	// ErrNotFound indicates a 404 from the API.
	ErrNotFound = errors.New("github: not found")

	// ErrAuth indicates an authentication failure (401). Fatal, never retried.
	ErrAuth = errors.New("github: authentication failed")

	// ErrRateLimited indicates a rate-limit response (403 with exhausted
	// quota, or 429). Retryable with backoff, bounded.
	ErrRateLimited = errors.New("github: rate limited")

	// ErrServer indicates a 5xx response. Retryable with backoff, bounded.
	ErrServer = errors.New("github: server error")

	// ErrMaxRetries indicates the retry wrapper exhausted its attempt cap
	// on rate-limit responses. Distinguishable from the underlying
	// rate-limit error by callers that want to surface a manual remedy.
	ErrMaxRetries = errors.New("github: max retries exceeded due to rate limiting")
)

// APIError carries the classified failure for one API call.
type APIError struct {
	StatusCode int
	Message    string
	// RetryAfter is the server-requested delay from a Retry-After header,
	// zero when the header was absent.
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error: %s (status %d)", e.Message, e.StatusCode)
}

// Unwrap maps the status code onto the sentinel taxonomy so callers can
// use errors.Is without inspecting codes.
func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case e.StatusCode == http.StatusUnauthorized:
		return ErrAuth
	case e.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case e.StatusCode == http.StatusForbidden && e.RetryAfter > 0:
		return ErrRateLimited
	case e.StatusCode >= 500:
		return ErrServer
	}
	return nil
}

// classifyResponse builds an APIError from a non-2xx response. A 403
// only counts as rate limiting when the quota headers say so; other 403s
// are treated as auth failures.
func classifyResponse(statusCode int, body string, headers http.Header) error {
	apiErr := &APIError{StatusCode: statusCode, Message: body}

	switch statusCode {
	case http.StatusTooManyRequests:
		apiErr.RetryAfter = parseRetryAfter(headers)
	case http.StatusForbidden:
		if headers.Get("X-RateLimit-Remaining") == "0" || headers.Get("Retry-After") != "" {
			apiErr.RetryAfter = parseRetryAfter(headers)
			if apiErr.RetryAfter == 0 {
				apiErr.RetryAfter = resetDelay(headers)
			}
			if apiErr.RetryAfter == 0 {
				// Rate limited but no server hint; the retry wrapper
				// falls back to exponential backoff.
				apiErr.StatusCode = http.StatusTooManyRequests
			}
		} else {
			apiErr.StatusCode = http.StatusUnauthorized
		}
	}

	return apiErr
}

// parseRetryAfter reads a Retry-After header in seconds.
func parseRetryAfter(headers http.Header) time.Duration {
	retryAfter := headers.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}
	seconds, err := strconv.Atoi(retryAfter)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// resetDelay computes a delay from the X-RateLimit-Reset epoch header.
func resetDelay(headers http.Header) time.Duration {
	reset := headers.Get("X-RateLimit-Reset")
	if reset == "" {
		return 0
	}
	epoch, err := strconv.ParseInt(reset, 10, 64)
	if err != nil {
		return 0
	}
	delay := time.Until(time.Unix(epoch, 0))
	if delay < 0 {
		return 0
	}
	return delay
}

// IsRateLimited reports whether err is (or wraps) a rate-limit failure.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}
