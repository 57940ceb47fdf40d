package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrTransientNetwork = errors.New("transient network error")
	ErrRateLimited      = errors.New("rate limited")
	ErrSessionExpired   = errors.New("session expired")
	ErrParse            = errors.New("parse error")
	ErrValidation       = errors.New("validation error")
	ErrDetailExtraction = errors.New("detail extraction error")
	ErrFatalConfig      = errors.New("fatal config error")
	ErrClientStatus     = errors.New("non-retryable client error")
)

// HTTPError is a classified response failure. Generation is the session
// handle generation the request was sent with.
type HTTPError struct {
	Status     int
	URL        string
	RetryAfter time.Duration
	Generation uint64
	Body       string
	kind       error
}

func NewHTTPError(status int, url string, generation uint64) *HTTPError {
	return &HTTPError{Status: status, URL: url, Generation: generation, kind: ClassifyStatus(status)}
}

func (e *HTTPError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%v: status %d url=%s body=%s", e.kind, e.Status, e.URL, e.Body)
	}
	return fmt.Sprintf("%v: status %d url=%s", e.kind, e.Status, e.URL)
}

func (e *HTTPError) Unwrap() error { return e.kind }

// ClassifyStatus maps a non-2xx status to the taxonomy sentinel.
func ClassifyStatus(status int) error {
	switch {
	case status == 401 || status == 403:
		return ErrSessionExpired
	case status == 429:
		return ErrRateLimited
	case status == 408 || status >= 500:
		return ErrTransientNetwork
	default:
		return ErrClientStatus
	}
}

// Retryable reports whether err is worth another attempt.
func Retryable(err error) bool {
	return errors.Is(err, ErrTransientNetwork) || errors.Is(err, ErrRateLimited)
}

// Kind names the taxonomy class of err for run reports.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrFatalConfig):
		return "FatalConfigError"
	case errors.Is(err, ErrRateLimited):
		return "RateLimitError"
	case errors.Is(err, ErrSessionExpired):
		return "SessionExpiredError"
	case errors.Is(err, ErrTransientNetwork):
		return "TransientNetworkError"
	case errors.Is(err, ErrParse):
		return "ParseError"
	case errors.Is(err, ErrValidation):
		return "ValidationError"
	case errors.Is(err, ErrDetailExtraction):
		return "DetailExtractionError"
	case errors.Is(err, ErrClientStatus):
		return "ClientError"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "Cancelled"
	default:
		return "Error"
	}
}
