package extractor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"invoicelens/internal/port"
)

// ErrMalformedResponse marks a provider reply that did not contain a usable JSON document.
var ErrMalformedResponse = errors.New("malformed extraction response")

// RateLimitError indicates a provider returned HTTP 429.
type RateLimitError struct {
	Err        error
	RetryAfter time.Duration
	Provider   string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s rate limited (retry after %s): %v", e.Provider, e.RetryAfter, e.Err)
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// NewRateLimitError creates a RateLimitError. If retryAfterSecs is 0, defaults to 60s.
func NewRateLimitError(provider string, err error, retryAfterSecs int) *RateLimitError {
	if retryAfterSecs <= 0 {
		retryAfterSecs = 60
	}
	return &RateLimitError{
		Err:        err,
		RetryAfter: time.Duration(retryAfterSecs) * time.Second,
		Provider:   provider,
	}
}

// ParseRetryAfterHeader parses a Retry-After header value into seconds.
// Both the delta-seconds and the HTTP-date forms are accepted. Returns 0 when unusable.
func ParseRetryAfterHeader(val string) int {
	if val == "" {
		return 0
	}
	if secs, err := strconv.Atoi(val); err == nil {
		return secs
	}
	if at, err := time.Parse(time.RFC1123, val); err == nil {
		if secs := int(time.Until(at).Seconds()); secs > 0 {
			return secs
		}
	}
	return 0
}

// Classify maps a provider error onto the failure vocabulary of port.ExtractResult.
func Classify(err error) port.FailureKind {
	if err == nil {
		return port.FailureNone
	}
	var rlErr *RateLimitError
	if errors.As(err, &rlErr) {
		return port.FailureRateLimited
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return port.FailureTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return port.FailureTimeout
	}
	if errors.Is(err, ErrMalformedResponse) {
		return port.FailureMalformedResponse
	}
	return port.FailureUpstream
}

// Failed builds the result for a failed call, keeping model and prompt for the audit trail.
func Failed(err error, method, model, prompt string) *port.ExtractResult {
	res := &port.ExtractResult{
		Method:  method,
		Model:   model,
		Prompt:  prompt,
		Failure: Classify(err),
		Err:     err,
	}
	var rlErr *RateLimitError
	if errors.As(err, &rlErr) {
		res.RetryAfter = rlErr.RetryAfter
	}
	return res
}
