package port

import (
	"context"
	"encoding/json"
	"time"

	"invoicelens/internal/ingest"
)

// FailureKind classifies why an extraction call produced no payload.
type FailureKind string

const (
	FailureNone              FailureKind = ""
	FailureTimeout           FailureKind = "timeout"
	FailureMalformedResponse FailureKind = "malformed_response"
	FailureRateLimited       FailureKind = "rate_limited"
	FailureUpstream          FailureKind = "upstream_error"
)

// ExtractInput carries the document handed to an extraction provider.
type ExtractInput struct {
	FileBytes   []byte
	ContentType string
	Filename    string
}

// ExtractResult is the outcome of one extraction call. Exactly one of Payload
// (on success) or Failure (otherwise) is meaningful.
type ExtractResult struct {
	Payload         ingest.Payload
	Raw             json.RawMessage
	Model           string
	Method          string
	Prompt          string
	ModelConfidence *float64

	Failure    FailureKind
	RetryAfter time.Duration
	Err        error
}

// OK reports whether the call returned a payload.
func (r *ExtractResult) OK() bool {
	return r.Failure == FailureNone && r.Payload != nil
}

// Extractor abstracts the external document understanding service.
// Implementations never return Go errors for remote failures; they classify them into the result.
type Extractor interface {
	Extract(ctx context.Context, input ExtractInput) *ExtractResult
}
