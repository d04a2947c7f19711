// Package agent implements the processing pipeline: content extraction,
// summarization with bounded self-correction, validation, and the
// orchestrator that sequences them. Agents share nothing but the Result
// envelope and the error taxonomy; each is independently testable.
package agent

import (
	"fmt"

	"github.com/po4yka/bite-size-reader-sub001/internal/contract"
)

// ErrorKind classifies pipeline failures. Callers branch on the kind; stages
// propagate it verbatim without wrapping or renaming.
type ErrorKind string

const (
	ErrUnsupportedSource    ErrorKind = "unsupported_source"
	ErrExtractionFailed     ErrorKind = "extraction_failed"
	ErrInvalidConfiguration ErrorKind = "invalid_configuration"
	ErrGenerationFailed     ErrorKind = "generation_failed"
	ErrValidationCrashed    ErrorKind = "validation_crashed"
	ErrValidationExhausted  ErrorKind = "validation_exhausted"
	ErrCancelled            ErrorKind = "cancelled"
)

// ErrorDetail is the typed failure carried by a Result. Violations is set
// only for validation_exhausted, holding the last validation outcome so the
// caller can diagnose the persistent failure mode.
type ErrorDetail struct {
	Kind       ErrorKind            `json:"kind"`
	Message    string               `json:"message"`
	Violations []contract.Violation `json:"violations,omitempty"`
}

func (e *ErrorDetail) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Result is the envelope every stage returns. Exactly one of Output/Err is
// meaningful depending on Success. Metadata is additive only: later stages
// may add keys but never remove keys written by earlier stages.
type Result[T any] struct {
	Success  bool           `json:"success"`
	Output   T              `json:"output,omitempty"`
	Err      *ErrorDetail   `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Succeed wraps an output with its metadata.
func Succeed[T any](output T, metadata map[string]any) Result[T] {
	return Result[T]{Success: true, Output: output, Metadata: metadata}
}

// Fail wraps a failure with its metadata. Metadata survives every failure
// path so the retry trajectory stays inspectable.
func Fail[T any](detail *ErrorDetail, metadata map[string]any) Result[T] {
	return Result[T]{Success: false, Err: detail, Metadata: metadata}
}

// failKind is shorthand for Fail with a fresh detail.
func failKind[T any](kind ErrorKind, msg string, metadata map[string]any) Result[T] {
	return Fail[T](&ErrorDetail{Kind: kind, Message: msg}, metadata)
}

// mergeMetadata copies src keys into dst without removing anything already
// present. dst wins on collision so earlier-stage values are preserved.
func mergeMetadata(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		if _, exists := dst[k]; !exists {
			dst[k] = v
		}
	}
	return dst
}

// AttemptStats records one drafting cycle for post-hoc analysis. The ordered
// sequence of these under the "attempts" metadata key is the full retry
// trajectory, not just the final attempt.
type AttemptStats struct {
	Attempt   int     `json:"attempt"`
	LatencyMS int64   `json:"latency_ms"`
	Tokens    int64   `json:"tokens"`
	Cost      float64 `json:"cost"`
	Valid     bool    `json:"valid"`
}

// Metadata keys shared across stages.
const (
	MetaCorrelationID = "correlation_id"
	MetaAttempts      = "attempts"
	MetaLatencyMS     = "latency_ms"
)
