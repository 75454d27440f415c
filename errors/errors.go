// Package errors provides structured error handling for the analysis
// pipeline. Errors carry a machine-readable code, the pipeline stage they
// originated from, and a retryable flag so the orchestrator can apply its
// partial-failure policy without string matching.
package errors

import (
	"errors"
	"fmt"
)

// PipelineError is the unified error type for pipeline stages.
type PipelineError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Stage identifies the pipeline stage that produced the error.
	Stage string `json:"stage,omitempty"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// Fatal indicates the whole session must fail.
	Fatal bool `json:"fatal"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *PipelineError) Error() string {
	switch {
	case e.Stage != "" && e.Cause != nil:
		return fmt.Sprintf("%s [%s]: %s (cause: %v)", e.Code, e.Stage, e.Message, e.Cause)
	case e.Stage != "":
		return fmt.Sprintf("%s [%s]: %s", e.Code, e.Stage, e.Message)
	case e.Cause != nil:
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// Unwrap returns the underlying cause of the error.
func (e *PipelineError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause and returns the receiver.
func (e *PipelineError) WithCause(cause error) *PipelineError {
	e.Cause = cause
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *PipelineError) WithDetail(key string, value any) *PipelineError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// --- Constructors ---

// StageFailure creates an error for a collaborator failing within a stage.
func StageFailure(stage string, cause error) *PipelineError {
	return &PipelineError{
		Code: ErrCodeStageFailure, Stage: stage,
		Message:   fmt.Sprintf("stage %s failed", stage),
		Retryable: true, Cause: cause,
	}
}

// StageTimeout creates an error for a stage exceeding its deadline.
func StageTimeout(stage string) *PipelineError {
	return &PipelineError{
		Code: ErrCodeStageTimeout, Stage: stage,
		Message:   fmt.Sprintf("stage %s exceeded its deadline", stage),
		Retryable: true,
	}
}

// SchemaValidation creates an error for a malformed semantic-analysis
// response. Treated as retryable, same as a transient stage failure.
func SchemaValidation(analysisType string, cause error) *PipelineError {
	return &PipelineError{
		Code: ErrCodeSchemaValidation, Stage: "semantic",
		Message:   fmt.Sprintf("malformed %s response", analysisType),
		Retryable: true, Cause: cause,
		Details: map[string]any{"analysis_type": analysisType},
	}
}

// CacheUnavailable creates an error for an unreachable cache backend.
// The pipeline treats this as a cache miss and proceeds uncached.
func CacheUnavailable(cause error) *PipelineError {
	return &PipelineError{
		Code:    ErrCodeCacheUnavailable,
		Message: "cache backend unavailable, proceeding uncached",
		Cause:   cause,
	}
}

// FatalPipeline creates an error that aborts the whole session.
func FatalPipeline(stage string, cause error) *PipelineError {
	return &PipelineError{
		Code: ErrCodeFatalPipeline, Stage: stage,
		Message: fmt.Sprintf("stage %s failed and cannot be degraded", stage),
		Fatal:   true, Cause: cause,
	}
}

// Cancelled creates an error for a cancelled session.
func Cancelled(stage string) *PipelineError {
	return &PipelineError{
		Code: ErrCodeCancelled, Stage: stage,
		Message: "session cancelled",
		Fatal:   true,
	}
}

// InvalidInput creates an error for malformed pipeline input.
func InvalidInput(reason string) *PipelineError {
	return &PipelineError{
		Code:    ErrCodeInvalidInput,
		Message: reason,
	}
}

// --- Inspection helpers ---

// IsFatal reports whether err (or any wrapped error) aborts the session.
func IsFatal(err error) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Fatal
	}
	return false
}

// IsRetryable reports whether err can be retried.
func IsRetryable(err error) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// CodeOf extracts the error code, or ErrCodeStageFailure for plain errors.
func CodeOf(err error) ErrorCode {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ErrCodeStageFailure
}
