package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

const (
	// ErrCodeStageTimeout indicates a stage exceeded its per-stage deadline.
	ErrCodeStageTimeout ErrorCode = "STAGE_TIMEOUT"
	// ErrCodeStageFailure indicates a collaborator returned an error.
	ErrCodeStageFailure ErrorCode = "STAGE_FAILURE"
	// ErrCodeSchemaValidation indicates a semantic-analysis response did not
	// match its expected schema. A subtype of stage failure for retry purposes.
	ErrCodeSchemaValidation ErrorCode = "SCHEMA_VALIDATION"
	// ErrCodeCacheUnavailable indicates the cache backend could not be reached.
	ErrCodeCacheUnavailable ErrorCode = "CACHE_UNAVAILABLE"
	// ErrCodeFatalPipeline indicates a failure the session cannot degrade around.
	ErrCodeFatalPipeline ErrorCode = "FATAL_PIPELINE"
	// ErrCodeCancelled indicates the session was cancelled by the caller.
	ErrCodeCancelled ErrorCode = "CANCELLED"
	// ErrCodeInvalidInput indicates malformed input rejected before processing.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)
