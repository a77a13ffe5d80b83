package dto

import "net/http"

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	// ErrCodeUnknown is used when the error type is unknown
	ErrCodeUnknown = "ERR_UNKNOWN"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
)

// Validation error codes
const (
	// ErrCodeValidation is the base code for validation errors
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeValidationRequired is used when a required field is missing
	ErrCodeValidationRequired = "ERR_VALIDATION_REQUIRED"
	// ErrCodeValidationFormat is used when a field has invalid format
	ErrCodeValidationFormat = "ERR_VALIDATION_FORMAT"
	// ErrCodeValidationRange is used when a value is out of range
	ErrCodeValidationRange = "ERR_VALIDATION_RANGE"
)

// Resource error codes
const (
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeConflict is used for general resource conflicts
	ErrCodeConflict = "ERR_CONFLICT"
)

// Input error codes
const (
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidInput is used for invalid input data
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	// ErrCodeInvalidJSON is used when JSON parsing fails
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
)

// Rate limiting error codes
const (
	// ErrCodeRateLimited is used when rate limit is exceeded
	ErrCodeRateLimited = "ERR_RATE_LIMITED"
)

// Pipeline failure kinds. These are surfaced to clients verbatim so a
// caller can distinguish a retryable engine failure from a bad quote
// without parsing messages.
const (
	// PipelineKindValidationError means the quote or request options cannot render
	PipelineKindValidationError = "VALIDATION_ERROR"
	// PipelineKindRecordNotFound means the quote record does not exist
	PipelineKindRecordNotFound = "RECORD_NOT_FOUND"
	// PipelineKindDataSourceError means a fatal-tier lookup failed in the store
	PipelineKindDataSourceError = "DATA_SOURCE_ERROR"
	// PipelineKindEngineUnavailable means the render engine failed to start or died
	PipelineKindEngineUnavailable = "ENGINE_UNAVAILABLE"
	// PipelineKindPhaseTimeout means a single phase exceeded its budget
	PipelineKindPhaseTimeout = "PHASE_TIMEOUT"
	// PipelineKindRequestTimeout means the whole-request ceiling was exhausted
	PipelineKindRequestTimeout = "REQUEST_TIMEOUT"
	// PipelineKindEmptyArtifact means the engine produced zero bytes
	PipelineKindEmptyArtifact = "EMPTY_ARTIFACT"
	// PipelineKindUploadFailed means the artifact sink rejected the store
	PipelineKindUploadFailed = "UPLOAD_FAILED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	// General errors
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	// Validation errors -> 400 Bad Request
	ErrCodeValidation:         http.StatusBadRequest,
	ErrCodeValidationRequired: http.StatusBadRequest,
	ErrCodeValidationFormat:   http.StatusBadRequest,
	ErrCodeValidationRange:    http.StatusBadRequest,

	// Resource errors
	ErrCodeNotFound: http.StatusNotFound,
	ErrCodeConflict: http.StatusConflict,

	// Input errors -> 400 Bad Request
	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidInput: http.StatusBadRequest,
	ErrCodeInvalidJSON:  http.StatusBadRequest,

	// Rate limiting -> 429 Too Many Requests
	ErrCodeRateLimited: http.StatusTooManyRequests,

	// Pipeline failure kinds. Timeouts are gateway timeouts because the
	// engine, not the caller, ran out of time; engine and sink failures
	// are bad-gateway because a downstream dependency failed.
	PipelineKindValidationError:   http.StatusBadRequest,
	PipelineKindRecordNotFound:    http.StatusNotFound,
	PipelineKindDataSourceError:   http.StatusInternalServerError,
	PipelineKindEngineUnavailable: http.StatusBadGateway,
	PipelineKindPhaseTimeout:      http.StatusGatewayTimeout,
	PipelineKindRequestTimeout:    http.StatusGatewayTimeout,
	PipelineKindEmptyArtifact:     http.StatusInternalServerError,
	PipelineKindUploadFailed:      http.StatusBadGateway,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// LegacyErrorCodeMapping maps older domain error codes to the
// standardized format. Pipeline failure kinds are deliberately absent:
// they pass through unchanged.
var LegacyErrorCodeMapping = map[string]string{
	"NOT_FOUND":      ErrCodeNotFound,
	"INVALID_INPUT":  ErrCodeInvalidInput,
	"BAD_REQUEST":    ErrCodeBadRequest,
	"INTERNAL_ERROR": ErrCodeInternal,
}

// NormalizeErrorCode converts a legacy error code to the standardized format
// If the code is already in the new format or unknown, returns it as-is
func NormalizeErrorCode(code string) string {
	if newCode, ok := LegacyErrorCodeMapping[code]; ok {
		return newCode
	}
	return code
}
