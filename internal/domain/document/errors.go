package document

import (
	"errors"
	"fmt"
	"time"

	"github.com/quotedesk/renderd/internal/domain/shared"
)

// Failure kinds surfaced by the rendering pipeline. Handlers map these to
// transport status codes and the orchestrator uses them to decide retries.
const (
	KindValidationError   = "VALIDATION_ERROR"   // request or record content cannot be rendered
	KindRecordNotFound    = "RECORD_NOT_FOUND"   // primary quote record does not exist
	KindDataSourceError   = "DATA_SOURCE_ERROR"  // store failure on a fatal-tier lookup
	KindEngineUnavailable = "ENGINE_UNAVAILABLE" // render engine failed to start or died early
	KindPhaseTimeout      = "PHASE_TIMEOUT"      // a single phase exceeded its budget
	KindRequestTimeout    = "REQUEST_TIMEOUT"    // the whole-request ceiling was exhausted
	KindEmptyArtifact     = "EMPTY_ARTIFACT"     // engine reported success but produced no bytes
	KindUploadFailed      = "UPLOAD_FAILED"      // artifact sink rejected or failed the store
)

// Degraded-input markers recorded on a successful render whose optional
// sub-records could not be loaded.
const (
	DegradedBrandingProfile = "branding_profile"
	DegradedSectionGroups   = "section_groups"
)

// NewValidationError reports request or record content that cannot be rendered
func NewValidationError(message string) *shared.DomainError {
	return shared.NewDomainError(KindValidationError, message)
}

// NewRecordNotFound reports a missing primary quote record
func NewRecordNotFound(quoteID string) *shared.DomainError {
	return shared.NewDomainError(KindRecordNotFound, "Quote not found: "+quoteID)
}

// NewDataSourceError reports a store failure on a fatal-tier lookup
func NewDataSourceError(resource string, cause error) *shared.DomainError {
	msg := "Failed to load " + resource
	if cause != nil {
		msg += ": " + cause.Error()
	}
	return shared.NewDomainError(KindDataSourceError, msg)
}

// NewEngineUnavailable reports a render engine that failed to start or died
func NewEngineUnavailable(cause error) *shared.DomainError {
	msg := "Render engine unavailable"
	if cause != nil {
		msg += ": " + cause.Error()
	}
	return shared.NewDomainError(KindEngineUnavailable, msg)
}

// NewPhaseTimeout reports a phase that exceeded its own budget
func NewPhaseTimeout(phase Phase, budget time.Duration) *shared.DomainError {
	return shared.NewDomainError(KindPhaseTimeout,
		fmt.Sprintf("Phase %s exceeded its %s budget", phase, budget))
}

// NewRequestTimeout reports an exhausted whole-request ceiling
func NewRequestTimeout(phase Phase) *shared.DomainError {
	return shared.NewDomainError(KindRequestTimeout,
		fmt.Sprintf("Request deadline exhausted during phase %s", phase))
}

// NewEmptyArtifact reports a render that produced zero bytes
func NewEmptyArtifact(quoteNumber string) *shared.DomainError {
	return shared.NewDomainError(KindEmptyArtifact,
		"Render produced an empty document for quote "+quoteNumber)
}

// NewUploadFailed reports an artifact sink failure
func NewUploadFailed(cause error) *shared.DomainError {
	msg := "Failed to store artifact"
	if cause != nil {
		msg += ": " + cause.Error()
	}
	return shared.NewDomainError(KindUploadFailed, msg)
}

// KindOf extracts the failure kind from err, or "" when err carries none
func KindOf(err error) string {
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

// IsTransient reports whether a failure kind may be retried with a fresh
// session. Only infrastructure kinds qualify: data and output kinds are
// deterministic, so retrying them cannot change the outcome.
func IsTransient(kind string) bool {
	return kind == KindEngineUnavailable || kind == KindPhaseTimeout
}

// IsPipelineKind reports whether kind is one of the pipeline failure kinds
func IsPipelineKind(kind string) bool {
	switch kind {
	case KindValidationError, KindRecordNotFound, KindDataSourceError,
		KindEngineUnavailable, KindPhaseTimeout, KindRequestTimeout,
		KindEmptyArtifact, KindUploadFailed:
		return true
	}
	return false
}
