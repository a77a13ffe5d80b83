package document

import (
	"time"

	"github.com/google/uuid"
	"github.com/quotedesk/renderd/internal/domain/shared"
)

// RenderJob tracks one document-rendering request end to end: when it ran,
// how many attempts it took, and where the artifact landed. Persistence of
// the job is best-effort bookkeeping; the pipeline never fails because a job
// row could not be written.
type RenderJob struct {
	shared.BaseAggregateRoot
	QuoteID      uuid.UUID  // Quote being rendered
	QuoteNumber  string     // Quote number (for display)
	Status       JobStatus  // Current job status
	Attempts     int        // Pipeline attempts consumed, including retries
	Locator      string     // Storage locator of the finished artifact
	Filename     string     // Generated artifact filename
	PageCount    int        // Pages in the finished artifact (0 when unknown)
	SizeBytes    int64      // Artifact size in bytes
	ElapsedMS    int64      // Wall time across all attempts
	Degraded     []string   `gorm:"-"` // Non-fatal degraded inputs, if any
	ErrorKind    string     // Failure kind if the job failed
	ErrorMessage string     // Failure detail if the job failed
	CompletedAt  *time.Time // When the job reached a terminal status
}

// NewRenderJob creates a queued render job for a quote
func NewRenderJob(quoteID uuid.UUID, quoteNumber string) (*RenderJob, error) {
	if quoteID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_QUOTE", "Quote ID cannot be empty")
	}
	if quoteNumber == "" {
		return nil, shared.NewDomainError("INVALID_QUOTE_NUMBER", "Quote number cannot be empty")
	}

	return &RenderJob{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		QuoteID:           quoteID,
		QuoteNumber:       quoteNumber,
		Status:            JobStatusQueued,
	}, nil
}

// StartRendering marks the job as rendering
func (j *RenderJob) StartRendering() error {
	if !j.Status.CanTransitionTo(JobStatusRendering) {
		return shared.NewDomainError("INVALID_STATE",
			"Cannot start rendering from status: "+j.Status.String())
	}

	j.Status = JobStatusRendering
	j.UpdatedAt = time.Now()
	j.IncrementVersion()

	return nil
}

// RecordAttempt counts one pipeline attempt (the first run and each retry)
func (j *RenderJob) RecordAttempt() {
	j.Attempts++
	j.UpdatedAt = time.Now()
}

// Complete marks the job as completed with the stored artifact's locator and
// the render statistics.
func (j *RenderJob) Complete(locator, filename string, pageCount int, sizeBytes int64, elapsed time.Duration, degraded []string) error {
	if !j.Status.CanTransitionTo(JobStatusCompleted) {
		return shared.NewDomainError("INVALID_STATE",
			"Cannot complete from status: "+j.Status.String())
	}
	if locator == "" {
		return shared.NewDomainError("INVALID_LOCATOR", "Artifact locator cannot be empty")
	}

	j.Status = JobStatusCompleted
	j.Locator = locator
	j.Filename = filename
	j.PageCount = pageCount
	j.SizeBytes = sizeBytes
	j.ElapsedMS = elapsed.Milliseconds()
	j.Degraded = degraded
	now := time.Now()
	j.CompletedAt = &now
	j.UpdatedAt = now
	j.IncrementVersion()

	return nil
}

// Fail marks the job as failed with the failure kind and message
func (j *RenderJob) Fail(kind, message string, elapsed time.Duration) error {
	if j.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE",
			"Cannot fail a job that is already in terminal status: "+j.Status.String())
	}

	j.Status = JobStatusFailed
	j.ErrorKind = kind
	j.ErrorMessage = message
	j.ElapsedMS = elapsed.Milliseconds()
	now := time.Now()
	j.CompletedAt = &now
	j.UpdatedAt = now
	j.IncrementVersion()

	return nil
}

// IsQueued returns true if the job has not started rendering yet
func (j *RenderJob) IsQueued() bool {
	return j.Status == JobStatusQueued
}

// IsCompleted returns true if the job is completed
func (j *RenderJob) IsCompleted() bool {
	return j.Status == JobStatusCompleted
}

// IsFailed returns true if the job failed
func (j *RenderJob) IsFailed() bool {
	return j.Status == JobStatusFailed
}

// IsTerminal returns true if the job is in a terminal state
func (j *RenderJob) IsTerminal() bool {
	return j.Status.IsTerminal()
}

// HasArtifact returns true if the job produced a stored artifact
func (j *RenderJob) HasArtifact() bool {
	return j.Locator != ""
}
