// Package render owns the headless render engine: one engine process per
// session, one session per request.
package render

import (
	"context"
	"time"

	"github.com/quotedesk/renderd/internal/domain/document"
)

// PageOptions controls pagination of the settled document
type PageOptions struct {
	// PageSize defines the output page dimensions
	PageSize document.PageSize
	// MarginMM is the uniform page margin in millimeters
	MarginMM float64
	// Scale for rendering (default 1.0)
	Scale float64
	// PrintBackground prints background graphics
	PrintBackground bool
}

// Timeline records when each session milestone was reached. It is
// diagnostic data attached to log output on teardown.
type Timeline struct {
	StartedAt   time.Time
	SettledAt   time.Time
	PaginatedAt time.Time
	StoppedAt   time.Time
}

// Session is one exclusive render-engine process with a single page context.
// The owner must call Stop exactly once on every exit path; Stop is
// idempotent so a deferred call is always safe.
type Session interface {
	// SetContent injects markup into the page and waits for it to settle:
	// document ready and every embedded raster asset either loaded or
	// individually timed out.
	SetContent(ctx context.Context, markup string) error
	// Paginate drives the settled page to a paginated PDF
	Paginate(ctx context.Context, opts PageOptions) ([]byte, error)
	// Stop terminates the engine process and releases all its resources
	Stop() error
	// Timeline returns the milestones reached so far
	Timeline() Timeline
}

// SessionFactory produces fresh sessions. Every call launches a new engine
// process; sessions are never pooled or reused across requests.
type SessionFactory interface {
	NewSession(ctx context.Context) (Session, error)
}

// RenderError represents an error raised by the render engine
type RenderError struct {
	Code    string
	Message string
	Cause   error
}

func (e *RenderError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *RenderError) Unwrap() error {
	return e.Cause
}

// Error codes for engine failures
const (
	ErrCodeEngineStart = "ENGINE_START_FAILED"
	ErrCodeSetContent  = "SET_CONTENT_FAILED"
	ErrCodePaginate    = "PAGINATE_FAILED"
	ErrCodeStopped     = "SESSION_STOPPED"
)

// NewRenderError creates a new RenderError
func NewRenderError(code, message string, cause error) *RenderError {
	return &RenderError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}
