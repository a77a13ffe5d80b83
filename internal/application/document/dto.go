package document

import (
	"time"

	"github.com/quotedesk/renderd/internal/domain/document"
)

// =============================================================================
// Render DTOs
// =============================================================================

// RenderDocumentRequest is the per-request options bag. Every field is
// optional; an empty body renders with record values and built-in defaults.
type RenderDocumentRequest struct {
	PageSize        string          `json:"page_size" binding:"omitempty,max=10"`
	AccentColor     string          `json:"accent_color" binding:"omitempty,max=7"`
	Heading         string          `json:"heading" binding:"omitempty,max=200"`
	Subheading      string          `json:"subheading" binding:"omitempty,max=300"`
	BackgroundURL   string          `json:"background_url" binding:"omitempty,url,max=2000"`
	IncludeSections map[string]bool `json:"include_sections"`
	OptimizeImages  bool            `json:"optimize_images"`
}

// ToOptions converts the request into domain render options. Semantic
// validation (page size, color format) happens in the domain layer so the
// failure kind is uniform no matter where the options came from.
func (r RenderDocumentRequest) ToOptions() document.Options {
	return document.Options{
		PageSize:           document.PageSize(r.PageSize),
		AccentColor:        r.AccentColor,
		HeadingOverride:    r.Heading,
		SubheadingOverride: r.Subheading,
		BackgroundOverride: r.BackgroundURL,
		IncludeSections:    r.IncludeSections,
		OptimizeImages:     r.OptimizeImages,
	}
}

// RenderDocumentResponse describes a successfully stored artifact
type RenderDocumentResponse struct {
	JobID     string   `json:"job_id,omitempty"`
	QuoteID   string   `json:"quote_id"`
	Locator   string   `json:"locator"`
	Filename  string   `json:"filename"`
	PageCount int      `json:"page_count,omitempty"`
	SizeBytes int64    `json:"size_bytes"`
	ElapsedMS int64    `json:"elapsed_ms"`
	Attempts  int      `json:"attempts"`
	Degraded  []string `json:"degraded_inputs,omitempty"`
}

// =============================================================================
// Render Job DTOs
// =============================================================================

// ListRenderJobsRequest represents a request to list render jobs
type ListRenderJobsRequest struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=200"`
	OrderBy  string `form:"order_by"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// RenderJobResponse represents a render job record
type RenderJobResponse struct {
	ID           string     `json:"id"`
	QuoteID      string     `json:"quote_id"`
	QuoteNumber  string     `json:"quote_number"`
	Status       string     `json:"status"`
	Attempts     int        `json:"attempts"`
	Locator      string     `json:"locator,omitempty"`
	Filename     string     `json:"filename,omitempty"`
	PageCount    int        `json:"page_count,omitempty"`
	SizeBytes    int64      `json:"size_bytes,omitempty"`
	ElapsedMS    int64      `json:"elapsed_ms"`
	ErrorKind    string     `json:"error_kind,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// ListRenderJobsResponse represents a paginated list of render jobs
type ListRenderJobsResponse struct {
	Items []RenderJobResponse `json:"items"`
	Total int64               `json:"total"`
	Page  int                 `json:"page"`
	Size  int                 `json:"size"`
}

// toRenderJobResponse converts a domain render job to its response DTO
func toRenderJobResponse(job *document.RenderJob) RenderJobResponse {
	return RenderJobResponse{
		ID:           job.ID.String(),
		QuoteID:      job.QuoteID.String(),
		QuoteNumber:  job.QuoteNumber,
		Status:       job.Status.String(),
		Attempts:     job.Attempts,
		Locator:      job.Locator,
		Filename:     job.Filename,
		PageCount:    job.PageCount,
		SizeBytes:    job.SizeBytes,
		ElapsedMS:    job.ElapsedMS,
		ErrorKind:    job.ErrorKind,
		ErrorMessage: job.ErrorMessage,
		CompletedAt:  job.CompletedAt,
		CreatedAt:    job.CreatedAt,
		UpdatedAt:    job.UpdatedAt,
	}
}
