package handler

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	docapp "github.com/quotedesk/renderd/internal/application/document"
)

// DocumentHandler exposes the quote rendering pipeline over HTTP
type DocumentHandler struct {
	BaseHandler
	service *docapp.Service
}

// NewDocumentHandler creates a new DocumentHandler
func NewDocumentHandler(service *docapp.Service) *DocumentHandler {
	return &DocumentHandler{service: service}
}

// Render runs the full pipeline for one quote and returns the stored
// artifact's locator. The request body is optional; an empty or absent
// body renders with record values and built-in defaults.
func (h *DocumentHandler) Render(c *gin.Context) {
	quoteID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid quote ID format")
		return
	}

	var req docapp.RenderDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.RenderDocument(c.Request.Context(), quoteID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, result)
}

// GetRenderJob returns one render job record
func (h *DocumentHandler) GetRenderJob(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid render job ID format")
		return
	}

	job, err := h.service.GetRenderJob(c.Request.Context(), jobID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, job)
}

// ListRenderJobs returns a paginated list of render jobs across all quotes
func (h *DocumentHandler) ListRenderJobs(c *gin.Context) {
	h.listJobs(c, nil)
}

// ListQuoteRenderJobs returns render jobs for one quote
func (h *DocumentHandler) ListQuoteRenderJobs(c *gin.Context) {
	quoteID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid quote ID format")
		return
	}
	h.listJobs(c, &quoteID)
}

func (h *DocumentHandler) listJobs(c *gin.Context, quoteID *uuid.UUID) {
	var req docapp.ListRenderJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	page, err := h.service.ListRenderJobs(c.Request.Context(), quoteID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.Size)
}

// RegisterRoutes registers all document rendering routes
func (h *DocumentHandler) RegisterRoutes(rg *gin.RouterGroup) {
	quotes := rg.Group("/quotes")
	{
		quotes.POST("/:id/document", h.Render)
		quotes.GET("/:id/render-jobs", h.ListQuoteRenderJobs)
	}

	jobs := rg.Group("/render-jobs")
	{
		jobs.GET("", h.ListRenderJobs)
		jobs.GET("/:id", h.GetRenderJob)
	}
}
