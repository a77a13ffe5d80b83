package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/quotedesk/renderd/internal/infrastructure/storage"
	"github.com/quotedesk/renderd/internal/interfaces/http/dto"
)

// DependencyPinger reports whether the primary store is reachable
type DependencyPinger interface {
	Ping() error
}

// HealthHandler exposes liveness and readiness probes. Liveness never
// touches dependencies; readiness pings the database and the artifact sink.
type HealthHandler struct {
	BaseHandler
	db   DependencyPinger
	sink storage.ArtifactSink
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(db DependencyPinger, sink storage.ArtifactSink) *HealthHandler {
	return &HealthHandler{db: db, sink: sink}
}

// HealthResponse represents a probe result
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Live reports process liveness
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(HealthResponse{Status: "ok"}))
}

// Ready reports whether the service can accept render requests. A failed
// dependency returns 503 so load balancers stop routing here.
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	if h.db != nil {
		if err := h.db.Ping(); err != nil {
			checks["database"] = err.Error()
			healthy = false
		} else {
			checks["database"] = "ok"
		}
	}

	if h.sink != nil {
		if err := h.sink.Ready(ctx); err != nil {
			checks["artifact_sink"] = err.Error()
			healthy = false
		} else {
			checks["artifact_sink"] = "ok"
		}
	}

	if !healthy {
		c.JSON(http.StatusServiceUnavailable, dto.NewSuccessResponse(HealthResponse{
			Status: "degraded",
			Checks: checks,
		}))
		return
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(HealthResponse{
		Status: "ok",
		Checks: checks,
	}))
}

// RegisterRoutes registers the probe routes
func (h *HealthHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/healthz", h.Live)
	rg.GET("/readyz", h.Ready)
}
