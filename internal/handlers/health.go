package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthChecker reports whether a dependency is operational.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// WriterHealth reports whether the session engine's storage writer is alive.
type WriterHealth interface {
	Healthy() bool
}

// HealthHandler handles health check requests
type HealthHandler struct {
	db     HealthChecker
	writer WriterHealth
}

// NewHealthHandler creates a new health handler. Either dependency may be
// nil, in which case it is not checked.
func NewHealthHandler(db HealthChecker, writer WriterHealth) *HealthHandler {
	return &HealthHandler{db: db, writer: writer}
}

// Check reports overall service health.
// GET /health
func (h *HealthHandler) Check(c *gin.Context) {
	status := http.StatusOK
	result := gin.H{"status": "ok"}

	if h.db != nil {
		if err := h.db.HealthCheck(c.Request.Context()); err != nil {
			status = http.StatusServiceUnavailable
			result["status"] = "degraded"
			result["database"] = "unreachable"
		}
	}
	if h.writer != nil && !h.writer.Healthy() {
		status = http.StatusServiceUnavailable
		result["status"] = "degraded"
		result["storage_writer"] = "failed"
	}

	c.JSON(status, result)
}
