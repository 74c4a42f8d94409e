package health

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/leadstack/wa-gateway/internal/app"
)

// Handlers contains HTTP handlers for health checks
type Handlers struct {
	app *app.App
}

// NewHandlers creates a new health handlers instance
func NewHandlers(app *app.App) *Handlers {
	return &Handlers{app: app}
}

// RootHandler handles the root endpoint for Docker health checks
func (h *Handlers) RootHandler(c *gin.Context) {
	total, _ := h.app.Manager.Snapshot()

	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"uptime":        time.Since(h.app.StartTime).String(),
		"session_count": total,
		"version":       "1.0.0",
	})
}

// HealthCheckHandler reports uptime and a snapshot of the session registry
func (h *Handlers) HealthCheckHandler(c *gin.Context) {
	total, connected := h.app.Manager.Snapshot()

	c.JSON(http.StatusOK, gin.H{
		"status":             "ok",
		"uptime":             time.Since(h.app.StartTime).String(),
		"total_sessions":     total,
		"connected_sessions": connected,
		"timestamp":          time.Now().Format(time.RFC3339),
	})
}

// HealthCheckHandlerWithSlash handles the health check endpoint with trailing slash
func (h *Handlers) HealthCheckHandlerWithSlash(c *gin.Context) {
	h.HealthCheckHandler(c)
}
