package session

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/leadstack/wa-gateway/internal/app"
	"github.com/leadstack/wa-gateway/internal/connection"
	"github.com/leadstack/wa-gateway/internal/wa"
)

// Handlers contains HTTP handlers for session management
type Handlers struct {
	app *app.App
}

// NewHandlers creates a new session handlers instance
func NewHandlers(app *app.App) *Handlers {
	return &Handlers{app: app}
}

// resolveOwnership loads the connection record and rejects requests from the
// wrong tenant before anything reaches the session manager. Writes the HTTP
// error response itself and returns false on rejection.
func (h *Handlers) resolveOwnership(c *gin.Context, connectionID, companyID string) bool {
	if _, err := uuid.Parse(connectionID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "connection_id must be a UUID"})
		return false
	}

	if h.app.Records == nil {
		return true
	}

	rec, err := h.app.Records.Get(c.Request.Context(), connectionID)
	if err != nil {
		if errors.Is(err, connection.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Connection not found"})
			return false
		}
		h.app.Logger.Printf("Failed to load connection record %s: %v", connectionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load connection"})
		return false
	}
	if rec.CompanyID != companyID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Connection belongs to another workspace"})
		return false
	}
	return true
}

// AddSessionHandler creates a new runtime session for a connection. The
// handshake continues in the background; progress arrives on the event
// stream.
func (h *Handlers) AddSessionHandler(c *gin.Context) {
	var req AddSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if !h.resolveOwnership(c, req.ConnectionID, req.CompanyID) {
		return
	}

	if err := h.app.Manager.CreateSession(c.Request.Context(), req.ConnectionID, req.CompanyID); err != nil {
		if errors.Is(err, wa.ErrSessionExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "Session already exists. Use /wa/ensure to reuse or replace it."})
			return
		}
		h.app.Logger.Printf("Failed to create session for %s: %v", req.ConnectionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"msg": "Session created. Watch /wa/events or request /wa/qr-image for pairing."})
}

// EnsureSessionHandler reuses a live session or replaces a stale one.
func (h *Handlers) EnsureSessionHandler(c *gin.Context) {
	var req EnsureSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if !h.resolveOwnership(c, req.ConnectionID, req.CompanyID) {
		return
	}

	res, err := h.app.Manager.EnsureSession(c.Request.Context(), req.ConnectionID, req.CompanyID)
	if err != nil {
		h.app.Logger.Printf("Failed to ensure session for %s: %v", req.ConnectionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to ensure session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"msg":     "Session ready",
		"created": res.Created,
		"status":  res.Status.String(),
	})
}

// StatusHandler reports a connection's runtime status. When no live session
// exists it falls back to the status cache, which keeps the dashboard honest
// between a restart and the resume sweep.
func (h *Handlers) StatusHandler(c *gin.Context) {
	connectionID := c.Query("connection")
	if connectionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing connection"})
		return
	}

	if sess := h.app.Manager.GetSession(connectionID); sess != nil {
		st := sess.Status()
		c.JSON(http.StatusOK, StatusResponse{
			ConnectionID: connectionID,
			Status:       st.String(),
			Phone:        sess.Phone(),
			LastError:    sess.LastError(),
			Live:         st.Live(),
			Source:       "runtime",
			Timestamp:    time.Now().Format(time.RFC3339),
		})
		return
	}

	if h.app.Cache != nil {
		entry, found, err := h.app.Cache.GetStatus(c.Request.Context(), connectionID)
		if err != nil {
			h.app.Logger.Printf("Status cache read failed for %s: %v", connectionID, err)
		} else if found {
			c.JSON(http.StatusOK, StatusResponse{
				ConnectionID: connectionID,
				Status:       entry.Status,
				Phone:        entry.Phone,
				Live:         false,
				Source:       "cache",
				Timestamp:    time.Now().Format(time.RFC3339),
			})
			return
		}
	}

	c.JSON(http.StatusNotFound, gin.H{"error": "No session found for connection"})
}

// AvailabilityHandler is the pre-flight check for send paths.
func (h *Handlers) AvailabilityHandler(c *gin.Context) {
	connectionID := c.Query("connection")
	companyID := c.Query("company")
	if connectionID == "" || companyID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing connection or company"})
		return
	}

	avail, err := h.app.Manager.CheckAvailability(c.Request.Context(), connectionID, companyID)
	if err != nil {
		h.app.Logger.Printf("Availability check failed for %s: %v", connectionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Availability check failed"})
		return
	}

	code := http.StatusOK
	if !avail.Available {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, avail)
}

// RestartHandler tears down any existing runtime session and builds a fresh
// one, resuming from stored credentials when present.
func (h *Handlers) RestartHandler(c *gin.Context) {
	var req EnsureSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if !h.resolveOwnership(c, req.ConnectionID, req.CompanyID) {
		return
	}

	h.app.Logger.Printf("Restarting session for connection %s", req.ConnectionID)
	h.app.Manager.DeleteSession(req.ConnectionID)

	if err := h.app.Manager.CreateSession(c.Request.Context(), req.ConnectionID, req.CompanyID); err != nil {
		h.app.Logger.Printf("Failed to restart session for %s: %v", req.ConnectionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to restart session"})
		return
	}

	needsQR := !h.app.Manager.HasStoredCredential(req.ConnectionID)
	msg := "Session restarting from stored credentials"
	if needsQR {
		msg = "Session restarting, QR pairing required. Request /wa/qr-image?connection=" + req.ConnectionID
	}
	c.JSON(http.StatusOK, gin.H{"msg": msg, "needs_qr": needsQR})
}

// DeleteSessionHandler tears down the runtime session but keeps credentials,
// so a later create resumes silently.
func (h *Handlers) DeleteSessionHandler(c *gin.Context) {
	connectionID := c.Query("connection")
	if connectionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing connection"})
		return
	}

	h.app.Manager.DeleteSession(connectionID)
	c.JSON(http.StatusOK, gin.H{"msg": "Session removed"})
}

// LogoutHandler permanently unpairs the connection: remote logout, runtime
// teardown and credential deletion.
func (h *Handlers) LogoutHandler(c *gin.Context) {
	var req LogoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if !h.resolveOwnership(c, req.ConnectionID, req.CompanyID) {
		return
	}

	if err := h.app.Manager.Logout(c.Request.Context(), req.ConnectionID); err != nil {
		h.app.Logger.Printf("Logout failed for %s: %v", req.ConnectionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to log out connection"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"msg": "Connection logged out and credentials removed"})
}
