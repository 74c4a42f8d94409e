package messaging

import (
	"encoding/base64"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/leadstack/wa-gateway/internal/app"
	"github.com/leadstack/wa-gateway/internal/wa"
)

// Handlers contains HTTP handlers for messaging
type Handlers struct {
	app *app.App
}

// NewHandlers creates a new messaging handlers instance
func NewHandlers(app *app.App) *Handlers {
	return &Handlers{app: app}
}

// SendMessageHandler sends a text message over a connected session.
func (h *Handlers) SendMessageHandler(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	h.send(c, req.ConnectionID, req.CompanyID, req.PhoneNumber, wa.Payload{Text: req.Message})
}

// SendMediaHandler sends an image, video or document over a connected
// session. The media arrives base64-encoded in the request body.
func (h *Handlers) SendMediaHandler(c *gin.Context, kind wa.MediaKind) {
	var req SendMediaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	media, err := base64.StdEncoding.DecodeString(req.Media)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid media format"})
		return
	}

	h.send(c, req.ConnectionID, req.CompanyID, req.PhoneNumber, wa.Payload{
		Media:    media,
		Kind:     kind,
		Caption:  req.Caption,
		FileName: req.FileName,
	})
}

// send runs the availability pre-flight, attempts the single delivery and
// maps the manager's sentinel errors onto status codes. Delivery is
// at-most-once: a failed send fails this message only, the session stays up
// and the caller decides whether to retry.
func (h *Handlers) send(c *gin.Context, connectionID, companyID, phoneNumber string, payload wa.Payload) {
	avail, err := h.app.Manager.CheckAvailability(c.Request.Context(), connectionID, companyID)
	if err != nil {
		h.app.Logger.Printf("Availability check failed for %s: %v", connectionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Availability check failed"})
		return
	}
	if !avail.Available {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":  "Connection unavailable",
			"status": avail.Status,
			"reason": avail.Reason,
		})
		return
	}

	msgID, err := h.app.Manager.SendMessage(c.Request.Context(), connectionID, phoneNumber, payload)
	if err != nil {
		h.app.Logger.Printf("Send failed on connection %s: %v", connectionID, err)
		switch {
		case errors.Is(err, wa.ErrNoSession), errors.Is(err, wa.ErrNotConnected):
			// Session dropped between pre-flight and send.
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Connection unavailable", "details": err.Error()})
		case errors.Is(err, wa.ErrSendRejected):
			c.JSON(http.StatusBadGateway, gin.H{"error": "Message was not accepted for delivery", "details": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send message"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"msg": "Message sent successfully", "message_id": msgID})
}
