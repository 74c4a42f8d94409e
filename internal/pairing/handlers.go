package pairing

import (
	"encoding/base64"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"

	"github.com/leadstack/wa-gateway/internal/app"
	"github.com/leadstack/wa-gateway/internal/wa"
)

// qrWaitCeiling bounds how long the QR image endpoint waits for the protocol
// layer to produce a pairing code.
const qrWaitCeiling = 60 * time.Second

// keepAliveInterval is how often the SSE stream emits a comment frame to
// hold idle proxies open.
const keepAliveInterval = 15 * time.Second

// Handlers contains HTTP handlers for QR pairing and the event stream
type Handlers struct {
	app *app.App
}

// NewHandlers creates a new pairing handlers instance
func NewHandlers(app *app.App) *Handlers {
	return &Handlers{app: app}
}

// QRImageHandler returns the connection's current pairing code as a base64
// PNG, waiting for the next rotation when none is held yet.
func (h *Handlers) QRImageHandler(c *gin.Context) {
	connectionID := c.Query("connection")
	if connectionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing connection"})
		return
	}

	sess := h.app.Manager.GetSession(connectionID)
	if sess == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No live session. Create one with /wa/add first."})
		return
	}

	switch sess.Status() {
	case wa.StatusConnected:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Session is already connected. No QR code needed."})
		return
	case wa.StatusError:
		c.JSON(http.StatusConflict, gin.H{"error": "Session failed: " + sess.LastError()})
		return
	}

	code := sess.QRPayload()
	if code == "" {
		// Subscribe before re-checking so a rotation between the check and
		// the subscription cannot be missed.
		events, cancel := sess.Events().Subscribe()
		defer cancel()

		if code = sess.QRPayload(); code == "" {
			var ok bool
			if code, ok = h.waitForQR(c, events); !ok {
				return
			}
		}
	}

	png, err := h.renderQR(code)
	if err != nil {
		h.app.Logger.Printf("Failed to render QR for %s: %v", connectionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate QR code"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"qrcode": "data:image/png;base64," + png})
}

// waitForQR blocks until a pairing code arrives or the session reaches a
// state where one never will. Writes the error response itself and returns
// ok=false in that case.
func (h *Handlers) waitForQR(c *gin.Context, events <-chan wa.Event) (string, bool) {
	deadline := time.NewTimer(qrWaitCeiling)
	defer deadline.Stop()

	for {
		select {
		case ev, open := <-events:
			if !open {
				c.JSON(http.StatusGone, gin.H{"error": "Session was torn down"})
				return "", false
			}
			switch ev.Type {
			case wa.EventQR:
				return ev.QR, true
			case wa.EventConnected:
				c.JSON(http.StatusBadRequest, gin.H{"error": "Session connected without pairing. No QR code needed."})
				return "", false
			case wa.EventError, wa.EventDisconnected:
				c.JSON(http.StatusConflict, gin.H{"error": "Session ended before a QR code was issued: " + ev.Reason})
				return "", false
			}
		case <-deadline.C:
			c.JSON(http.StatusRequestTimeout, gin.H{"error": "QR code not available after waiting for 60 seconds"})
			return "", false
		case <-c.Request.Context().Done():
			return "", false
		}
	}
}

func (h *Handlers) renderQR(code string) (string, error) {
	qr, err := qrcode.New(code, qrcode.Medium)
	if err != nil {
		return "", err
	}
	png, err := qr.PNG(256)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(png), nil
}

// EventsHandler bridges a session's event stream to the browser as
// Server-Sent Events. The stream ends when the client disconnects or the
// session is torn down; periodic comment frames keep the connection open in
// between events.
func (h *Handlers) EventsHandler(c *gin.Context) {
	connectionID := c.Query("connection")
	if connectionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing connection"})
		return
	}

	emitter := h.app.Manager.Events(connectionID)
	if emitter == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No live session. Create one with /wa/add first."})
		return
	}

	events, cancel := emitter.Subscribe()
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, open := <-events:
			if !open {
				// Session torn down; closing the stream tells the browser to
				// stop waiting for a pairing that will never happen.
				return false
			}
			c.SSEvent(string(ev.Type), ev)
			return true
		case <-keepAlive.C:
			_, _ = w.Write([]byte(": keep-alive\n\n"))
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
