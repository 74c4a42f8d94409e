package server

import (
	"github.com/gin-gonic/gin"

	"github.com/leadstack/wa-gateway/internal/health"
	"github.com/leadstack/wa-gateway/internal/messaging"
	"github.com/leadstack/wa-gateway/internal/pairing"
	"github.com/leadstack/wa-gateway/internal/session"
	"github.com/leadstack/wa-gateway/internal/wa"
)

// SetupRoutes configures all the routes for the application
func (s *Server) SetupRoutes() {
	// Register health check handlers
	healthHandlers := health.NewHandlers(s.app)
	s.router.GET("/", healthHandlers.RootHandler)
	s.router.GET("/health", healthHandlers.HealthCheckHandler)
	s.router.GET("/health/", healthHandlers.HealthCheckHandlerWithSlash)

	// Register session handlers
	sessionHandlers := session.NewHandlers(s.app)
	s.router.POST("/wa/add", sessionHandlers.AddSessionHandler)
	s.router.POST("/wa/ensure", sessionHandlers.EnsureSessionHandler)
	s.router.GET("/wa/status", sessionHandlers.StatusHandler)
	s.router.GET("/wa/availability", sessionHandlers.AvailabilityHandler)
	s.router.POST("/wa/restart", sessionHandlers.RestartHandler)
	s.router.DELETE("/wa/session", sessionHandlers.DeleteSessionHandler)
	s.router.POST("/wa/logout", sessionHandlers.LogoutHandler)

	// Register pairing handlers
	pairingHandlers := pairing.NewHandlers(s.app)
	s.router.GET("/wa/qr-image", pairingHandlers.QRImageHandler)
	s.router.GET("/wa/events", pairingHandlers.EventsHandler)

	// Register messaging handlers
	messagingHandlers := messaging.NewHandlers(s.app)
	s.router.POST("/send", messagingHandlers.SendMessageHandler)
	s.router.POST("/send/image", func(c *gin.Context) { messagingHandlers.SendMediaHandler(c, wa.MediaImage) })
	s.router.POST("/send/video", func(c *gin.Context) { messagingHandlers.SendMediaHandler(c, wa.MediaVideo) })
	s.router.POST("/send/file", func(c *gin.Context) { messagingHandlers.SendMediaHandler(c, wa.MediaDocument) })
}
