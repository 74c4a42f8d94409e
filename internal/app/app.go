package app

import (
	"log"
	"time"

	"github.com/leadstack/wa-gateway/internal/cache"
	"github.com/leadstack/wa-gateway/internal/config"
	"github.com/leadstack/wa-gateway/internal/connection"
	"github.com/leadstack/wa-gateway/internal/wa"
)

// App holds shared application state and resources. Everything is
// constructor-injected so tests can build independent instances.
type App struct {
	Config    *config.Config
	Manager   *wa.Manager
	Records   connection.Repository
	Cache     cache.StatusCache
	Logger    *log.Logger
	StartTime time.Time
}

// NewApp creates a new App instance around an already-wired session manager.
func NewApp(cfg *config.Config, manager *wa.Manager, records connection.Repository, statusCache cache.StatusCache, logger *log.Logger) *App {
	return &App{
		Config:    cfg,
		Manager:   manager,
		Records:   records,
		Cache:     statusCache,
		Logger:    logger,
		StartTime: time.Now(),
	}
}
