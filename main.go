package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/leadstack/wa-gateway/internal/app"
	"github.com/leadstack/wa-gateway/internal/cache"
	"github.com/leadstack/wa-gateway/internal/config"
	"github.com/leadstack/wa-gateway/internal/connection"
	"github.com/leadstack/wa-gateway/internal/creds"
	"github.com/leadstack/wa-gateway/internal/server"
	"github.com/leadstack/wa-gateway/internal/wa"
	"github.com/leadstack/wa-gateway/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadAll()
	if err != nil {
		log.Fatal(err)
	}

	appLogger, err := logger.SetupLogging()
	if err != nil {
		appLogger = logger.SetupFallbackLogger()
	}
	defer logger.CloseLogger()

	db, err := sql.Open("pgx", cfg.Database.PostgresURL)
	if err != nil {
		appLogger.Fatalf("Failed to open postgres: %v", err)
	}
	defer db.Close()

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		pingCancel()
		appLogger.Fatalf("Failed to reach postgres: %v", err)
	}
	pingCancel()

	records := connection.NewPostgresRepo(db)

	var statusCache cache.StatusCache
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		statusCache = cache.NewRedisCache(rdb, cfg.Redis.TTL)
	}

	credStore, err := creds.NewFileStore(cfg.Credentials.DataDir)
	if err != nil {
		appLogger.Fatalf("Failed to initialize credential store: %v", err)
	}

	dialer := wa.NewMeowDialer(credStore, appLogger)
	manager := wa.NewManager(dialer, credStore, records, statusCache, appLogger)
	defer manager.Shutdown()

	application := app.NewApp(cfg, manager, records, statusCache, appLogger)

	srv := server.NewServer(application, cfg)
	srv.SetupRoutes()
	if err := srv.Start(); err != nil {
		appLogger.Fatalf("Failed to start server: %v", err)
	}

	// Reconcile database-recorded status with actual live sessions. The
	// server is already accepting requests; the sweep catches up in the
	// background, one connection at a time.
	if cfg.Sweep.Enabled {
		go func() {
			sweepCtx, cancel := context.WithTimeout(context.Background(), cfg.Sweep.Timeout)
			defer cancel()
			if err := manager.ResumeSweep(sweepCtx); err != nil {
				appLogger.Printf("Resume sweep aborted: %v", err)
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
