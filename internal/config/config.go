package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
)

// Config holds application configuration
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Credentials CredentialsConfig
	Sweep       SweepConfig
}

type ServerConfig struct {
	Port string
}

type DatabaseConfig struct {
	PostgresURL string
}

type RedisConfig struct {
	Enabled  bool
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

// CredentialsConfig controls where per-connection credential files live.
type CredentialsConfig struct {
	DataDir string
}

// SweepConfig controls the startup resume sweep.
type SweepConfig struct {
	Enabled bool
	Timeout time.Duration
}

// LoadAll builds the configuration from environment variables.
func LoadAll() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "3000"),
		},
		Database: DatabaseConfig{
			PostgresURL: mustEnv("POSTGRES_URL"),
		},
		Credentials: CredentialsConfig{
			DataDir: getEnv("DATA_DIR", "data"),
		},
		Sweep: SweepConfig{
			Enabled: getEnv("RESUME_SWEEP", "true") == "true",
			Timeout: time.Duration(getEnvInt("RESUME_SWEEP_TIMEOUT_SECONDS", 120)) * time.Second,
		},
		Redis: loadRedisConfig(),
	}

	if cfg.Sweep.Timeout <= 0 {
		return nil, fmt.Errorf("RESUME_SWEEP_TIMEOUT_SECONDS must be > 0")
	}

	return cfg, nil
}

func loadRedisConfig() RedisConfig {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return RedisConfig{Enabled: false}
	}

	return RedisConfig{
		Enabled:  true,
		Address:  addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       getEnvInt("REDIS_DB", 0),
		TTL:      time.Duration(getEnvInt("REDIS_TTL_SECONDS", 86400)) * time.Second,
	}
}

// EnsureDataDir ensures the credential data directory exists
func (c *Config) EnsureDataDir() error {
	return os.MkdirAll(c.Credentials.DataDir, 0755)
}

// GetCorsConfig returns CORS configuration for the application
func (c *Config) GetCorsConfig() cors.Config {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"}
	corsConfig.ExposeHeaders = []string{"Content-Length", "Content-Type"}
	corsConfig.AllowCredentials = true
	corsConfig.MaxAge = 12 * time.Hour
	return corsConfig
}

func mustEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("missing required env var: %s", key))
	}
	return val
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		panic(fmt.Sprintf("invalid int for env %s: %s", key, v))
	}
	return i
}
