package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/mr1hm/ocean-sentinel/internal/features"
	"github.com/mr1hm/ocean-sentinel/internal/repository"
)

type Config struct {
	Server   ServerConfig
	GRPC     GRPCConfig
	Worker   WorkerConfig
	Monitor  MonitorConfig
	Analysis AnalysisConfig
	Catalog  CatalogConfig
	DB       DatabaseConfig
	Logging  LoggingConfig
}

type GRPCConfig struct {
	Port int
}

type ServerConfig struct {
	Host      string
	Port      int
	RateLimit float64 // requests per second, global
	MaxUpload int64   // bytes per multipart request
	MaxPixels int     // width x height accepted per uploaded image
}

type WorkerConfig struct {
	Count      int
	BufferSize int
}

type MonitorConfig struct {
	Enabled  bool
	Interval time.Duration
}

type AnalysisConfig struct {
	FeatureMode features.Mode
	ModelDir    string
	WatchModels bool
}

type CatalogConfig struct {
	Path     string // optional; built-in locations and zones when empty
	ImageDir string
}

type DatabaseConfig struct {
	Driver string
	DSN    string
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	mode, err := features.ParseMode(getEnv("FEATURE_MODE", string(features.ModeEnhanced)))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:      getEnv("SERVER_HOST", "localhost"),
			Port:      getEnvInt("SERVER_PORT", 8080),
			RateLimit: getEnvFloat("RATE_LIMIT", 5),
			MaxUpload: int64(getEnvInt("MAX_UPLOAD_MB", 32)) << 20,
			MaxPixels: getEnvInt("MAX_IMAGE_PIXELS", 25_000_000),
		},
		GRPC: GRPCConfig{
			Port: getEnvInt("GRPC_PORT", 50051),
		},
		Worker: WorkerConfig{
			Count:      getEnvInt("WORKER_COUNT", 2),
			BufferSize: getEnvInt("WORKER_BUFFER_SIZE", 20),
		},
		Monitor: MonitorConfig{
			Enabled:  getEnvBool("MONITOR_ENABLED", false),
			Interval: getEnvDuration("MONITOR_INTERVAL", time.Hour),
		},
		Analysis: AnalysisConfig{
			FeatureMode: mode,
			ModelDir:    getEnv("MODEL_DIR", "./data/models"),
			WatchModels: getEnvBool("WATCH_MODELS", true),
		},
		Catalog: CatalogConfig{
			Path:     os.Getenv("CATALOG_PATH"),
			ImageDir: getEnv("IMAGE_DIR", "./data"),
		},
		DB: DatabaseConfig{
			Driver: getEnv("DB_DRIVER", repository.DriverSQLite),
			DSN:    getEnv("DB_DSN", "./data/detections.db"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.GRPC.Port < 1 || c.GRPC.Port > 65535 {
		return fmt.Errorf("invalid gRPC port: %d", c.GRPC.Port)
	}
	if c.Server.RateLimit <= 0 {
		return fmt.Errorf("rate limit must be positive, got %v", c.Server.RateLimit)
	}
	if c.Worker.Count < 1 {
		return fmt.Errorf("worker count must be at least 1, got %d", c.Worker.Count)
	}
	if c.Worker.BufferSize < 0 {
		return fmt.Errorf("worker buffer size cannot be negative, got %d", c.Worker.BufferSize)
	}
	if c.Server.MaxPixels < 1 {
		return fmt.Errorf("max image pixels must be positive, got %d", c.Server.MaxPixels)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	if c.DB.Driver != repository.DriverSQLite && c.DB.Driver != repository.DriverPostgres {
		return fmt.Errorf("invalid database driver: %s", c.DB.Driver)
	}

	if c.Monitor.Enabled && c.Monitor.Interval < time.Minute {
		return fmt.Errorf("monitor interval must be at least 1 minute")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}
