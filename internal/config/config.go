// Package config handles loading and validation of application configuration
// from environment variables. Supports .env files via godotenv.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultJWTSecret = "dev-secret-change-in-production"

// Config holds all application configuration
type Config struct {
	// Server settings
	Port        int
	Environment string // "development" | "staging" | "production"
	FrontendURL string

	// Database. An empty URL runs on in-memory stores (development only).
	DatabaseURL string
	DBMaxConns  int
	DBMinConns  int

	// Security
	JWTSecret         string
	TokenTTL          time.Duration
	AllowedOrigins    []string
	AuthRatePerMinute int
	AuthRateBurst     int

	// Redis backs token revocation and the notification queue when set
	RedisURL string

	// Mail. An empty host logs outgoing mail instead of sending it.
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string

	// Attachments. S3Bucket switches storage from local disk to S3.
	UploadDir     string
	UploadBaseURL string
	S3Bucket      string
	S3Region      string
	S3Endpoint    string
	S3AccessKey   string
	S3SecretKey   string
	S3PublicURL   string

	// Logging
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int

	// Notification outbox
	OutboxBuffer  int
	OutboxWorkers int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnvInt("PORT", 8080),
		Environment: getEnv("ENVIRONMENT", "development"),
		FrontendURL: strings.TrimRight(getEnv("FRONTEND_URL", "http://localhost:3000"), "/"),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		DBMaxConns:  getEnvInt("DB_MAX_CONNS", 25),
		DBMinConns:  getEnvInt("DB_MIN_CONNS", 5),

		JWTSecret:         getEnv("JWT_SECRET", defaultJWTSecret),
		TokenTTL:          getEnvDuration("TOKEN_TTL", 24*time.Hour),
		AllowedOrigins:    splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")),
		AuthRatePerMinute: getEnvInt("AUTH_RATE_PER_MINUTE", 20),
		AuthRateBurst:     getEnvInt("AUTH_RATE_BURST", 5),

		RedisURL: getEnv("REDIS_URL", ""),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", "no-reply@localhost"),

		UploadDir:     getEnv("UPLOAD_DIR", "./uploads"),
		UploadBaseURL: strings.TrimRight(getEnv("UPLOAD_BASE_URL", "/uploads"), "/"),
		S3Bucket:      getEnv("S3_BUCKET", ""),
		S3Region:      getEnv("S3_REGION", "auto"),
		S3Endpoint:    getEnv("S3_ENDPOINT", ""),
		S3AccessKey:   getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:   getEnv("S3_SECRET_KEY", ""),
		S3PublicURL:   strings.TrimRight(getEnv("S3_PUBLIC_URL", ""), "/"),

		LogFile:       getEnv("LOG_FILE", ""),
		LogMaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 100),
		LogMaxBackups: getEnvInt("LOG_MAX_BACKUPS", 5),
		LogMaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 30),

		OutboxBuffer:  getEnvInt("OUTBOX_BUFFER", 256),
		OutboxWorkers: getEnvInt("OUTBOX_WORKERS", 2),
	}

	// Validate required fields in production
	if cfg.Environment == "production" {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required in production")
		}
		if cfg.JWTSecret == defaultJWTSecret {
			return nil, fmt.Errorf("JWT_SECRET must be set in production")
		}
	}
	if cfg.S3Bucket != "" && cfg.S3PublicURL == "" {
		return nil, fmt.Errorf("S3_PUBLIC_URL is required when S3_BUCKET is set")
	}
	if cfg.TokenTTL <= 0 {
		return nil, fmt.Errorf("TOKEN_TTL must be positive")
	}

	return cfg, nil
}

// IsProduction reports whether the server runs in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
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

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
