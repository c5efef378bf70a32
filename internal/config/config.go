package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config is read once at startup and treated as immutable.
type Config struct {
	// Server
	ServerPort    string
	PublicBaseURL string

	// Storage
	StoreDriver string
	DatabaseURL string
	BlobDir     string

	// Session
	RedisAddr     string
	RedisPassword string
	DeviceID      string
	JWTSecret     string
	SessionTTL    time.Duration
	OpTimeout     time.Duration

	// HTTP
	CORSAllowedOrigin string
	RateLimitRPS      int
	RateLimitBurst    int
	MaxAvatarBytes    int64

	// Logging
	LogLevel string
}

// Load reads a .env file if present, then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ServerPort:        getEnv("SERVER_PORT", "8080"),
		StoreDriver:       getEnv("STORE_DRIVER", StoreMemory),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		BlobDir:           getEnv("BLOB_DIR", "./data/blobs"),
		RedisAddr:         getEnv("REDIS_ADDR", ""),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		DeviceID:          getEnv("DEVICE_ID", "default"),
		JWTSecret:         getEnv("JWT_SECRET", "dev-secret-change-me"),
		SessionTTL:        getEnvDuration("SESSION_TTL", 30*24*time.Hour),
		OpTimeout:         getEnvDuration("OP_TIMEOUT", 30*time.Second),
		CORSAllowedOrigin: getEnv("CORS_ALLOWED_ORIGIN", "http://localhost:3000"),
		RateLimitRPS:      getEnvInt("RATE_LIMIT_RPS", 10),
		RateLimitBurst:    getEnvInt("RATE_LIMIT_BURST", 20),
		MaxAvatarBytes:    getEnvInt64("MAX_AVATAR_BYTES", 10<<20),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
	}
	cfg.PublicBaseURL = getEnv("PUBLIC_BASE_URL", "http://localhost:"+cfg.ServerPort)

	switch cfg.StoreDriver {
	case StoreMemory:
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=%s", StorePostgres)
		}
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	return cfg, nil
}

// BlobBaseURL is the public prefix blob URLs are built from.
func (c *Config) BlobBaseURL() string {
	return c.PublicBaseURL + "/blobs"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func getEnvInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return i
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
