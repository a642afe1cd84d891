package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

func init() {
	// Load .env file if it exists (ignores error if not found)
	godotenv.Load()
}

type Config struct {
	Port        string
	BaseURL     string
	FrontendURL string

	DatabaseDriver string // sqlite3, sqlite or postgres
	DatabaseURL    string

	StorageBackend string // local or s3
	StoragePath    string
	MaxFileSize    int64
	S3             S3Config

	SessionExpiry      time.Duration
	SessionIdleTimeout time.Duration

	CorruptionTick time.Duration
	GlitchTick     time.Duration
	GlitchFlash    time.Duration

	SeedOnStart bool

	LogLevel  string
	LogFormat string
}

// S3Config holds object storage settings for STORAGE_BACKEND=s3.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8005"),
		BaseURL:        getEnv("BASE_URL", "http://localhost:8005"),
		FrontendURL:    getEnv("FRONTEND_URL", "http://localhost:3000"),
		DatabaseDriver: strings.ToLower(getEnv("DATABASE_DRIVER", "sqlite3")),
		DatabaseURL:    getEnv("DATABASE_URL", "./data/navidrive.db"),
		StorageBackend: strings.ToLower(getEnv("STORAGE_BACKEND", "local")),
		StoragePath:    getEnv("STORAGE_PATH", "./storage"),
		MaxFileSize:    getEnvAsInt64("MAX_FILE_SIZE", 100<<20), // 100MB default
		S3: S3Config{
			Endpoint:  getEnv("S3_ENDPOINT", ""),
			Bucket:    getEnv("S3_BUCKET", "navidrive"),
			Region:    getEnv("S3_REGION", "us-east-1"),
			AccessKey: getEnv("S3_ACCESS_KEY", ""),
			SecretKey: getEnv("S3_SECRET_KEY", ""),
		},
		SessionExpiry:      time.Duration(getEnvAsInt64("SESSION_EXPIRY_HOURS", 24)) * time.Hour,
		SessionIdleTimeout: time.Duration(getEnvAsInt64("SESSION_IDLE_MINUTES", 30)) * time.Minute,
		CorruptionTick:     time.Duration(getEnvAsInt64("CORRUPTION_TICK_MS", 500)) * time.Millisecond,
		GlitchTick:         time.Duration(getEnvAsInt64("GLITCH_TICK_MS", 3000)) * time.Millisecond,
		GlitchFlash:        time.Duration(getEnvAsInt64("GLITCH_FLASH_MS", 150)) * time.Millisecond,
		SeedOnStart:        getEnvAsBool("SEED_ON_START", true),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "json"),
	}
}

// Addr returns the listen address for Port.
func (c *Config) Addr() string {
	return ":" + c.Port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt64 ignores values that are not positive integers.
func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil && intVal > 0 {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
