package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds environment-driven settings for the connectivity engine.
type Config struct {
	Port string

	// Database
	DBPath string

	// Auth
	JWTSecret string

	// Credential encryption (base64 32-byte key)
	EncryptionKey string

	// Outbound proxy, scheme://host:port; empty connects directly.
	ProxyURL string

	// Transport tuning
	PublicTimeout  time.Duration
	PrivateTimeout time.Duration
	MaxAttempts    int
	RetryBackoff   time.Duration

	// Batch balance refresh budget across all accounts.
	BatchTimeout time.Duration

	// Provider endpoint definitions (YAML); empty uses built-in defaults.
	ProvidersPath string
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	return &Config{
		Port:           getEnv("PORT", "8080"),
		DBPath:         getEnv("DB_PATH", "./data/engine.db"),
		JWTSecret:      getEnv("JWT_SECRET", "dev-secret"),
		EncryptionKey:  os.Getenv("ENCRYPTION_KEY"),
		ProxyURL:       os.Getenv("PROXY_URL"),
		PublicTimeout:  getEnvDuration("PUBLIC_TIMEOUT_MS", 5000),
		PrivateTimeout: getEnvDuration("PRIVATE_TIMEOUT_MS", 10000),
		MaxAttempts:    getEnvInt("MAX_RETRY_ATTEMPTS", 3),
		RetryBackoff:   getEnvDuration("RETRY_BACKOFF_MS", 500),
		BatchTimeout:   getEnvDuration("BATCH_TIMEOUT_MS", 10000),
		ProvidersPath:  os.Getenv("PROVIDERS_PATH"),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvDuration(key string, defMs int) time.Duration {
	return time.Duration(getEnvInt(key, defMs)) * time.Millisecond
}
