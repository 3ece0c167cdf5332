package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all server settings, loaded from the environment with
// an optional .env file.
type Config struct {
	ServerAddr string

	StoreType string
	StoreDSN  string

	GeminiAPIKey        string
	GeminiModel         string
	GeminiSearchEnabled bool

	EncryptionEnabled bool
	AESKeyHash        string
	EncryptionMode    string

	APIToken string

	RetentionSchedule   string
	RetentionMaxAgeDays int

	RequestTimeoutSeconds int
}

// Load reads configuration from a .env file when present, falling back
// to process environment variables.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: [Config] No .env file found, using environment variables")
	}

	cfg := &Config{
		ServerAddr:            getEnv("SERVER_ADDR", ":8080"),
		StoreType:             getEnv("STORE_TYPE", "sqlite"),
		StoreDSN:              getEnv("STORE_DSN", "chatrelay.sqlite"),
		GeminiAPIKey:          os.Getenv("GEMINI_API_KEY"),
		GeminiModel:           getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiSearchEnabled:   getBoolEnv("GEMINI_SEARCH_ENABLED", true),
		EncryptionEnabled:     getBoolEnv("ENCRYPTION_ENABLED", false),
		AESKeyHash:            os.Getenv("AES_KEY_HASH"),
		EncryptionMode:        getEnv("ENCRYPTION_MODE", "strict"),
		APIToken:              os.Getenv("API_TOKEN"),
		RetentionSchedule:     os.Getenv("RETENTION_SCHEDULE"),
		RetentionMaxAgeDays:   getIntEnv("RETENTION_MAX_AGE_DAYS", 30),
		RequestTimeoutSeconds: getIntEnv("REQUEST_TIMEOUT_SECONDS", 120),
	}

	if cfg.GeminiAPIKey == "" {
		log.Printf("WARN: [Config] GEMINI_API_KEY is not set")
	}
	if cfg.EncryptionEnabled && cfg.AESKeyHash == "" {
		log.Printf("WARN: [Config] ENCRYPTION_ENABLED is set but AES_KEY_HASH is empty; encrypted requests will fail")
	}

	return cfg
}

// RequestTimeout returns the per-request work bound as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getBoolEnv(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		log.Printf("WARN: [Config] Invalid boolean for %s: %q, using %v", key, value, fallback)
		return fallback
	}
	return parsed
}

func getIntEnv(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("WARN: [Config] Invalid integer for %s: %q, using %d", key, value, fallback)
		return fallback
	}
	return parsed
}
