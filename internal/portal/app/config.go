package app

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/gymslim/portal/pkg/cryptox"
)

type Config struct {
	MFAEncryptionKey string // Required: 64 hex chars, AES-256 key for TOTP secrets at rest
	MFAIssuer        string // Optional: issuer label in authenticator apps (default: GYMSLIM)

	DatabaseFile string // Optional: path to SQLite database file (default: ./portal.db)

	SessionBackend string        // Optional: session store (memory, redis) (default: memory)
	SessionTTL     time.Duration // Optional: idle session lifetime (default: 12h)
	RedisAddr      string        // Optional: redis address (default: localhost:6379)
	RedisPassword  string        // Optional: redis password
	RedisDB        int           // Optional: redis database number (default: 0)

	AdminUsername string // Optional: first-boot admin username (default: admin)
	AdminPassword string // Required on an empty database, ignored afterwards
	AdminName     string // Optional: first-boot admin display name

	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	Port                int           // HTTP server port (default: 8080)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)
}

func LoadConfig() Config {
	return Config{
		MFAEncryptionKey: os.Getenv("PORTAL_MFA_ENCRYPTION_KEY"),
		MFAIssuer:        getEnvOrDefault("PORTAL_MFA_ISSUER", "GYMSLIM"),

		DatabaseFile: getEnvOrDefault("PORTAL_DATABASE_FILE", "portal.db"),

		SessionBackend: getEnvOrDefault("PORTAL_SESSION_BACKEND", "memory"),
		SessionTTL:     getEnvDurationOrDefault("PORTAL_SESSION_TTL", 12*time.Hour),
		RedisAddr:      getEnvOrDefault("PORTAL_REDIS_ADDR", "localhost:6379"),
		RedisPassword:  os.Getenv("PORTAL_REDIS_PASSWORD"),
		RedisDB:        getEnvIntOrDefault("PORTAL_REDIS_DB", 0),

		AdminUsername: getEnvOrDefault("PORTAL_ADMIN_USERNAME", "admin"),
		AdminPassword: os.Getenv("PORTAL_ADMIN_PASSWORD"),
		AdminName:     getEnvOrDefault("PORTAL_ADMIN_NAME", "Portal Admin"),

		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}
}

// DecodeMFAKey validates and decodes the mandatory encryption key. A
// missing or malformed key is a startup failure, never a silent fallback:
// a generated default would orphan every stored secret on restart.
func (c Config) DecodeMFAKey() ([]byte, error) {
	if c.MFAEncryptionKey == "" {
		return nil, fmt.Errorf("PORTAL_MFA_ENCRYPTION_KEY is required (64 hex characters)")
	}
	key, err := hex.DecodeString(c.MFAEncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("PORTAL_MFA_ENCRYPTION_KEY is not valid hex: %w", err)
	}
	if len(key) != cryptox.KeySize {
		return nil, fmt.Errorf("PORTAL_MFA_ENCRYPTION_KEY must decode to %d bytes, got %d",
			cryptox.KeySize, len(key))
	}
	return key, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}
	return defaultValue
}
