package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type config struct {
	Port            string
	Env             string
	LogLevel        string
	ShutdownTimeout time.Duration

	MetaDatabaseURL string

	TenantDBUser      string
	TenantDBPassword  string
	TenantMaxPools    int
	TenantMaxConns    int
	TenantIdleTimeout time.Duration

	JWTSecret  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	UploadDir      string
	UploadBaseURL  string
	UploadMaxBytes int64

	Idempotency    bool
	IdempotencyTTL time.Duration
}

// loadConfig reads the environment, after loading .env when one exists.
func loadConfig() config {
	_ = godotenv.Load()

	return config{
		Port:            getEnv("SERVER_PORT", "8080"),
		Env:             getEnv("APP_ENV", "development"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		MetaDatabaseURL: mustEnv("META_DATABASE_URL"),

		TenantDBUser:      mustEnv("TENANT_DB_USER"),
		TenantDBPassword:  mustEnv("TENANT_DB_PASSWORD"),
		TenantMaxPools:    getEnvInt("TENANT_MAX_POOLS", 200),
		TenantMaxConns:    getEnvInt("TENANT_MAX_CONNS_PER_POOL", 8),
		TenantIdleTimeout: getEnvDuration("TENANT_POOL_IDLE_TIMEOUT", 30*time.Minute),

		JWTSecret:  mustEnv("JWT_SECRET"),
		AccessTTL:  getEnvDuration("JWT_ACCESS_TTL", 15*time.Minute),
		RefreshTTL: getEnvDuration("JWT_REFRESH_TTL", 7*24*time.Hour),

		UploadDir:      getEnv("UPLOAD_DIR", "./uploads"),
		UploadBaseURL:  getEnv("UPLOAD_BASE_URL", ""),
		UploadMaxBytes: int64(getEnvInt("UPLOAD_MAX_BYTES", 10<<20)),

		Idempotency:    getEnvBool("IDEMPOTENCY_ENABLED", true),
		IdempotencyTTL: getEnvDuration("IDEMPOTENCY_TTL", 24*time.Hour),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Fprintf(os.Stderr, "required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
