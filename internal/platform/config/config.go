// Package config builds runtime configuration from environment variables so
// main stays lean. Every knob has a development default; production overrides
// them through the VERIDOC_* variables.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	pstrings "veridoc/pkg/platform/strings"
)

// Config is the full server configuration.
type Config struct {
	Server  Server
	Redis   RedisConfig
	Kafka   KafkaConfig
	Webhook WebhookConfig
	Storage StorageConfig
}

// Server captures HTTP server and core secrets.
type Server struct {
	Addr          string
	PostgresDSN   string
	JWTSigningKey string
	AdminToken    string
	LogLevel      string
}

// RedisConfig configures the result cache client. An empty URL disables
// Redis entirely.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the audit sink. Empty brokers disable Kafka and the
// audit trail stays local.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// WebhookConfig configures outbound partner notifications.
type WebhookConfig struct {
	SigningSecret string
	SweepInterval time.Duration
}

// StorageConfig configures signed download links for stored images.
type StorageConfig struct {
	DownloadSecret  string
	DownloadBaseURL string
	DownloadTTL     time.Duration
}

// FromEnv builds the configuration from environment variables.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr:          envOr("VERIDOC_ADDR", ":8080"),
			PostgresDSN:   os.Getenv("VERIDOC_POSTGRES_DSN"),
			JWTSigningKey: envOr("VERIDOC_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			AdminToken:    os.Getenv("VERIDOC_ADMIN_TOKEN"),
			LogLevel:      envOr("VERIDOC_LOG_LEVEL", "info"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("VERIDOC_REDIS_URL"),
			PoolSize:     envInt("VERIDOC_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("VERIDOC_REDIS_MIN_IDLE", 2),
			DialTimeout:  envDuration("VERIDOC_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("VERIDOC_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("VERIDOC_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(os.Getenv("VERIDOC_KAFKA_BROKERS")),
			Topic:   envOr("VERIDOC_AUDIT_TOPIC", "veridoc.audit"),
		},
		Webhook: WebhookConfig{
			SigningSecret: envOr("VERIDOC_WEBHOOK_SECRET", "dev-webhook-secret"),
			SweepInterval: envDuration("VERIDOC_WEBHOOK_SWEEP_INTERVAL", time.Minute),
		},
		Storage: StorageConfig{
			DownloadSecret:  envOr("VERIDOC_DOWNLOAD_SECRET", "dev-download-secret"),
			DownloadBaseURL: envOr("VERIDOC_DOWNLOAD_BASE_URL", "http://localhost:8080/v1/files"),
			DownloadTTL:     envDuration("VERIDOC_DOWNLOAD_TTL", 15*time.Minute),
		},
	}
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	return pstrings.DedupeAndTrim(strings.Split(value, ","))
}
