package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// Stripe
	StripeSecretKey     string
	StripeWebhookSecret string

	// Error reporting. The log name must contain "err" so entries are
	// picked up by the error-aggregation system.
	ErrorLogName   string
	ServiceName    string
	AlertFromEmail string
	AlertToEmail   string

	// Document store
	DocumentsTable string

	// Geofiltering
	SearchRadiusMeters float64

	// Account teardown queue
	TeardownQueueURL    string
	WorkerWaitSeconds   int
	WorkerMaxMessages   int
	InlineOrchestration bool

	// Caller auth
	UserJWTSecret string

	// AWS
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Redis (webhook event dedup)
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	ProcessedTTL  time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),

		ErrorLogName:   getEnv("ERROR_LOG_NAME", "errors"),
		ServiceName:    getEnv("SERVICE_NAME", "cyparking-cloud"),
		AlertFromEmail: getEnv("ALERT_FROM_EMAIL", ""),
		AlertToEmail:   getEnv("ALERT_TO_EMAIL", ""),

		DocumentsTable: getEnv("DOCUMENTS_TABLE", "documents"),

		SearchRadiusMeters: getEnvAsFloat("SEARCH_RADIUS_METERS", 1000),

		TeardownQueueURL:    getEnv("TEARDOWN_QUEUE_URL", ""),
		WorkerWaitSeconds:   getEnvAsInt("WORKER_WAIT_SECONDS", 10),
		WorkerMaxMessages:   getEnvAsInt("WORKER_MAX_MESSAGES", 5),
		InlineOrchestration: getEnvAsBool("INLINE_ORCHESTRATION", false),

		UserJWTSecret: getEnv("USER_JWT_SECRET", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		ProcessedTTL:  getEnvAsDuration("PROCESSED_EVENT_TTL", 72*time.Hour),
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
