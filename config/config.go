package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration
type Config struct {
	// API Configuration
	APIPort        string
	APIHost        string
	APIEnvironment string

	// HR backend API
	BackendURL     string
	BackendTimeout int // seconds

	// Redis
	RedisURL string

	// Stripe
	StripeSecretKey      string
	StripePublishableKey string

	// Checkout flow
	FlowTTLMinutes   int
	PlanRefreshCron  string
	PlanCacheTTLSecs int

	// Rate Limiting
	RateLimitRequestsPerMinute int
	RateLimitBurst             int

	// CORS
	CORSAllowedOrigins []string

	// Sentry
	SentryDSN         string
	SentryEnvironment string
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		// API
		APIPort:        getEnv("API_PORT", "8080"),
		APIHost:        getEnv("API_HOST", "0.0.0.0"),
		APIEnvironment: getEnv("API_ENVIRONMENT", "development"),

		// HR backend
		BackendURL:     getEnv("BACKEND_URL", "http://localhost:9090/api/v1"),
		BackendTimeout: getEnvAsInt("BACKEND_TIMEOUT_SECONDS", 15),

		// Redis
		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379"),

		// Stripe
		StripeSecretKey:      getEnv("STRIPE_SECRET_KEY", ""),
		StripePublishableKey: getEnv("STRIPE_PUBLISHABLE_KEY", ""),

		// Checkout flow
		FlowTTLMinutes:   getEnvAsInt("CHECKOUT_FLOW_TTL_MINUTES", 30),
		PlanRefreshCron:  getEnv("PLAN_REFRESH_CRON", "*/15 * * * *"),
		PlanCacheTTLSecs: getEnvAsInt("PLAN_CACHE_TTL_SECONDS", 900),

		// Rate Limiting
		RateLimitRequestsPerMinute: getEnvAsInt("RATE_LIMIT_REQUESTS_PER_MINUTE", 60),
		RateLimitBurst:             getEnvAsInt("RATE_LIMIT_BURST", 10),

		// CORS
		CORSAllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),

		// Sentry
		SentryDSN:         getEnv("SENTRY_DSN", ""),
		SentryEnvironment: getEnv("SENTRY_ENVIRONMENT", "development"),
	}
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}
