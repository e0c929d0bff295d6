package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Env       string
	LogLevel  string
	LogFormat string

	// Backend API
	APIDomain      string
	APIBasePath    string
	RequestTimeout time.Duration

	// Province/ward lookup API
	LocationAPIBase string

	// Session persistence
	SessionStore  string
	SessionFile   string
	SessionPrefix string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Booking
	BookingHistoryDelay time.Duration

	// Payment handoff
	PaymentCallbackAddr string
	PaymentCheckoutBase string

	// Observability
	MetricsAddr string

	// Chat assistant
	GeminiAPIKey       string
	GeminiModelID      string
	ChatRevealInterval time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Env:       getEnv("ENV", "development"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: strings.ToLower(strings.TrimSpace(getEnv("LOG_FORMAT", "text"))),

		APIDomain:      strings.TrimRight(getEnv("API_DOMAIN", "http://localhost:8080"), "/"),
		APIBasePath:    getEnv("API_BASE_PATH", "/api/v1"),
		RequestTimeout: getEnvAsDuration("REQUEST_TIMEOUT", 30*time.Second),

		LocationAPIBase: strings.TrimRight(getEnv("LOCATION_API_BASE", "https://provinces.open-api.vn/api/v2"), "/"),

		SessionStore:  strings.ToLower(strings.TrimSpace(getEnv("SESSION_STORE", "file"))),
		SessionFile:   getEnv("SESSION_FILE", defaultSessionFile()),
		SessionPrefix: getEnv("SESSION_PREFIX", "medbook:session:"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		BookingHistoryDelay: getEnvAsDuration("BOOKING_HISTORY_DELAY", 2*time.Second),

		PaymentCallbackAddr: getEnv("PAYMENT_CALLBACK_ADDR", "127.0.0.1:8765"),
		PaymentCheckoutBase: strings.TrimRight(getEnv("PAYMENT_CHECKOUT_BASE", "https://pay.payos.vn/web"), "/"),

		MetricsAddr: getEnv("METRICS_ADDR", ""),

		GeminiAPIKey:       getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:      getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),
		ChatRevealInterval: getEnvAsDuration("CHAT_REVEAL_INTERVAL", 800*time.Millisecond),
	}
}

// APIBaseURL joins the domain and base path, e.g. https://host/api/v1.
func (c *Config) APIBaseURL() string {
	path := "/" + strings.Trim(c.APIBasePath, "/")
	if path == "/" {
		return c.APIDomain
	}
	return c.APIDomain + path
}

func defaultSessionFile() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".medbook-session.json"
	}
	return filepath.Join(home, ".medbook", "session.json")
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
