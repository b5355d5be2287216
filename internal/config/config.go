package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultUserAgent   = "GameBoost Server"
	DefaultFonnteURL   = "https://api.fonnte.com/send"
	DefaultCountryCode = "62"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	OTLPEndpoint string

	Webhook      WebhookConfig
	Notification NotificationConfig
	RateLimit    RateLimitConfig

	RoutingConfigPath string
}

type WebhookConfig struct {
	Secret             string
	UserAgent          string
	DedupTTL           time.Duration
	DedupSweepInterval time.Duration
}

type NotificationConfig struct {
	APIURL           string
	Token            string
	DefaultRecipient string
	CountryCode      string
	Timeout          time.Duration
}

type RateLimitConfig struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	WebhookRate   float64
	WebhookBurst  int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:      getenv("APP_SERVICE", "orderrelay"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),
		Webhook: WebhookConfig{
			Secret:             strings.TrimSpace(os.Getenv("GAMEBOOST_WEBHOOK_SECRET")),
			UserAgent:          getenv("GAMEBOOST_USER_AGENT", DefaultUserAgent),
			DedupTTL:           getenvDuration("DEDUP_TTL", 24*time.Hour),
			DedupSweepInterval: getenvDuration("DEDUP_SWEEP_INTERVAL", time.Hour),
		},
		Notification: NotificationConfig{
			APIURL:           getenv("FONNTE_API_URL", DefaultFonnteURL),
			Token:            strings.TrimSpace(os.Getenv("FONNTE_TOKEN")),
			DefaultRecipient: strings.TrimSpace(os.Getenv("WHATSAPP_DEFAULT_RECIPIENT")),
			CountryCode:      getenv("WHATSAPP_COUNTRY_CODE", DefaultCountryCode),
			Timeout:          getenvDuration("NOTIFY_TIMEOUT", 10*time.Second),
		},
		RateLimit: RateLimitConfig{
			Enabled:       getenvBool("RATE_LIMIT_ENABLED", false),
			RedisAddr:     strings.TrimSpace(getenv("RATE_LIMIT_REDIS_ADDR", "")),
			RedisPassword: strings.TrimSpace(getenv("RATE_LIMIT_REDIS_PASSWORD", "")),
			RedisDB:       getenvInt("RATE_LIMIT_REDIS_DB", 0),
			WebhookRate:   getenvFloat("RATE_LIMIT_WEBHOOK_RATE", 20),
			WebhookBurst:  getenvInt("RATE_LIMIT_WEBHOOK_BURST", 40),
		},
		RoutingConfigPath: strings.TrimSpace(getenv("ROUTING_CONFIG_PATH", "")),
	}

	return cfg
}

// WebhookEnabled reports whether inbound webhooks can be verified at all.
func (c Config) WebhookEnabled() bool {
	return c.Webhook.Secret != ""
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
