// Package config loads tracker configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every environment-sourced setting the tracker needs at
// startup. Components take a *Config explicitly rather than reading the
// environment themselves, so tests can construct overrides freely.
type Config struct {
	Addr            string
	Env             string
	GracefulTimeout time.Duration

	RedisURL   string
	RegistryDB string // SQLite DSN, e.g. "file:tracker.db?_pragma=journal_mode(WAL)"

	TargetTokenMint string

	DexQuoteURL string
	PriceTTL    time.Duration

	ChatBotToken    string
	ChatChannelID   string
	AdminUserIDs    []string
	PushAppToken    string
	PushAPIURL      string
	ChatAPIURL      string

	ChatThresholdUSD       float64
	SingleThresholdUSD     float64
	CumulativeThresholdUSD float64
	WindowSeconds          int64
	FiveSellsEnabled       bool
	FiveSellsThresholdUSD  float64

	WebhookProvisionAPIKey string
	WebhookProvisionURL    string

	AdminAPIKey string

	LogLevel string
}

// Load reads configuration from the environment (and an optional .env
// file) and validates required fields. A non-nil error means startup
// should abort — the ConfigInvalid case from the error taxonomy.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Addr:            getEnv("TRACKER_ADDR", ":8080"),
		Env:             getEnv("ENV", "development"),
		GracefulTimeout: getEnvDuration("TRACKER_GRACEFUL_TIMEOUT_SEC", 30*time.Second),

		RedisURL:   getEnv("REDIS_URL", "redis://localhost:6379"),
		RegistryDB: getEnv("REGISTRY_DB_PATH", "tracker.db"),

		TargetTokenMint: getEnv("TARGET_TOKEN_MINT", ""),

		DexQuoteURL: getEnv("DEX_QUOTE_URL", "https://api.dexscreener.com/latest/dex/tokens"),
		PriceTTL:    getEnvDuration("PRICE_CACHE_TTL_SEC", 60*time.Second),

		ChatBotToken:  getEnv("CHAT_BOT_TOKEN", ""),
		ChatChannelID: getEnv("CHAT_CHANNEL_ID", ""),
		AdminUserIDs:  splitCSV(getEnv("ADMIN_USER_IDS", "")),
		PushAppToken:  getEnv("PUSH_APP_TOKEN", ""),
		PushAPIURL:    getEnv("PUSH_API_URL", "https://exp.host/--/api/v2/push/send"),
		ChatAPIURL:    getEnv("CHAT_API_URL", "https://api.telegram.org"),

		ChatThresholdUSD:       getEnvFloat("CHAT_THRESHOLD_USD", 500),
		SingleThresholdUSD:     getEnvFloat("SINGLE_THRESHOLD_USD", 300),
		CumulativeThresholdUSD: getEnvFloat("CUMULATIVE_THRESHOLD_USD", 300),
		WindowSeconds:          getEnvInt64("WINDOW_SECONDS", 3600),
		FiveSellsEnabled:       getEnvBool("FIVE_SELLS_ENABLED", true),
		FiveSellsThresholdUSD:  getEnvFloat("FIVE_SELLS_THRESHOLD_USD", 300),

		WebhookProvisionAPIKey: getEnv("PROVIDER_API_KEY", ""),
		WebhookProvisionURL:    getEnv("PROVIDER_WEBHOOK_URL", ""),

		AdminAPIKey: getEnv("ADMIN_API_KEY", ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.TargetTokenMint == "" {
		return fmt.Errorf("config: TARGET_TOKEN_MINT is required")
	}
	if c.WindowSeconds <= 0 {
		return fmt.Errorf("config: WINDOW_SECONDS must be positive, got %d", c.WindowSeconds)
	}
	if c.PriceTTL <= 0 {
		return fmt.Errorf("config: PRICE_CACHE_TTL_SEC must be positive")
	}
	return nil
}

func (c *Config) IsDevelopment() bool { return c.Env == "development" }
func (c *Config) IsProduction() bool  { return c.Env == "production" }

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if secs, err := strconv.Atoi(v); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return fallback
}

func splitCSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
