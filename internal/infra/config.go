package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	AmqpURL     string
	RedisAddr   string

	// GatewayMode selects the processor client: "http" for a real processor,
	// "simulator" for development.
	GatewayMode        string
	GatewayBaseURL     string
	GatewaySecretKey   string
	GatewayTimeout     time.Duration
	GatewayDeclineRate float64

	MailBaseURL string
	MailAPIKey  string
	MailFrom    string

	BrandTablePath string
	GeoIPDBPath    string

	// MinDonation holds per-currency minimums in minor units, read from
	// MIN_DONATION_<CCY> variables; MinDonationDefault applies otherwise.
	MinDonation        map[string]int64
	MinDonationDefault int64

	SettleRetries int
	SettleBackoff time.Duration

	AllowedOrigins   []string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		Port:               getEnv("PORT", "8080"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		AmqpURL:            os.Getenv("AMQP_URL"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		GatewayMode:        getEnv("GATEWAY_MODE", "simulator"),
		GatewayBaseURL:     os.Getenv("GATEWAY_BASE_URL"),
		GatewaySecretKey:   os.Getenv("GATEWAY_SECRET_KEY"),
		GatewayTimeout:     time.Second * time.Duration(getEnvInt("GATEWAY_TIMEOUT_SECONDS", 15)),
		GatewayDeclineRate: getEnvFloat("GATEWAY_DECLINE_RATE", 0),
		MailBaseURL:        os.Getenv("MAIL_BASE_URL"),
		MailAPIKey:         os.Getenv("MAIL_API_KEY"),
		MailFrom:           getEnv("MAIL_FROM", "receipts@fundlift.io"),
		BrandTablePath:     os.Getenv("CARD_BRAND_TABLE_PATH"),
		GeoIPDBPath:        os.Getenv("GEOIP_DB_PATH"),
		MinDonation:        minimumsFromEnv(),
		MinDonationDefault: int64(getEnvInt("MIN_DONATION_DEFAULT", 100)),
		SettleRetries:      getEnvInt("SETTLE_RETRIES", 3),
		SettleBackoff:      time.Millisecond * time.Duration(getEnvInt("SETTLE_BACKOFF_MS", 200)),
		AllowedOrigins:     splitList(getEnv("ALLOWED_ORIGINS", "")),
		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:    getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.AmqpURL == "" {
		return nil, fmt.Errorf("AMQP_URL is required")
	}
	if cfg.GatewayMode != "simulator" && cfg.GatewayMode != "http" {
		return nil, fmt.Errorf("GATEWAY_MODE must be simulator or http, got %q", cfg.GatewayMode)
	}
	if cfg.GatewayMode == "http" && (cfg.GatewayBaseURL == "" || cfg.GatewaySecretKey == "") {
		return nil, fmt.Errorf("GATEWAY_BASE_URL and GATEWAY_SECRET_KEY are required in http mode")
	}

	return cfg, nil
}

// minimumsFromEnv collects MIN_DONATION_<CCY> overrides, e.g.
// MIN_DONATION_USD=100 or MIN_DONATION_JPY=50.
func minimumsFromEnv() map[string]int64 {
	minimums := make(map[string]int64)
	for _, entry := range os.Environ() {
		key, value, ok := strings.Cut(entry, "=")
		if !ok || !strings.HasPrefix(key, "MIN_DONATION_") || key == "MIN_DONATION_DEFAULT" {
			continue
		}
		ccy := strings.TrimPrefix(key, "MIN_DONATION_")
		if len(ccy) != 3 {
			continue
		}
		if amount, err := strconv.ParseInt(value, 10, 64); err == nil && amount > 0 {
			minimums[strings.ToUpper(ccy)] = amount
		}
	}
	return minimums
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
