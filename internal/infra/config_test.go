package infra

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/donations")
	t.Setenv("AMQP_URL", "amqp://localhost")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "simulator", cfg.GatewayMode)
	assert.Equal(t, int64(100), cfg.MinDonationDefault)
	assert.Equal(t, 3, cfg.SettleRetries)
	assert.Equal(t, 200*time.Millisecond, cfg.SettleBackoff)
	assert.Equal(t, 15*time.Second, cfg.HTTPReadTimeout)
}

func TestLoadConfigRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("AMQP_URL", "amqp://localhost")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoadConfigRequiresAmqpURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/donations")
	t.Setenv("AMQP_URL", "")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AMQP_URL")
}

func TestLoadConfigHTTPGatewayNeedsCredentials(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("GATEWAY_MODE", "http")

	_, err := LoadConfig()
	require.Error(t, err)

	t.Setenv("GATEWAY_BASE_URL", "https://gateway.example.com")
	t.Setenv("GATEWAY_SECRET_KEY", "sk_live_x")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "http", cfg.GatewayMode)
}

func TestLoadConfigRejectsUnknownGatewayMode(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("GATEWAY_MODE", "carrier-pigeon")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestLoadConfigPerCurrencyMinimums(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MIN_DONATION_USD", "250")
	t.Setenv("MIN_DONATION_JPY", "50")
	t.Setenv("MIN_DONATION_DEFAULT", "120")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, int64(250), cfg.MinDonation["USD"])
	assert.Equal(t, int64(50), cfg.MinDonation["JPY"])
	assert.Equal(t, int64(120), cfg.MinDonationDefault)
	_, ok := cfg.MinDonation["DEFAULT"]
	assert.False(t, ok, "MIN_DONATION_DEFAULT is not a currency")
}

func TestLoadConfigAllowedOrigins(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ALLOWED_ORIGINS", "https://fundlift.io, https://app.fundlift.io")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://fundlift.io", "https://app.fundlift.io"}, cfg.AllowedOrigins)
}
