package config_test

import (
	"fortunex-api/internal/config"
	"testing"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Defaults(t *testing.T) {
	cfg := &config.Config{}
	require.NoError(t, env.Parse(cfg))

	assert.Equal(t, "development", cfg.Environment.Name)
	assert.Equal(t, "8080", cfg.HTTP.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 5*time.Minute, cfg.Stripe.WebhookTolerance)
	assert.Equal(t, int64(65536), cfg.Stripe.MaxBodyBytes)
	assert.Equal(t, 8*time.Second, cfg.DexScreener.Timeout)
	assert.Equal(t, 2, cfg.Usage.FreeDailyCap)
	assert.Equal(t, 3, cfg.Usage.TrialDays)
	assert.False(t, cfg.Stripe.Configured())
}

func TestConfig_PrefixedGroups(t *testing.T) {
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_123")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_abc")
	t.Setenv("STRIPE_WEBHOOK_MAX_BODY_BYTES", "1024")
	t.Setenv("DEXSCREENER_TIMEOUT", "2s")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("USAGE_FREE_DAILY_CAP", "5")

	cfg := &config.Config{}
	require.NoError(t, env.Parse(cfg))

	assert.True(t, cfg.Stripe.Configured())
	assert.Equal(t, int64(1024), cfg.Stripe.MaxBodyBytes)
	assert.Equal(t, 2*time.Second, cfg.DexScreener.Timeout)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 5, cfg.Usage.FreeDailyCap)
}

func TestStripe_ConfiguredNeedsBothSecrets(t *testing.T) {
	assert.False(t, config.Stripe{SecretKey: "sk"}.Configured())
	assert.False(t, config.Stripe{WebhookSecret: "whsec"}.Configured())
	assert.True(t, config.Stripe{SecretKey: "sk", WebhookSecret: "whsec"}.Configured())
}
