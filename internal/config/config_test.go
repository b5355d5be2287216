package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GAMEBOOST_WEBHOOK_SECRET", "")
	t.Setenv("FONNTE_TOKEN", "")
	t.Setenv("DEDUP_TTL", "")

	cfg := Load()

	assert.False(t, cfg.WebhookEnabled())
	assert.Equal(t, DefaultUserAgent, cfg.Webhook.UserAgent)
	assert.Equal(t, 24*time.Hour, cfg.Webhook.DedupTTL)
	assert.Equal(t, time.Hour, cfg.Webhook.DedupSweepInterval)
	assert.Equal(t, DefaultFonnteURL, cfg.Notification.APIURL)
	assert.Equal(t, DefaultCountryCode, cfg.Notification.CountryCode)
	assert.Equal(t, 10*time.Second, cfg.Notification.Timeout)
	assert.Empty(t, cfg.Notification.Token)
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("GAMEBOOST_WEBHOOK_SECRET", "  s3cret ")
	t.Setenv("DEDUP_TTL", "2h")
	t.Setenv("DEDUP_SWEEP_INTERVAL", "not-a-duration")
	t.Setenv("RATE_LIMIT_ENABLED", "yes")
	t.Setenv("RATE_LIMIT_WEBHOOK_BURST", "7")

	cfg := Load()

	assert.True(t, cfg.WebhookEnabled())
	assert.Equal(t, "s3cret", cfg.Webhook.Secret)
	assert.Equal(t, 2*time.Hour, cfg.Webhook.DedupTTL)
	assert.Equal(t, time.Hour, cfg.Webhook.DedupSweepInterval)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 7, cfg.RateLimit.WebhookBurst)
}

func writeRouting(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "routing.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestRoutingHolderLoadsRules(t *testing.T) {
	path := writeRouting(t, `
routing:
  rules:
    - event: order.report.issued
      recipient: "628111"
    - event: account.order.purchased
      muted: true
`)

	holder, err := NewRoutingHolder(Config{RoutingConfigPath: path}, zap.NewNop())
	require.NoError(t, err)

	rule, ok := holder.Get().Lookup("order.report.issued")
	require.True(t, ok)
	assert.Equal(t, "628111", rule.Recipient)
	assert.False(t, rule.Muted)

	rule, ok = holder.Get().Lookup("account.order.purchased")
	require.True(t, ok)
	assert.True(t, rule.Muted)

	_, ok = holder.Get().Lookup("item.order.purchased")
	assert.False(t, ok)
}

func TestRoutingHolderRejectsDuplicateEvents(t *testing.T) {
	path := writeRouting(t, `
routing:
  rules:
    - event: item.order.purchased
    - event: ITEM.ORDER.PURCHASED
`)

	_, err := NewRoutingHolder(Config{RoutingConfigPath: path}, zap.NewNop())
	require.Error(t, err)
}

func TestRoutingHolderMissingFileFallsBackToDefaults(t *testing.T) {
	holder, err := NewRoutingHolder(Config{RoutingConfigPath: filepath.Join(t.TempDir(), "absent.yml")}, zap.NewNop())
	require.NoError(t, err)
	assert.Empty(t, holder.Get().Rules)
}
