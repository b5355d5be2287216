package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/orderrelay/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultBucketTTL(t *testing.T) {
	assert.Equal(t, 4*time.Second, defaultBucketTTL(20, 40))
	assert.Equal(t, time.Second, defaultBucketTTL(1000, 1))
	assert.Equal(t, time.Second, defaultBucketTTL(0, 10))
	assert.Equal(t, 3*time.Second, defaultBucketTTL(3, 4))
}

func TestCastHelpers(t *testing.T) {
	assert.Equal(t, int64(1), castToInt(int64(1)))
	assert.Equal(t, int64(2), castToInt(2))
	assert.Equal(t, int64(3), castToInt(3.9))
	assert.Equal(t, int64(0), castToInt("1"))

	assert.Equal(t, 2.5, castToFloat(2.5))
	assert.Equal(t, 4.0, castToFloat(int64(4)))
	assert.Equal(t, 0.75, castToFloat("0.75"))
	assert.Equal(t, 0.0, castToFloat("nope"))
	assert.Equal(t, 0.0, castToFloat(nil))
}

func TestNewResultRetryAfter(t *testing.T) {
	res := newResult(false, 0, 1_000, 2, 10)
	assert.False(t, res.Allowed)
	assert.Equal(t, 10, res.Limit)
	assert.Equal(t, 500*time.Millisecond, res.RetryAfter)
	assert.Equal(t, time.UnixMilli(1_500), res.ResetTime)

	res = newResult(true, 7, 1_000, 2, 10)
	assert.True(t, res.Allowed)
	assert.Equal(t, 7, res.Remaining)
	assert.Zero(t, res.RetryAfter)
}

func TestTokenBucketRejectsBadInput(t *testing.T) {
	var nilBucket *TokenBucket
	_, err := nilBucket.Allow(context.Background(), "k", 1, 1)
	assert.Error(t, err)
	assert.Nil(t, NewTokenBucket(nil))
}

func TestNewWebhookLimiter(t *testing.T) {
	limiter, err := NewWebhookLimiter(config.Config{})
	require.NoError(t, err)
	assert.Nil(t, limiter)
	assert.False(t, limiter.Enabled())

	res, err := limiter.Allow(context.Background(), "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.NoError(t, limiter.Close())

	_, err = NewWebhookLimiter(config.Config{RateLimit: config.RateLimitConfig{Enabled: true}})
	assert.Error(t, err)

	_, err = NewWebhookLimiter(config.Config{RateLimit: config.RateLimitConfig{
		Enabled:   true,
		RedisAddr: "localhost:6379",
	}})
	assert.Error(t, err)

	limiter, err = NewWebhookLimiter(config.Config{RateLimit: config.RateLimitConfig{
		Enabled:      true,
		RedisAddr:    "localhost:6379",
		WebhookRate:  5,
		WebhookBurst: 10,
	}})
	require.NoError(t, err)
	assert.True(t, limiter.Enabled())
	assert.NoError(t, limiter.Close())
}
