package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/orderrelay/internal/config"
)

const keyWebhookClient = "webhook:gameboost:ip:%s"

// Limiter decides whether one more inbound webhook from a client is allowed.
type Limiter interface {
	Allow(ctx context.Context, clientIP string) (*RateLimitResult, error)
}

// WebhookLimiter throttles inbound webhook deliveries per client address.
type WebhookLimiter struct {
	client *redis.Client
	bucket *TokenBucket

	rate  float64
	burst int
}

// NewWebhookLimiter returns nil when rate limiting is disabled.
func NewWebhookLimiter(cfg config.Config) (*WebhookLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if limitCfg.WebhookRate <= 0 || limitCfg.WebhookBurst <= 0 {
		return nil, errors.New("webhook rate limit must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	})

	return &WebhookLimiter{
		client: client,
		bucket: NewTokenBucket(client),
		rate:   limitCfg.WebhookRate,
		burst:  limitCfg.WebhookBurst,
	}, nil
}

func (l *WebhookLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// Allow consumes one token from the bucket of clientIP. A disabled limiter
// always allows.
func (l *WebhookLimiter) Allow(ctx context.Context, clientIP string) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	clientIP = strings.TrimSpace(clientIP)
	if clientIP == "" {
		clientIP = "unknown"
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyWebhookClient, clientIP), l.rate, l.burst)
}

func (l *WebhookLimiter) Close() error {
	if l == nil || l.client == nil {
		return nil
	}
	return l.client.Close()
}
