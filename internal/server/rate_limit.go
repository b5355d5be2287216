package server

import (
	"math"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/orderrelay/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/orderrelay/internal/observability/metrics"
	"github.com/smallbiznis/orderrelay/internal/ratelimit"
	"go.uber.org/zap"
)

// WebhookRateLimit throttles deliveries per client address. Limiter errors
// let the request through.
func (s *Server) WebhookRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter == nil {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		clientIP := c.ClientIP()
		result, err := s.limiter.Allow(ctx, clientIP)
		if err != nil {
			logger.WithContext(ctx, s.log).Warn("webhook rate limit check failed", zap.Error(err))
			c.Next()
			return
		}
		if result != nil && !result.Allowed {
			s.denyWebhookRateLimit(c, clientIP, result)
			return
		}

		c.Next()
	}
}

func (s *Server) denyWebhookRateLimit(c *gin.Context, clientIP string, result *ratelimit.RateLimitResult) {
	ctx := c.Request.Context()
	logger.WithContext(ctx, s.log).Warn("webhook rate limit exceeded",
		zap.String("client_ip", clientIP),
		zap.Duration("retry_after", result.RetryAfter),
	)

	c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(result)))
	if result.Limit > 0 {
		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	}
	s.reject(c, "unknown", obsmetrics.OutcomeRateLimited, ErrRateLimited)
}

func retryAfterSeconds(result *ratelimit.RateLimitResult) int {
	seconds := int(math.Ceil(result.RetryAfter.Seconds()))
	if seconds < 1 {
		return 1
	}
	return seconds
}
