package ratelimit

import (
	"context"

	"go.uber.org/fx"
)

var Module = fx.Module("rate.limit",
	fx.Provide(NewWebhookLimiter),
	fx.Invoke(registerClose),
)

func registerClose(lc fx.Lifecycle, limiter *WebhookLimiter) {
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return limiter.Close()
		},
	})
}
