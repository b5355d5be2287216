package dedup

import (
	"context"

	"github.com/smallbiznis/orderrelay/internal/clock"
	"github.com/smallbiznis/orderrelay/internal/config"
	obsmetrics "github.com/smallbiznis/orderrelay/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("webhook.dedup",
	fx.Provide(Provide),
	fx.Invoke(RegisterSweeper),
)

type ProvideParams struct {
	fx.In

	Cfg     config.Config
	Clock   clock.Clock
	Log     *zap.Logger
	Metrics *obsmetrics.RelayMetrics `optional:"true"`
}

func Provide(p ProvideParams) *Cache {
	return New(Params{
		TTL:           p.Cfg.Webhook.DedupTTL,
		SweepInterval: p.Cfg.Webhook.DedupSweepInterval,
		Clock:         p.Clock,
		Log:           p.Log,
		Metrics:       p.Metrics,
	})
}

// RegisterSweeper ties the periodic sweep to the application lifecycle.
func RegisterSweeper(lc fx.Lifecycle, cache *Cache) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())

			go cache.Run(ctx)

			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})
			return nil
		},
	})
}
