package service

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("webhook.service",
	fx.Provide(NewService),
	fx.Invoke(registerDrain),
)

func registerDrain(lc fx.Lifecycle, svc *Service, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			if err := svc.Drain(ctx); err != nil {
				log.Warn("webhook tasks still running at shutdown", zap.Error(err))
			}
			return nil
		},
	})
}
