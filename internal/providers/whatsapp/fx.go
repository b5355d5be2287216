package whatsapp

import (
	"github.com/smallbiznis/orderrelay/internal/clock"
	"github.com/smallbiznis/orderrelay/internal/config"
	obsmetrics "github.com/smallbiznis/orderrelay/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.whatsapp",
	fx.Provide(NewFromConfig),
)

type Params struct {
	fx.In

	Cfg     config.Config
	Routing *config.RoutingHolder
	Clock   clock.Clock
	Log     *zap.Logger
	Metrics *obsmetrics.RelayMetrics `optional:"true"`
}

func NewFromConfig(p Params) Provider {
	return NewFonnte(Config{
		APIURL:           p.Cfg.Notification.APIURL,
		Token:            p.Cfg.Notification.Token,
		DefaultRecipient: p.Cfg.Notification.DefaultRecipient,
		CountryCode:      p.Cfg.Notification.CountryCode,
		Timeout:          p.Cfg.Notification.Timeout,
	}, Options{
		Routing: p.Routing,
		Clock:   p.Clock,
		Metrics: p.Metrics,
		Log:     p.Log,
	})
}
