package dispatch

import (
	obsmetrics "github.com/smallbiznis/orderrelay/internal/observability/metrics"
	"github.com/smallbiznis/orderrelay/internal/providers/whatsapp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("webhook.dispatch",
	fx.Provide(Provide),
)

type Params struct {
	fx.In

	Provider whatsapp.Provider
	Log      *zap.Logger
	Metrics  *obsmetrics.RelayMetrics `optional:"true"`
}

func Provide(p Params) *Dispatcher {
	d := New(p.Log, p.Metrics)
	RegisterDefaults(d, p.Provider, p.Log)
	return d
}
