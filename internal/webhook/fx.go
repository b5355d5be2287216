package webhook

import (
	"github.com/smallbiznis/orderrelay/internal/config"
	"github.com/smallbiznis/orderrelay/internal/webhook/dedup"
	"github.com/smallbiznis/orderrelay/internal/webhook/dispatch"
	"github.com/smallbiznis/orderrelay/internal/webhook/service"
	"github.com/smallbiznis/orderrelay/internal/webhook/signature"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("webhook",
	fx.Provide(provideVerifier),
	dedup.Module,
	dispatch.Module,
	service.Module,
)

func provideVerifier(cfg config.Config, log *zap.Logger) *signature.Verifier {
	return signature.NewVerifier(cfg.Webhook.Secret, log)
}
