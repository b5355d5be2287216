package dispatch

import (
	"context"
	"errors"

	"github.com/smallbiznis/orderrelay/internal/observability/logger"
	"github.com/smallbiznis/orderrelay/internal/providers/whatsapp"
	"github.com/smallbiznis/orderrelay/internal/webhook/domain"
	"go.uber.org/zap"
)

var ErrNotificationFailed = errors.New("notification not delivered")

// notifyHandler logs the order summary and forwards the event to the
// notification provider.
type notifyHandler struct {
	name     string
	provider whatsapp.Provider
	log      *zap.Logger
	fields   func(domain.Event) []zap.Field
}

func (h *notifyHandler) Name() string { return h.name }

func (h *notifyHandler) Handle(ctx context.Context, event domain.Event) error {
	log := logger.WithContext(ctx, h.log)
	log.Info("processing "+h.name, h.fields(event)...)

	if !h.provider.SendWebhookNotification(ctx, event) {
		log.Warn("whatsapp notification failed", zap.Int64("order_id", event.Payload.ID))
		return ErrNotificationFailed
	}
	log.Info("whatsapp notification sent", zap.Int64("order_id", event.Payload.ID))
	return nil
}

// RegisterDefaults wires the notification handler for every modeled kind.
func RegisterDefaults(d *Dispatcher, provider whatsapp.Provider, log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("webhook.handler")

	d.Register(domain.KindCurrencyOrderPurchased, &notifyHandler{
		name:     "currency order",
		provider: provider,
		log:      log,
		fields:   currencyFields,
	})
	d.Register(domain.KindAccountOrderPurchased, &notifyHandler{
		name:     "account order",
		provider: provider,
		log:      log,
		fields:   orderFields,
	})
	d.Register(domain.KindItemOrderPurchased, &notifyHandler{
		name:     "item order",
		provider: provider,
		log:      log,
		fields:   orderFields,
	})
	d.Register(domain.KindOrderReportIssued, &notifyHandler{
		name:     "order report",
		provider: provider,
		log:      log,
		fields:   orderFields,
	})
}

func orderFields(event domain.Event) []zap.Field {
	return []zap.Field{
		zap.Int64("order_id", event.Payload.ID),
		zap.String("status", string(event.Payload.Status)),
	}
}

func currencyFields(event domain.Event) []zap.Field {
	fields := orderFields(event)
	if c := event.Currency; c != nil {
		fields = append(fields,
			zap.String("game", c.Game.Name),
			zap.Int64("quantity", c.Quantity),
			zap.String("currency", c.CurrencyUnit.CurrencyName),
			zap.String("buyer", c.Buyer.Username),
		)
	}
	return fields
}
