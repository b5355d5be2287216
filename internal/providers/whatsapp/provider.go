package whatsapp

import (
	"context"

	"github.com/smallbiznis/orderrelay/internal/webhook/domain"
)

// Provider delivers text notifications to a WhatsApp gateway. Failures are
// logged by the implementation and reported as false, never as errors.
type Provider interface {
	SendMessage(ctx context.Context, message string, to string) bool
	SendWebhookNotification(ctx context.Context, event domain.Event) bool
	SendStatusUpdate(ctx context.Context, orderID int64, oldStatus string, newStatus string) bool
	SendCustomMessage(ctx context.Context, message string, to string) bool
}

type NoOpProvider struct{}

func (p *NoOpProvider) SendMessage(ctx context.Context, message string, to string) bool {
	return false
}

func (p *NoOpProvider) SendWebhookNotification(ctx context.Context, event domain.Event) bool {
	return false
}

func (p *NoOpProvider) SendStatusUpdate(ctx context.Context, orderID int64, oldStatus string, newStatus string) bool {
	return false
}

func (p *NoOpProvider) SendCustomMessage(ctx context.Context, message string, to string) bool {
	return false
}
