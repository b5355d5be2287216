package context

import (
	"context"
	"strings"
)

// GinEventKey is the gin context key under which the webhook handler stores the
// decoded event kind for request logging and tracing.
const GinEventKey = "webhook_event"

type requestIDKey struct{}

type deliveryIDKey struct{}

type eventKey struct{}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey{}).(string)
	return value
}

// WithDeliveryID tags the context with the id assigned to one accepted webhook
// delivery; it follows the delivery into its background processing.
func WithDeliveryID(ctx context.Context, deliveryID string) context.Context {
	deliveryID = strings.TrimSpace(deliveryID)
	if deliveryID == "" {
		return ctx
	}
	return context.WithValue(ctx, deliveryIDKey{}, deliveryID)
}

func DeliveryIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(deliveryIDKey{}).(string)
	return value
}

// WithEvent records the event kind and dedup key being processed.
func WithEvent(ctx context.Context, kind, key string) context.Context {
	return context.WithValue(ctx, eventKey{}, [2]string{strings.TrimSpace(kind), strings.TrimSpace(key)})
}

func EventFromContext(ctx context.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	value, _ := ctx.Value(eventKey{}).([2]string)
	return value[0], value[1]
}
