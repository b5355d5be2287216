package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	obscontext "github.com/smallbiznis/orderrelay/internal/observability/context"
	"github.com/smallbiznis/orderrelay/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/orderrelay/internal/observability/metrics"
	"github.com/smallbiznis/orderrelay/internal/webhook/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Handler reacts to one event kind.
type Handler interface {
	Name() string
	Handle(ctx context.Context, event domain.Event) error
}

// Outcome summarizes one dispatch. It is informational only.
type Outcome struct {
	Kind    domain.Kind
	Handled int
	Failed  int
	Unknown bool
	Err     error
}

// OK reports whether every selected handler succeeded.
func (o Outcome) OK() bool {
	return o.Failed == 0
}

// Dispatcher routes events to the handlers registered for their kind.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[domain.Kind][]Handler

	log     *zap.Logger
	metrics *obsmetrics.RelayMetrics
	tracer  trace.Tracer
}

func New(log *zap.Logger, metrics *obsmetrics.RelayMetrics) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		handlers: make(map[domain.Kind][]Handler),
		log:      log.Named("webhook.dispatch"),
		metrics:  metrics,
		tracer:   otel.Tracer("orderrelay/webhook.dispatch"),
	}
}

// Register adds handler for kind. Several handlers may share a kind; they run
// concurrently.
func (d *Dispatcher) Register(kind domain.Kind, handler Handler) {
	if handler == nil {
		return
	}
	d.mu.Lock()
	d.handlers[kind] = append(d.handlers[kind], handler)
	d.mu.Unlock()
}

func (d *Dispatcher) handlersFor(kind domain.Kind) []Handler {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]Handler(nil), d.handlers[kind]...)
}

// Dispatch runs every handler registered for the event kind and waits for all
// of them to settle. Handler errors and panics are collected, never returned.
func (d *Dispatcher) Dispatch(ctx context.Context, event domain.Event) Outcome {
	ctx, span := d.tracer.Start(ctx, "webhook.dispatch",
		trace.WithAttributes(attribute.String("event", event.Kind.MetricLabel())),
	)
	defer span.End()

	log := logger.WithContext(ctx, d.log)
	outcome := Outcome{Kind: event.Kind}

	handlers := d.handlersFor(event.Kind)
	if len(handlers) == 0 {
		outcome.Unknown = true
		log.Warn("unknown webhook event",
			append(eventFields(ctx, event), zap.Int64("order_id", event.Payload.ID))...,
		)
		d.metrics.ObserveDispatch(event.Kind.MetricLabel(), obsmetrics.DispatchUnknown)
		return outcome
	}

	errs := make([]error, len(handlers))
	var wg sync.WaitGroup
	for i, h := range handlers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = d.run(ctx, h, event)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			outcome.Failed++
			continue
		}
		outcome.Handled++
	}
	outcome.Err = errors.Join(errs...)

	fields := append(eventFields(ctx, event),
		zap.Int64("order_id", event.Payload.ID),
		zap.Int("handled", outcome.Handled),
		zap.Int("failed", outcome.Failed),
	)
	if outcome.Err != nil {
		span.RecordError(outcome.Err)
		span.SetStatus(codes.Error, "handler failed")
		log.Warn("webhook dispatch settled with failures", append(fields, zap.Error(outcome.Err))...)
		d.metrics.ObserveDispatch(event.Kind.MetricLabel(), obsmetrics.DispatchHandlerFailed)
	} else {
		log.Info("webhook dispatch settled", fields...)
		d.metrics.ObserveDispatch(event.Kind.MetricLabel(), obsmetrics.DispatchHandled)
	}
	return outcome
}

// eventFields names the event unless the context logger already does.
func eventFields(ctx context.Context, event domain.Event) []zap.Field {
	if kind, _ := obscontext.EventFromContext(ctx); kind != "" {
		return nil
	}
	return []zap.Field{zap.String("event", string(event.Kind))}
}

func (d *Dispatcher) run(ctx context.Context, h Handler, event domain.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler %s panicked: %v", h.Name(), r)
		}
	}()
	if err := h.Handle(ctx, event); err != nil {
		return fmt.Errorf("handler %s: %w", h.Name(), err)
	}
	return nil
}
