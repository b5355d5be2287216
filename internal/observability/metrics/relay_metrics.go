package metrics

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Intake outcomes for webhook deliveries.
const (
	OutcomeAccepted       = "accepted"
	OutcomeDuplicate      = "duplicate"
	OutcomeNotConfigured  = "not_configured"
	OutcomeInvalidClient  = "invalid_client"
	OutcomeNoSignature    = "missing_signature"
	OutcomeBadSignature   = "invalid_signature"
	OutcomeDecodeError    = "decode_error"
	OutcomeRateLimited    = "rate_limited"
	ProcessingSucceeded   = "processed"
	ProcessingFailed      = "failed"
	NotificationSent      = "sent"
	NotificationFailed    = "failed"
	NotificationSkipped   = "skipped"
	DispatchHandled       = "handled"
	DispatchHandlerFailed = "handler_failed"
	DispatchUnknown       = "unknown"
)

// RelayMetrics exposes Prometheus counters for the webhook relay pipeline.
type RelayMetrics struct {
	received      *prometheus.CounterVec
	dispatch      *prometheus.CounterVec
	processing    *prometheus.HistogramVec
	notifications *prometheus.CounterVec
	dedupEntries  prometheus.Gauge
	dedupPruned   prometheus.Counter
	inflight      prometheus.Gauge

	mirror *Metrics
}

// NewRelayMetrics builds the relay collectors and registers them on reg.
// Collectors already registered on reg are reused. When mirror is set the
// intake, processing and notification series are also exported over OTLP.
func NewRelayMetrics(reg prometheus.Registerer, cfg Config, mirror *Metrics) *RelayMetrics {
	labels := constLabels(cfg)

	m := &RelayMetrics{
		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "orderrelay_webhook_requests_total",
			Help:        "Inbound webhook deliveries by event type and intake outcome.",
			ConstLabels: labels,
		}, []string{"event_type", "outcome"}),
		dispatch: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "orderrelay_webhook_dispatch_total",
			Help:        "Dispatcher results by event type.",
			ConstLabels: labels,
		}, []string{"event_type", "outcome"}),
		processing: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "orderrelay_webhook_processing_duration_seconds",
			Help:        "Background processing time per event.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: labels,
		}, []string{"event_type", "status"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "orderrelay_notifications_total",
			Help:        "Outbound notification attempts by provider and status.",
			ConstLabels: labels,
		}, []string{"provider", "status"}),
		dedupEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "orderrelay_dedup_entries",
			Help:        "Entries currently held by the dedup cache.",
			ConstLabels: labels,
		}),
		dedupPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "orderrelay_dedup_pruned_total",
			Help:        "Expired dedup entries removed.",
			ConstLabels: labels,
		}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "orderrelay_webhook_inflight",
			Help:        "Detached processing tasks currently running.",
			ConstLabels: labels,
		}),
		mirror: mirror,
	}

	if reg != nil {
		m.received = registerCollector(reg, m.received)
		m.dispatch = registerCollector(reg, m.dispatch)
		m.processing = registerCollector(reg, m.processing)
		m.notifications = registerCollector(reg, m.notifications)
		m.dedupEntries = registerCollector(reg, m.dedupEntries)
		m.dedupPruned = registerCollector(reg, m.dedupPruned)
		m.inflight = registerCollector(reg, m.inflight)
	}
	return m
}

func (m *RelayMetrics) ObserveReceived(ctx context.Context, eventType, outcome string) {
	if m == nil {
		return
	}
	m.received.WithLabelValues(sanitizeLabel(eventType), sanitizeLabel(outcome)).Inc()
	m.mirror.RecordWebhookEvent(ctx, sanitizeLabel(eventType), outcome)
}

func (m *RelayMetrics) ObserveDispatch(eventType, outcome string) {
	if m == nil {
		return
	}
	m.dispatch.WithLabelValues(sanitizeLabel(eventType), sanitizeLabel(outcome)).Inc()
}

func (m *RelayMetrics) ObserveProcessing(ctx context.Context, eventType, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.processing.WithLabelValues(sanitizeLabel(eventType), sanitizeLabel(status)).Observe(duration.Seconds())
	m.mirror.RecordProcessing(ctx, sanitizeLabel(eventType), status, duration)
}

func (m *RelayMetrics) ObserveNotification(ctx context.Context, provider, status string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(sanitizeLabel(provider), sanitizeLabel(status)).Inc()
	m.mirror.RecordNotification(ctx, sanitizeLabel(provider), status)
}

func (m *RelayMetrics) SetDedupEntries(n int) {
	if m == nil {
		return
	}
	m.dedupEntries.Set(float64(n))
}

func (m *RelayMetrics) AddDedupPruned(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.dedupPruned.Add(float64(n))
}

func (m *RelayMetrics) TaskStarted() {
	if m == nil {
		return
	}
	m.inflight.Inc()
}

func (m *RelayMetrics) TaskFinished() {
	if m == nil {
		return
	}
	m.inflight.Dec()
}

func constLabels(cfg Config) prometheus.Labels {
	service := strings.TrimSpace(cfg.ServiceName)
	if service == "" {
		service = "orderrelay"
	}
	env := strings.TrimSpace(cfg.Environment)
	if env == "" {
		env = "unknown"
	}
	return prometheus.Labels{"service": service, "env": env}
}

func registerCollector[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing
			}
		}
	}
	return c
}

func sanitizeLabel(val string) string {
	val = strings.TrimSpace(val)
	if val == "" {
		return "unknown"
	}
	return val
}
