package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/orderrelay/internal/clock"
	"github.com/smallbiznis/orderrelay/internal/config"
	"github.com/smallbiznis/orderrelay/internal/observability"
	obsmetrics "github.com/smallbiznis/orderrelay/internal/observability/metrics"
	"github.com/smallbiznis/orderrelay/internal/providers/whatsapp"
	"github.com/smallbiznis/orderrelay/internal/ratelimit"
	"github.com/smallbiznis/orderrelay/internal/webhook/dedup"
	"github.com/smallbiznis/orderrelay/internal/webhook/dispatch"
	"github.com/smallbiznis/orderrelay/internal/webhook/domain"
	"github.com/smallbiznis/orderrelay/internal/webhook/service"
	"github.com/smallbiznis/orderrelay/internal/webhook/signature"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const testSecret = "test-webhook-secret"

type recordingProvider struct {
	mu       sync.Mutex
	messages []string
	result   bool
}

func (p *recordingProvider) SendMessage(ctx context.Context, message string, to string) bool {
	return p.record(message)
}

func (p *recordingProvider) SendWebhookNotification(ctx context.Context, event domain.Event) bool {
	return p.record(whatsapp.Format(event))
}

func (p *recordingProvider) SendStatusUpdate(ctx context.Context, orderID int64, oldStatus string, newStatus string) bool {
	return p.record(whatsapp.FormatStatusUpdate(orderID, oldStatus, newStatus, time.Now()))
}

func (p *recordingProvider) SendCustomMessage(ctx context.Context, message string, to string) bool {
	return p.record(message)
}

func (p *recordingProvider) record(message string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, message)
	return p.result
}

func (p *recordingProvider) sent() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.messages...)
}

type fakeLimiter struct {
	result *ratelimit.RateLimitResult
	err    error
	calls  int
}

func (f *fakeLimiter) Allow(ctx context.Context, clientIP string) (*ratelimit.RateLimitResult, error) {
	f.calls++
	return f.result, f.err
}

type harness struct {
	engine   *gin.Engine
	svc      *service.Service
	provider *recordingProvider
	logs     *observer.ObservedLogs
}

func newHarness(t *testing.T, secret string, limiter ratelimit.Limiter) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	core, logs := observer.New(zapcore.InfoLevel)
	log := zap.New(core)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	metrics := obsmetrics.NewRelayMetrics(prometheus.NewRegistry(), obsmetrics.Config{ServiceName: "orderrelay-test"}, nil)
	provider := &recordingProvider{result: true}
	dispatcher := dispatch.New(log, metrics)
	dispatch.RegisterDefaults(dispatcher, provider, log)
	cache := dedup.New(dedup.Params{
		Clock:   clock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
		Log:     log,
		Metrics: metrics,
	})
	svc := service.New(cache, dispatcher, node, log, metrics)

	engine := NewEngine(observability.Config{}, nil)
	cfg := config.Config{Webhook: config.WebhookConfig{Secret: secret, UserAgent: config.DefaultUserAgent}}
	s := New(engine, cfg, signature.NewVerifier(secret, log), svc, limiter, log, metrics)
	s.RegisterWebhookRoutes()

	return &harness{engine: engine, svc: svc, provider: provider, logs: logs}
}

func (h *harness) post(t *testing.T, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, webhookPath, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.engine.ServeHTTP(rec, req)
	return rec
}

func (h *harness) postSigned(t *testing.T, body []byte) *httptest.ResponseRecorder {
	return h.post(t, body, map[string]string{
		"User-Agent": config.DefaultUserAgent,
		"signature":  signature.Sign(body, testSecret),
	})
}

func (h *harness) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.svc.Drain(ctx))
}

func orderBody(t *testing.T, event string, id int64) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"event": event,
		"payload": map[string]any{
			"id":         id,
			"status":     "pending",
			"price_eur":  "9.99",
			"price_usd":  "10.99",
			"created_at": 1767225600,
			"updated_at": 1767225600,
		},
	})
	require.NoError(t, err)
	return body
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestWebhookAcceptedSendsOneNotification(t *testing.T) {
	h := newHarness(t, testSecret, nil)

	rec := h.postSigned(t, orderBody(t, "item.order.purchased", 1001))
	h.drain(t)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"received": true}, decodeBody(t, rec))

	sent := h.provider.sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0], "Order ID: *#1001*")
}

func TestWebhookDuplicateIsAcknowledgedWithoutNotifying(t *testing.T) {
	h := newHarness(t, testSecret, nil)
	body := orderBody(t, "item.order.purchased", 1001)

	first := h.postSigned(t, body)
	h.drain(t)
	second := h.postSigned(t, body)
	h.drain(t)

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, map[string]any{"received": true}, decodeBody(t, second))
	assert.Len(t, h.provider.sent(), 1)
	assert.Equal(t, 1, h.logs.FilterMessage("webhook already processed, skipping").Len())
}

func TestWebhookFailedNotificationIsRetriedOnRedelivery(t *testing.T) {
	h := newHarness(t, testSecret, nil)
	h.provider.result = false
	body := orderBody(t, "account.order.purchased", 2002)

	h.postSigned(t, body)
	h.drain(t)
	rec := h.postSigned(t, body)
	h.drain(t)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, h.provider.sent(), 2)
	assert.Equal(t, 2, h.logs.FilterMessage("webhook processing failed").Len())
}

func TestWebhookInvalidSignature(t *testing.T) {
	h := newHarness(t, testSecret, nil)
	body := orderBody(t, "item.order.purchased", 1001)

	rec := h.post(t, body, map[string]string{
		"User-Agent": config.DefaultUserAgent,
		"signature":  strings.Repeat("ab", 32),
	})
	h.drain(t)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, map[string]any{"error": "Invalid signature"}, decodeBody(t, rec))
	assert.Empty(t, h.provider.sent())
}

func TestWebhookRejectsWrongUserAgent(t *testing.T) {
	body := orderBody(t, "item.order.purchased", 1001)
	cases := map[string]map[string]string{
		"missing": {"signature": signature.Sign(body, testSecret)},
		"wrong": {
			"User-Agent": "curl/8.0",
			"signature":  signature.Sign(body, testSecret),
		},
	}
	for name, headers := range cases {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, testSecret, nil)
			rec := h.post(t, body, headers)
			h.drain(t)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, map[string]any{"error": "Invalid User-Agent"}, decodeBody(t, rec))
			assert.Empty(t, h.provider.sent())
			assert.Equal(t, 1, h.logs.FilterMessage("invalid webhook user agent").Len())
		})
	}
}

func TestWebhookUnknownEventWarnsWithoutNotifying(t *testing.T) {
	h := newHarness(t, testSecret, nil)

	rec := h.postSigned(t, orderBody(t, "subscription.renewed", 3003))
	h.drain(t)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"received": true}, decodeBody(t, rec))
	assert.Empty(t, h.provider.sent())

	warnings := h.logs.FilterMessage("unknown webhook event").FilterLevelExact(zapcore.WarnLevel)
	assert.Equal(t, 1, warnings.Len())
}

func TestWebhookMissingSignature(t *testing.T) {
	h := newHarness(t, testSecret, nil)

	rec := h.post(t, orderBody(t, "item.order.purchased", 1001), map[string]string{
		"User-Agent": config.DefaultUserAgent,
	})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, map[string]any{"error": "Missing signature"}, decodeBody(t, rec))
}

func TestWebhookNotConfigured(t *testing.T) {
	h := newHarness(t, "", nil)

	rec := h.postSigned(t, orderBody(t, "item.order.purchased", 1001))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, map[string]any{"error": "Webhook not configured"}, decodeBody(t, rec))
	assert.Equal(t, 1, h.logs.FilterMessage("GAMEBOOST_WEBHOOK_SECRET is not set, webhook deliveries will be rejected").Len())
}

func TestWebhookDecodeFailureIsSoftAcknowledged(t *testing.T) {
	cases := map[string][]byte{
		"malformed json": []byte(`{"event":`),
		"missing event":  []byte(`{"payload":{"id":1}}`),
		"missing id":     []byte(`{"event":"item.order.purchased","payload":{"status":"pending"}}`),
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, testSecret, nil)

			rec := h.postSigned(t, body)
			h.drain(t)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, map[string]any{"received": true, "error": "Internal error"}, decodeBody(t, rec))
			assert.Empty(t, h.provider.sent())
		})
	}
}

func TestWebhookOtherMethodsNotAllowed(t *testing.T) {
	h := newHarness(t, testSecret, nil)

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		req := httptest.NewRequest(method, webhookPath, nil)
		rec := httptest.NewRecorder()
		h.engine.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, method)
		assert.Equal(t, map[string]any{"error": "Method not allowed"}, decodeBody(t, rec), method)
	}
}

func TestHealth(t *testing.T) {
	h := newHarness(t, testSecret, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"status": "ok"}, decodeBody(t, rec))
}

func TestWebhookRateLimited(t *testing.T) {
	limiter := &fakeLimiter{result: &ratelimit.RateLimitResult{
		Allowed:    false,
		Limit:      40,
		RetryAfter: 1500 * time.Millisecond,
	}}
	h := newHarness(t, testSecret, limiter)

	rec := h.postSigned(t, orderBody(t, "item.order.purchased", 1001))
	h.drain(t)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	assert.Equal(t, "40", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, map[string]any{"error": "Too many requests"}, decodeBody(t, rec))
	assert.Empty(t, h.provider.sent())
	assert.Equal(t, 1, limiter.calls)
}

func TestWebhookRateLimiterErrorFailsOpen(t *testing.T) {
	limiter := &fakeLimiter{err: errors.New("redis down")}
	h := newHarness(t, testSecret, limiter)

	rec := h.postSigned(t, orderBody(t, "item.order.purchased", 1001))
	h.drain(t)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, h.provider.sent(), 1)
	assert.Equal(t, 1, h.logs.FilterMessage("webhook rate limit check failed").Len())
}

func TestMapError(t *testing.T) {
	status, payload := mapError(domain.ErrInvalidPayload)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, receivedResponse{Received: true, Error: "Internal error"}, payload)

	status, _ = mapError(domain.ErrInvalidSignature)
	assert.Equal(t, http.StatusUnauthorized, status)

	kind, code := classifyErrorForLog(domain.ErrMissingSignature)
	assert.Equal(t, "authentication", kind)
	assert.Equal(t, "missing_signature", code)
}
