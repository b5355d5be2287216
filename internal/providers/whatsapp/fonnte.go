package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/smallbiznis/orderrelay/internal/clock"
	"github.com/smallbiznis/orderrelay/internal/config"
	"github.com/smallbiznis/orderrelay/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/orderrelay/internal/observability/metrics"
	obstracing "github.com/smallbiznis/orderrelay/internal/observability/tracing"
	"github.com/smallbiznis/orderrelay/internal/webhook/domain"
	"go.uber.org/zap"
)

const (
	providerName     = "fonnte"
	defaultTimeout   = 10 * time.Second
	maxResponseBytes = 64 << 10
	defaultAPIURL    = config.DefaultFonnteURL
	defaultCountry   = config.DefaultCountryCode
)

var (
	ErrNotConfigured = errors.New("fonnte token not configured")
	ErrNoRecipient   = errors.New("no recipient specified")
)

// Config holds the Fonnte gateway settings.
type Config struct {
	APIURL           string
	Token            string
	DefaultRecipient string
	CountryCode      string
	Timeout          time.Duration
}

type Options struct {
	HTTPClient *http.Client
	Routing    *config.RoutingHolder
	Clock      clock.Clock
	Metrics    *obsmetrics.RelayMetrics
	Log        *zap.Logger
}

// FonnteProvider sends messages through the Fonnte HTTP API.
type FonnteProvider struct {
	cfg     Config
	client  *http.Client
	routing *config.RoutingHolder
	clock   clock.Clock
	metrics *obsmetrics.RelayMetrics
	log     *zap.Logger
}

type fonnteResponse struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Detail  string          `json:"detail"`
	ID      json.RawMessage `json:"id"`
}

func NewFonnte(cfg Config, opts Options) *FonnteProvider {
	cfg.APIURL = strings.TrimSpace(cfg.APIURL)
	if cfg.APIURL == "" {
		cfg.APIURL = defaultAPIURL
	}
	cfg.Token = strings.TrimSpace(cfg.Token)
	cfg.DefaultRecipient = strings.TrimSpace(cfg.DefaultRecipient)
	cfg.CountryCode = strings.TrimSpace(cfg.CountryCode)
	if cfg.CountryCode == "" {
		cfg.CountryCode = defaultCountry
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	client := opts.HTTPClient
	if client == nil {
		client = obstracing.WrapHTTPClient(&http.Client{})
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("providers.whatsapp")

	if cfg.Token == "" {
		log.Warn("fonnte API not configured, notifications will be skipped")
	}

	return &FonnteProvider{
		cfg:     cfg,
		client:  client,
		routing: opts.Routing,
		clock:   clk,
		metrics: opts.Metrics,
		log:     log,
	}
}

func (p *FonnteProvider) SendMessage(ctx context.Context, message string, to string) bool {
	log := logger.WithContext(ctx, p.log)

	id, err := p.send(ctx, message, to)
	switch {
	case errors.Is(err, ErrNotConfigured):
		log.Info("fonnte API not configured, skipping notification")
		p.metrics.ObserveNotification(ctx, providerName, obsmetrics.NotificationSkipped)
		return false
	case err != nil:
		log.Error("failed to send whatsapp message", zap.Error(err))
		p.metrics.ObserveNotification(ctx, providerName, obsmetrics.NotificationFailed)
		return false
	}

	log.Info("whatsapp message sent", zap.String("provider_message_id", id))
	p.metrics.ObserveNotification(ctx, providerName, obsmetrics.NotificationSent)
	return true
}

// SendWebhookNotification formats the event and sends it to the routed
// recipient. A muted kind counts as delivered.
func (p *FonnteProvider) SendWebhookNotification(ctx context.Context, event domain.Event) bool {
	rule, ok := p.routing.Get().Lookup(string(event.Kind))
	if ok && rule.Muted {
		logger.WithContext(ctx, p.log).Debug("notification muted by routing rule",
			zap.String("event", string(event.Kind)),
		)
		p.metrics.ObserveNotification(ctx, providerName, obsmetrics.NotificationSkipped)
		return true
	}
	return p.SendMessage(ctx, Format(event), strings.TrimSpace(rule.Recipient))
}

func (p *FonnteProvider) SendStatusUpdate(ctx context.Context, orderID int64, oldStatus string, newStatus string) bool {
	return p.SendMessage(ctx, FormatStatusUpdate(orderID, oldStatus, newStatus, p.clock.Now()), "")
}

func (p *FonnteProvider) SendCustomMessage(ctx context.Context, message string, to string) bool {
	return p.SendMessage(ctx, message, to)
}

func (p *FonnteProvider) send(ctx context.Context, message, to string) (string, error) {
	if p.cfg.Token == "" {
		return "", ErrNotConfigured
	}
	recipient := strings.TrimSpace(to)
	if recipient == "" {
		recipient = p.cfg.DefaultRecipient
	}
	if recipient == "" {
		return "", ErrNoRecipient
	}

	form := url.Values{}
	form.Set("target", recipient)
	form.Set("message", message)
	form.Set("countryCode", p.cfg.CountryCode)
	form.Set("typing", "true")
	form.Set("delay", "0")

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.APIURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", p.cfg.Token)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fonnte request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return "", fmt.Errorf("fonnte returned %s", resp.Status)
	}

	var out fonnteResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		return "", fmt.Errorf("decode fonnte response: %w", err)
	}
	if !out.Status {
		reason := out.Detail
		if reason == "" {
			reason = out.Message
		}
		return "", fmt.Errorf("fonnte rejected message: %s", reason)
	}

	return strings.Trim(string(out.ID), `"`), nil
}
