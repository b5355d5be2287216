package server

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/orderrelay/internal/observability/context"
	"github.com/smallbiznis/orderrelay/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/orderrelay/internal/observability/metrics"
	"github.com/smallbiznis/orderrelay/internal/webhook/domain"
	"go.uber.org/zap"
)

const (
	signatureHeader = "signature"
	maxWebhookBody  = 1 << 20
)

// HandleGameBoostWebhook authenticates a delivery, acknowledges it and hands
// new events to the webhook service. Processing never delays the response.
func (s *Server) HandleGameBoostWebhook(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.WithContext(ctx, s.log)
	unknown := domain.Kind("").MetricLabel()

	defer func() {
		if r := recover(); r != nil {
			log.Error("webhook handler panicked", zap.Any("panic", r))
			s.reject(c, unknown, obsmetrics.OutcomeDecodeError, fmt.Errorf("%w: %v", ErrInternal, r))
		}
	}()

	if !s.verifier.Configured() {
		log.Error("webhook rejected, GAMEBOOST_WEBHOOK_SECRET is not set")
		s.reject(c, unknown, obsmetrics.OutcomeNotConfigured, domain.ErrNotConfigured)
		return
	}

	if userAgent := c.GetHeader("User-Agent"); userAgent != s.userAgent {
		log.Warn("invalid webhook user agent", zap.String("user_agent", userAgent))
		s.reject(c, unknown, obsmetrics.OutcomeInvalidClient, domain.ErrInvalidClient)
		return
	}

	provided := strings.TrimSpace(c.GetHeader(signatureHeader))
	if provided == "" {
		log.Warn("missing webhook signature")
		s.reject(c, unknown, obsmetrics.OutcomeNoSignature, domain.ErrMissingSignature)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		log.Error("read webhook body failed", zap.Error(err))
		s.reject(c, unknown, obsmetrics.OutcomeDecodeError, fmt.Errorf("%w: %v", ErrInternal, err))
		return
	}

	if err := s.verifier.VerifyRequest(body, provided); err != nil {
		s.reject(c, unknown, obsmetrics.OutcomeBadSignature, err)
		return
	}

	event, err := domain.Decode(body)
	if err != nil {
		log.Error("decode webhook failed", zap.Error(err))
		s.reject(c, unknown, obsmetrics.OutcomeDecodeError, err)
		return
	}

	c.Set(obscontext.GinEventKey, event.Kind.String())
	log.Info("webhook received", summaryFields(event)...)

	if s.svc.Seen(event) {
		log.Info("webhook already processed, skipping",
			zap.String("event", event.Kind.String()),
			zap.String("dedup_key", event.DedupKey()),
		)
		s.metrics.ObserveReceived(ctx, event.Kind.MetricLabel(), obsmetrics.OutcomeDuplicate)
		c.JSON(http.StatusOK, receivedResponse{Received: true})
		return
	}

	s.svc.ProcessAsync(ctx, event, s.svc.NewDeliveryID())
	s.metrics.ObserveReceived(ctx, event.Kind.MetricLabel(), obsmetrics.OutcomeAccepted)
	c.JSON(http.StatusOK, receivedResponse{Received: true})
}

func (s *Server) reject(c *gin.Context, eventType, outcome string, err error) {
	s.metrics.ObserveReceived(c.Request.Context(), eventType, outcome)
	AbortWithError(c, err)
}

func summaryFields(event domain.Event) []zap.Field {
	fields := []zap.Field{
		zap.String("event", event.Kind.String()),
		zap.Int64("payload_id", event.Payload.ID),
		zap.String("status", string(event.Payload.Status)),
		zap.String("price_eur", event.Payload.PriceEUR),
	}
	if cur := event.Currency; cur != nil {
		fields = append(fields,
			zap.String("game", cur.Game.Name),
			zap.Int64("quantity", cur.Quantity),
			zap.String("currency", cur.CurrencyUnit.Name),
		)
	}
	return fields
}
