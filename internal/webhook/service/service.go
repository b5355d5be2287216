package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	obscontext "github.com/smallbiznis/orderrelay/internal/observability/context"
	"github.com/smallbiznis/orderrelay/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/orderrelay/internal/observability/metrics"
	"github.com/smallbiznis/orderrelay/internal/webhook/dedup"
	"github.com/smallbiznis/orderrelay/internal/webhook/dispatch"
	"github.com/smallbiznis/orderrelay/internal/webhook/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Dispatcher is the part of dispatch.Dispatcher the service depends on.
type Dispatcher interface {
	Dispatch(ctx context.Context, event domain.Event) dispatch.Outcome
}

type Params struct {
	fx.In

	Cache      *dedup.Cache
	Dispatcher *dispatch.Dispatcher
	Node       *snowflake.Node
	Log        *zap.Logger
	Metrics    *obsmetrics.RelayMetrics `optional:"true"`
}

// Service accepts verified events and processes them in the background.
//
// The dedup check in Seen happens before ProcessAsync is called and the mark
// happens only after processing succeeds, so two deliveries of the same event
// that arrive before the first finishes can both be processed.
type Service struct {
	cache      *dedup.Cache
	dispatcher Dispatcher
	node       *snowflake.Node
	log        *zap.Logger
	metrics    *obsmetrics.RelayMetrics

	inflight sync.WaitGroup
}

func NewService(p Params) *Service {
	return New(p.Cache, p.Dispatcher, p.Node, p.Log, p.Metrics)
}

func New(cache *dedup.Cache, dispatcher Dispatcher, node *snowflake.Node, log *zap.Logger, metrics *obsmetrics.RelayMetrics) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		cache:      cache,
		dispatcher: dispatcher,
		node:       node,
		log:        log.Named("webhook.service"),
		metrics:    metrics,
	}
}

// NewDeliveryID returns an id for one accepted delivery.
func (s *Service) NewDeliveryID() string {
	if s.node == nil {
		return ""
	}
	return s.node.Generate().String()
}

// Seen reports whether the event was already processed within the TTL.
func (s *Service) Seen(event domain.Event) bool {
	return s.cache.IsProcessed(event.DedupKey())
}

// ProcessAsync starts processing in its own goroutine and returns at once.
// The task keeps the request's values but not its cancellation.
func (s *Service) ProcessAsync(ctx context.Context, event domain.Event, deliveryID string) {
	ctx = context.WithoutCancel(ctx)
	ctx = obscontext.WithDeliveryID(ctx, deliveryID)
	ctx = obscontext.WithEvent(ctx, string(event.Kind), event.DedupKey())

	s.inflight.Add(1)
	go s.process(ctx, event)
}

func (s *Service) process(ctx context.Context, event domain.Event) {
	defer s.inflight.Done()
	s.metrics.TaskStarted()
	defer s.metrics.TaskFinished()

	start := time.Now()
	log := logger.WithContext(ctx, s.log)

	if err := s.dispatch(ctx, event); err != nil {
		s.recordFailure(log, event, err)
		s.metrics.ObserveProcessing(ctx, event.Kind.MetricLabel(), obsmetrics.ProcessingFailed, time.Since(start))
		return
	}

	s.cache.MarkProcessed(event.DedupKey())
	s.metrics.ObserveProcessing(ctx, event.Kind.MetricLabel(), obsmetrics.ProcessingSucceeded, time.Since(start))
	log.Info("webhook processed successfully",
		zap.Duration("duration", time.Since(start)),
	)
}

func (s *Service) dispatch(ctx context.Context, event domain.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("processing panicked: %v", r)
		}
	}()

	outcome := s.dispatcher.Dispatch(ctx, event)
	if !outcome.OK() {
		return outcome.Err
	}
	return nil
}

// recordFailure leaves the event unmarked so a redelivery is processed again.
func (s *Service) recordFailure(log *zap.Logger, event domain.Event, err error) {
	log.Error("webhook processing failed",
		zap.Int64("payload_id", event.Payload.ID),
		zap.Error(err),
	)
}

// Drain waits for in-flight tasks or until ctx is done.
func (s *Service) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
