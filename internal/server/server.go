package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/orderrelay/internal/config"
	"github.com/smallbiznis/orderrelay/internal/observability"
	"github.com/smallbiznis/orderrelay/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/orderrelay/internal/observability/metrics"
	obstracing "github.com/smallbiznis/orderrelay/internal/observability/tracing"
	"github.com/smallbiznis/orderrelay/internal/ratelimit"
	"github.com/smallbiznis/orderrelay/internal/webhook/domain"
	"github.com/smallbiznis/orderrelay/internal/webhook/service"
	"github.com/smallbiznis/orderrelay/internal/webhook/signature"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const webhookPath = "/webhooks/gameboost"

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Provide(NewServer),
	fx.Invoke(RegisterRoutes),
	fx.Invoke(run),
)

// WebhookService accepts verified events.
type WebhookService interface {
	Seen(event domain.Event) bool
	NewDeliveryID() string
	ProcessAsync(ctx context.Context, event domain.Event, deliveryID string)
}

type ServerParams struct {
	fx.In

	Gin      *gin.Engine
	Cfg      config.Config
	Verifier *signature.Verifier
	Service  *service.Service
	Log      *zap.Logger
	Metrics  *obsmetrics.RelayMetrics  `optional:"true"`
	Limiter  *ratelimit.WebhookLimiter `optional:"true"`
}

type Server struct {
	engine    *gin.Engine
	cfg       config.Config
	verifier  *signature.Verifier
	svc       WebhookService
	limiter   ratelimit.Limiter
	log       *zap.Logger
	metrics   *obsmetrics.RelayMetrics
	userAgent string
}

func NewServer(p ServerParams) *Server {
	var limiter ratelimit.Limiter
	if p.Limiter.Enabled() {
		limiter = p.Limiter
	}
	return New(p.Gin, p.Cfg, p.Verifier, p.Service, limiter, p.Log, p.Metrics)
}

// New builds a Server. limiter may be nil to disable inbound throttling.
func New(engine *gin.Engine, cfg config.Config, verifier *signature.Verifier, svc WebhookService, limiter ratelimit.Limiter, log *zap.Logger, metrics *obsmetrics.RelayMetrics) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	userAgent := cfg.Webhook.UserAgent
	if userAgent == "" {
		userAgent = config.DefaultUserAgent
	}
	s := &Server{
		engine:    engine,
		cfg:       cfg,
		verifier:  verifier,
		svc:       svc,
		limiter:   limiter,
		log:       log.Named("http.webhook"),
		metrics:   metrics,
		userAgent: userAgent,
	}
	if !verifier.Configured() {
		s.log.Error("GAMEBOOST_WEBHOOK_SECRET is not set, webhook deliveries will be rejected")
	}
	return s
}

func (s *Server) RegisterWebhookRoutes() {
	r := s.engine
	r.POST(webhookPath, s.WebhookRateLimit(), s.HandleGameBoostWebhook)
	r.GET(webhookPath, methodNotAllowed)
	r.PUT(webhookPath, methodNotAllowed)
	r.DELETE(webhookPath, methodNotAllowed)
}

func RegisterRoutes(s *Server) {
	s.RegisterWebhookRoutes()
}

func methodNotAllowed(c *gin.Context) {
	AbortWithError(c, ErrMethodNotAllowed)
}

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.GinMiddleware(logger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware(obstracing.MiddlewareConfig{
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(httpMetrics.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
