package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/orderrelay/internal/observability/logger"
	"github.com/smallbiznis/orderrelay/internal/observability/metrics"
	"github.com/smallbiznis/orderrelay/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		provideLoggerConfig,
		logger.New,
		provideTracingConfig,
		tracing.NewProvider,
		provideMetricsConfig,
		metrics.NewProvider,
		metrics.New,
		provideRegisterer,
		metrics.NewRelayMetrics,
		metrics.NewHTTPMetrics,
	),
	fx.Invoke(ensureTracingProvider),
)

func ensureTracingProvider(_ *sdktrace.TracerProvider) {}

func provideRegisterer() prometheus.Registerer {
	return prometheus.DefaultRegisterer
}

func provideLoggerConfig(cfg Config) logger.Config {
	return logger.Config{
		ServiceName:        cfg.ServiceName,
		Environment:        cfg.Environment,
		Version:            cfg.Version,
		Level:              cfg.LogLevel,
		Format:             cfg.LogFormat,
		Debug:              cfg.Debug(),
		SamplingInitial:    cfg.LogSamplingInitial,
		SamplingThereafter: cfg.LogSamplingThereafter,
		SamplingWindow:     time.Second,
	}
}

func provideTracingConfig(cfg Config) tracing.Config {
	return tracing.Config{
		Enabled:          cfg.OtelEnabled,
		ServiceName:      cfg.ServiceName,
		ServiceVersion:   cfg.Version,
		Environment:      cfg.Environment,
		ExporterEndpoint: cfg.OtelExporterEndpoint,
		ExporterProtocol: cfg.OtelExporterProtocol,
		SamplingRatio:    cfg.OtelSamplingRatio,
	}
}

func provideMetricsConfig(cfg Config) metrics.Config {
	return metrics.Config{
		Enabled:          cfg.OtelEnabled,
		ExporterEndpoint: cfg.OtelExporterEndpoint,
		ExporterProtocol: cfg.OtelExporterProtocol,
		ServiceName:      cfg.ServiceName,
		Environment:      cfg.Environment,
		ExportInterval:   cfg.MetricsExportInterval,
	}
}
