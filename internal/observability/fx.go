package observability

import (
	"github.com/Kronixion/matval/internal/config"
	"github.com/Kronixion/matval/internal/observability/logger"
	"github.com/Kronixion/matval/internal/observability/metrics"
	"github.com/Kronixion/matval/internal/observability/tracing"
	"github.com/prometheus/client_golang/prometheus"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

// Module wires logging, tracing and metrics for a matval worker from config.Config.
var Module = fx.Module("observability",
	fx.Provide(
		loggerConfig,
		logger.New,
		tracingConfig,
		tracing.NewProvider,
		metricsConfig,
		metrics.NewProvider,
		metrics.New,
		ingestMetrics,
	),
	fx.Invoke(func(*sdktrace.TracerProvider) {}),
)

func serviceName(cfg config.Config) string {
	if cfg.AppName == "" {
		return "matval"
	}
	return cfg.AppName
}

func loggerConfig(cfg config.Config) logger.Config {
	return logger.Config{
		ServiceName:         serviceName(cfg),
		Environment:         cfg.Environment,
		Version:             cfg.AppVersion,
		Level:               cfg.Telemetry.LogLevel,
		Format:              cfg.Telemetry.LogFormat,
		IncludeCaller:       true,
		IncludeStackOnError: cfg.DebugLogging(),
	}
}

func tracingConfig(cfg config.Config) tracing.Config {
	return tracing.Config{
		Enabled:          cfg.Telemetry.OTLPEnabled,
		ServiceName:      serviceName(cfg),
		ServiceVersion:   cfg.AppVersion,
		Environment:      cfg.Environment,
		ExporterEndpoint: cfg.Telemetry.OTLPEndpoint,
		ExporterProtocol: cfg.Telemetry.OTLPProtocol,
		SamplingRatio:    cfg.Telemetry.SampleRatio,
	}
}

func metricsConfig(cfg config.Config) metrics.Config {
	return metrics.Config{
		Enabled:          cfg.Telemetry.OTLPEnabled,
		ExporterEndpoint: cfg.Telemetry.OTLPEndpoint,
		ExporterProtocol: cfg.Telemetry.OTLPProtocol,
		ServiceName:      serviceName(cfg),
		Environment:      cfg.Environment,
	}
}

func ingestMetrics(cfg metrics.Config) (*metrics.IngestMetrics, error) {
	return metrics.NewIngestMetrics(prometheus.DefaultRegisterer, cfg)
}
