package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/sina-ehsani-aa/Kronos-Sina-personal/internal/config"
	"github.com/sina-ehsani-aa/Kronos-Sina-personal/pkg/contracts"
)

const (
	ServiceName = "kronos-tensorize"
	MeterName   = "kronos"

	// RunIDAttribute tags every exported span and metric with the run
	RunIDAttribute = attribute.Key("kronos.run_id")
)

// OTelConfig holds OpenTelemetry configuration
type OTelConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	RunID          string
	TraceExporter  string // "stdout", "none"
	MetricExporter string // "prometheus", "none"
	EnableMetrics  bool
	EnableTracing  bool
	SampleRatio    float64
}

// OTelProviders holds the installed providers. Fields stay nil for
// signals that are disabled.
type OTelProviders struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	PrometheusHTTP http.Handler
	Logger         *slog.Logger
}

type spanExporterFactory func() (sdktrace.SpanExporter, error)

var spanExporters = map[string]spanExporterFactory{
	"stdout": func() (sdktrace.SpanExporter, error) {
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	},
	"none": nil,
}

type metricReaderFactory func() (sdkmetric.Reader, http.Handler, error)

var metricReaders = map[string]metricReaderFactory{
	"prometheus": func() (sdkmetric.Reader, http.Handler, error) {
		exporter, err := prometheus.New()
		if err != nil {
			return nil, nil, err
		}
		return exporter, promhttp.Handler(), nil
	},
	"none": nil,
}

// DefaultOTelConfig returns metrics through Prometheus and no tracing
func DefaultOTelConfig() *OTelConfig {
	env := os.Getenv("KRONOS_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	return &OTelConfig{
		ServiceName:    ServiceName,
		ServiceVersion: contracts.Version,
		Environment:    env,
		TraceExporter:  "none",
		MetricExporter: "prometheus",
		EnableMetrics:  true,
		SampleRatio:    1.0,
	}
}

// OTelConfigFrom maps the telemetry section of the application config
func OTelConfigFrom(cfg config.TelemetryConfig) *OTelConfig {
	out := DefaultOTelConfig()
	out.EnableTracing = cfg.Tracing
	out.TraceExporter = cfg.TraceExporter
	out.EnableMetrics = cfg.Metrics
	if !cfg.Metrics {
		out.MetricExporter = "none"
	}
	return out
}

// InitializeOTel installs the global tracer and meter providers. The
// global API stays a no-op for every signal that is disabled.
func InitializeOTel(cfg *OTelConfig, logger *slog.Logger) (*OTelProviders, error) {
	if cfg == nil {
		cfg = DefaultOTelConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx := context.Background()
	providers := &OTelProviders{Logger: logger}
	res := pipelineResource(cfg)

	if cfg.EnableTracing {
		newExporter, ok := spanExporters[cfg.TraceExporter]
		if !ok {
			return nil, fmt.Errorf("unsupported trace exporter: %s", cfg.TraceExporter)
		}
		if newExporter != nil {
			exporter, err := newExporter()
			if err != nil {
				return nil, fmt.Errorf("create %s trace exporter: %w", cfg.TraceExporter, err)
			}
			tp := sdktrace.NewTracerProvider(
				sdktrace.WithBatcher(exporter),
				sdktrace.WithResource(res),
				sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRatio)),
			)
			providers.TracerProvider = tp
			providers.Tracer = tp.Tracer(MeterName, trace.WithInstrumentationVersion(cfg.ServiceVersion))
			otel.SetTracerProvider(tp)
		}
	}

	if cfg.EnableMetrics {
		newReader, ok := metricReaders[cfg.MetricExporter]
		if !ok {
			return nil, fmt.Errorf("unsupported metric exporter: %s", cfg.MetricExporter)
		}
		if newReader != nil {
			reader, handler, err := newReader()
			if err != nil {
				return nil, fmt.Errorf("create %s metric exporter: %w", cfg.MetricExporter, err)
			}
			mp := sdkmetric.NewMeterProvider(
				sdkmetric.WithResource(res),
				sdkmetric.WithReader(reader),
			)
			providers.MeterProvider = mp
			providers.Meter = mp.Meter(MeterName, metric.WithInstrumentationVersion(cfg.ServiceVersion))
			providers.PrometheusHTTP = handler
			otel.SetMeterProvider(mp)
		}
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.InfoContext(ctx, "telemetry initialized",
		slog.String("service", cfg.ServiceName),
		slog.String("environment", cfg.Environment),
		slog.String("trace_exporter", exporterName(providers.TracerProvider != nil, cfg.TraceExporter)),
		slog.String("metric_exporter", exporterName(providers.MeterProvider != nil, cfg.MetricExporter)))
	return providers, nil
}

func exporterName(active bool, name string) string {
	if !active {
		return "none"
	}
	return name
}

func pipelineResource(cfg *OTelConfig) *resource.Resource {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironmentName(cfg.Environment),
		attribute.String("tensor.format_version", contracts.TensorFormatVersion),
	}
	if cfg.RunID != "" {
		attrs = append(attrs, RunIDAttribute.String(cfg.RunID))
	}
	if host, err := os.Hostname(); err == nil {
		attrs = append(attrs, semconv.HostName(host))
	}
	return resource.NewWithAttributes(semconv.SchemaURL, attrs...)
}

// Shutdown flushes pending spans and metrics and stops the providers
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	var errs []error
	if p.TracerProvider != nil {
		if err := p.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}
	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}
	return errors.Join(errs...)
}

// TraceIDFromContext returns the trace id of the span in ctx, or ""
func TraceIDFromContext(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		return sc.TraceID().String()
	}
	return ""
}
