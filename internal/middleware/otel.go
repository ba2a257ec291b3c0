package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/sina-ehsani-aa/Kronos-Sina-personal/internal/infrastructure"
)

// TracerName names the tracer of the status server
const TracerName = "kronos.http"

// unmatchedRoute labels requests no route matched
const unmatchedRoute = "unmatched"

// OTelMiddleware traces status server requests and records request
// counts, latencies and in-flight requests
type OTelMiddleware struct {
	tracer   trace.Tracer
	requests metric.Int64Counter
	latency  metric.Float64Histogram
	inFlight metric.Int64UpDownCounter
	logger   *slog.Logger
}

// NewOTelMiddleware creates the middleware on the global tracer and meter
// providers
func NewOTelMiddleware(logger *slog.Logger) (*OTelMiddleware, error) {
	if logger == nil {
		logger = slog.Default()
	}
	meter := otel.Meter(infrastructure.MeterName)
	m := &OTelMiddleware{tracer: otel.Tracer(TracerName), logger: logger}

	var err error
	if m.requests, err = meter.Int64Counter("kronos_http_requests_total",
		metric.WithDescription("Status server requests by route and status")); err != nil {
		return nil, fmt.Errorf("create request counter: %w", err)
	}
	if m.latency, err = meter.Float64Histogram("kronos_http_request_duration_seconds",
		metric.WithDescription("Status server request latency"),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("create latency histogram: %w", err)
	}
	if m.inFlight, err = meter.Int64UpDownCounter("kronos_http_active_requests",
		metric.WithDescription("Status server requests in flight")); err != nil {
		return nil, fmt.Errorf("create in-flight counter: %w", err)
	}
	return m, nil
}

func (m *OTelMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		attrs := []attribute.KeyValue{
			semconv.HTTPRequestMethodKey.String(r.Method),
			semconv.URLPath(r.URL.Path),
			semconv.UserAgentOriginal(r.UserAgent()),
			semconv.ClientAddress(r.RemoteAddr),
		}
		if runID := infrastructure.GetRunID(ctx); runID != "" {
			attrs = append(attrs, infrastructure.RunIDAttribute.String(runID))
		}
		ctx, span := m.tracer.Start(ctx, r.Method,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attrs...))
		defer span.End()

		m.inFlight.Add(ctx, 1)
		defer m.inFlight.Add(ctx, -1)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r.WithContext(ctx))
		elapsed := time.Since(start)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := routePattern(r)
		span.SetName(r.Method + " " + route)
		span.SetAttributes(
			semconv.HTTPRoute(route),
			semconv.HTTPResponseStatusCode(status),
			semconv.HTTPResponseBodySize(ww.BytesWritten()),
		)
		if status >= 400 {
			span.SetStatus(codes.Error, http.StatusText(status))
			m.logger.DebugContext(ctx, "request span marked as error",
				slog.String("route", route),
				slog.Int("status_code", status))
		}

		labels := metric.WithAttributes(
			attribute.String("method", r.Method),
			attribute.String("route", route),
			attribute.Int("status_code", status),
		)
		m.requests.Add(ctx, 1, labels)
		m.latency.Record(ctx, elapsed.Seconds(), labels)
	})
}

// routePattern returns the matched chi pattern, bounded to a fixed label
// for unmatched paths
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return unmatchedRoute
}
