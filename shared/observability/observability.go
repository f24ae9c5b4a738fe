package observability

import (
	"context"
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

// SetupTracing initializes OpenTelemetry tracing with stdout exporter (for demo; replace with OTLP in prod)
func SetupTracing(serviceName string) func() {
	exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		log.Fatalf("failed to initialize stdouttrace exporter: %v", err)
	}
	res, _ := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		),
	)
	provider := trace.NewTracerProvider(
		trace.WithBatcher(exp),
		trace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	return func() { _ = provider.Shutdown(context.Background()) }
}

// SetupPrometheusMetrics initializes Prometheus metrics exporter and exposes /metrics endpoint
func SetupPrometheusMetrics() *sdkmetric.MeterProvider {
	exp, err := prometheus.New()
	if err != nil {
		log.Fatalf("failed to initialize prometheus exporter: %v", err)
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exp))
	otel.SetMeterProvider(mp)
	go func() {
		http.Handle("/metrics", promhttp.Handler())
		_ = http.ListenAndServe(":2112", nil)
	}()
	return mp
}

// ChatMetrics counts chat relay activity. All counters are safe for
// concurrent use; a nil *ChatMetrics is a no-op so tests can skip wiring it.
type ChatMetrics struct {
	turnsStarted   metric.Int64Counter
	turnsCompleted metric.Int64Counter
	turnsFailed    metric.Int64Counter
	chunksRelayed  metric.Int64Counter
}

// NewChatMetrics registers the chat relay counters on the global meter.
func NewChatMetrics() *ChatMetrics {
	meter := otel.Meter("chat-relay")

	turnsStarted, _ := meter.Int64Counter("chat_turns_started_total")
	turnsCompleted, _ := meter.Int64Counter("chat_turns_completed_total")
	turnsFailed, _ := meter.Int64Counter("chat_turns_failed_total")
	chunksRelayed, _ := meter.Int64Counter("chat_chunks_relayed_total")

	return &ChatMetrics{
		turnsStarted:   turnsStarted,
		turnsCompleted: turnsCompleted,
		turnsFailed:    turnsFailed,
		chunksRelayed:  chunksRelayed,
	}
}

func (m *ChatMetrics) TurnStarted(ctx context.Context) {
	if m == nil {
		return
	}
	m.turnsStarted.Add(ctx, 1)
}

func (m *ChatMetrics) TurnCompleted(ctx context.Context) {
	if m == nil {
		return
	}
	m.turnsCompleted.Add(ctx, 1)
}

func (m *ChatMetrics) TurnFailed(ctx context.Context) {
	if m == nil {
		return
	}
	m.turnsFailed.Add(ctx, 1)
}

func (m *ChatMetrics) ChunkRelayed(ctx context.Context) {
	if m == nil {
		return
	}
	m.chunksRelayed.Add(ctx, 1)
}
