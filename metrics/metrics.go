package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	api "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Metrics records capture and post-processing activity. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	meter          api.Meter
	clipDuration   api.Float64Histogram
	clipErrors     api.Int64Counter
	stageDuration  api.Float64Histogram
	activeSessions api.Int64UpDownCounter
}

// SetupMetrics bootstraps the OpenTelemetry pipeline with a Prometheus
// exporter registered on the default registry.
func SetupMetrics() (*Metrics, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, err
	}
	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	meter := provider.Meter("github.com/mudler/voxlog")

	clipDuration, err := meter.Float64Histogram("voxlog_clip_duration_seconds", api.WithDescription("duration of finalized speaker clips"))
	if err != nil {
		return nil, err
	}
	clipErrors, err := meter.Int64Counter("voxlog_clip_errors", api.WithDescription("clips that ended with a write error"))
	if err != nil {
		return nil, err
	}
	stageDuration, err := meter.Float64Histogram("voxlog_stage_duration_seconds", api.WithDescription("post-processing stage durations"))
	if err != nil {
		return nil, err
	}
	activeSessions, err := meter.Int64UpDownCounter("voxlog_active_sessions", api.WithDescription("live capture sessions"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		meter:          meter,
		clipDuration:   clipDuration,
		clipErrors:     clipErrors,
		stageDuration:  stageDuration,
		activeSessions: activeSessions,
	}, nil
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

func (m *Metrics) ObserveClip(speaker string, d time.Duration, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.clipErrors.Add(context.Background(), 1)
		return
	}
	m.clipDuration.Record(context.Background(), d.Seconds(), api.WithAttributes(attribute.String("speaker", speaker)))
}

func (m *Metrics) ObserveStage(stage string, d time.Duration, err error) {
	if m == nil {
		return
	}
	opts := api.WithAttributes(
		attribute.String("stage", stage),
		attribute.Bool("success", err == nil),
	)
	m.stageDuration.Record(context.Background(), d.Seconds(), opts)
}

func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.activeSessions.Add(context.Background(), 1)
}

func (m *Metrics) SessionEnded() {
	if m == nil {
		return
	}
	m.activeSessions.Add(context.Background(), -1)
}
