// Package observe provides application-wide observability primitives for
// voxcode: OpenTelemetry metrics, tracing, and the structured-logging glue
// between them.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all voxcode metrics.
const meterName = "github.com/voxcodehq/voxcode"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// ConvertDuration tracks ffmpeg audio conversion latency.
	ConvertDuration metric.Float64Histogram

	// TranscribeDuration tracks speech-to-text transcription latency.
	TranscribeDuration metric.Float64Histogram

	// AgentDuration tracks agent CLI execution latency.
	AgentDuration metric.Float64Histogram

	// GitDuration tracks git subprocess latency.
	GitDuration metric.Float64Histogram

	// --- Counters ---

	// UpdatesHandled counts processed Telegram updates. Use with attributes:
	//   attribute.String("kind", ...), attribute.String("status", ...)
	UpdatesHandled metric.Int64Counter

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts provider errors by provider name.
	ProviderErrors metric.Int64Counter

	// Approvals counts approval decisions. Use with attribute:
	//   attribute.String("decision", ...)
	Approvals metric.Int64Counter

	// AgentCostUSD accumulates the reported agent spend in US dollars.
	AgentCostUSD metric.Float64Counter

	// --- Gauges ---

	// ActiveExecutions tracks agent subprocesses currently running.
	ActiveExecutions metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries in seconds. The pipeline
// spans quick git calls up to hour-long agent runs, so the tail is long.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300, 1800,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.ConvertDuration, err = m.Float64Histogram("voxcode.convert.duration",
		metric.WithDescription("Latency of ffmpeg audio conversion."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranscribeDuration, err = m.Float64Histogram("voxcode.transcribe.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.AgentDuration, err = m.Float64Histogram("voxcode.agent.duration",
		metric.WithDescription("Latency of agent CLI executions."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.GitDuration, err = m.Float64Histogram("voxcode.git.duration",
		metric.WithDescription("Latency of git subprocess calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.UpdatesHandled, err = m.Int64Counter("voxcode.updates.handled",
		metric.WithDescription("Total processed Telegram updates by kind and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("voxcode.provider.requests",
		metric.WithDescription("Total provider API requests by provider and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("voxcode.provider.errors",
		metric.WithDescription("Total provider errors by provider."),
	); err != nil {
		return nil, err
	}
	if met.Approvals, err = m.Int64Counter("voxcode.approvals",
		metric.WithDescription("Total approval decisions by outcome."),
	); err != nil {
		return nil, err
	}
	if met.AgentCostUSD, err = m.Float64Counter("voxcode.agent.cost_usd",
		metric.WithDescription("Cumulative agent spend reported by the CLI."),
		metric.WithUnit("{USD}"),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveExecutions, err = m.Int64UpDownCounter("voxcode.active_executions",
		metric.WithDescription("Number of agent subprocesses currently running."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordUpdate records one handled Telegram update.
func (m *Metrics) RecordUpdate(ctx context.Context, kind, status string) {
	m.UpdatesHandled.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderRequest records a provider request counter increment with the
// standard attribute set, and an error increment when the call failed.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("status", status),
		),
	)
	if status != "ok" {
		m.ProviderErrors.Add(ctx, 1,
			metric.WithAttributes(attribute.String("provider", provider)),
		)
	}
}

// RecordApproval records one approval decision ("approved" or "rejected").
func (m *Metrics) RecordApproval(ctx context.Context, decision string) {
	m.Approvals.Add(ctx, 1,
		metric.WithAttributes(attribute.String("decision", decision)),
	)
}

// RecordAgentRun records the duration and cost of one agent invocation.
func (m *Metrics) RecordAgentRun(ctx context.Context, d time.Duration, costUSD float64, status string) {
	m.AgentDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("status", status)),
	)
	if costUSD > 0 {
		m.AgentCostUSD.Add(ctx, costUSD)
	}
}
