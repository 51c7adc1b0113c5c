// Package observe provides application-wide observability primitives for
// lingoloop: OpenTelemetry metrics, distributed tracing, trace-aware
// structured logging, and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is installed by [InitProvider] so the service can be scraped
// on /metrics. A package-level default [Metrics] instance ([DefaultMetrics])
// is provided for convenience; tests should use [NewMetrics] with a custom
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all lingoloop metrics.
const meterName = "github.com/lingoloop/lingoloop"

// Status values used on request counters.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// ProviderDuration tracks external capability call latency. Attributes:
	//   provider, kind (tts|stt|llm|grammar|ocr)
	ProviderDuration metric.Float64Histogram

	// ProviderRequests counts capability calls. Attributes: provider, kind, status.
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts failed capability calls. Attributes: provider, kind.
	ProviderErrors metric.Int64Counter

	// AnalysisOutcomes counts analysis pipeline results. Attributes:
	//   task (grammar|speech|concept), tier (primary|fallback|none)
	AnalysisOutcomes metric.Int64Counter

	// SynthesisSegments counts per-segment synthesis results. Attributes:
	//   language, status (ok|skipped)
	SynthesisSegments metric.Int64Counter

	// ActiveStreams tracks open streaming synthesis connections.
	ActiveStreams metric.Int64UpDownCounter

	// RateLimited counts requests rejected by the per-client limiter.
	// Attribute: endpoint.
	RateLimited metric.Int64Counter

	// HTTPRequestDuration tracks HTTP request processing time. Attributes:
	//   method, path
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// remote speech and generative-model calls.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.ProviderDuration, err = m.Float64Histogram("lingoloop.provider.duration",
		metric.WithDescription("Latency of external capability calls by provider and kind."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("lingoloop.provider.requests",
		metric.WithDescription("Total capability calls by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("lingoloop.provider.errors",
		metric.WithDescription("Total capability call failures by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.AnalysisOutcomes, err = m.Int64Counter("lingoloop.analysis.outcomes",
		metric.WithDescription("Analysis pipeline results by task and producing tier."),
	); err != nil {
		return nil, err
	}
	if met.SynthesisSegments, err = m.Int64Counter("lingoloop.synthesis.segments",
		metric.WithDescription("Synthesized and skipped language segments."),
	); err != nil {
		return nil, err
	}
	if met.ActiveStreams, err = m.Int64UpDownCounter("lingoloop.active_streams",
		metric.WithDescription("Number of open streaming synthesis connections."),
	); err != nil {
		return nil, err
	}
	if met.RateLimited, err = m.Int64Counter("lingoloop.http.rate_limited",
		metric.WithDescription("Requests rejected by the per-client rate limiter."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("lingoloop.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Panics if instrument creation
// fails, which does not happen with the global provider.
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

// Attr is a convenience alias for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// ObserveProvider records one finished capability call: its latency, a request
// count with status, and an error count when err is non-nil.
func (m *Metrics) ObserveProvider(ctx context.Context, provider, kind string, start time.Time, err error) {
	m.ProviderDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(Attr("provider", provider), Attr("kind", kind)),
	)
	status := StatusOK
	if err != nil {
		status = StatusError
		m.RecordProviderError(ctx, provider, kind)
	}
	m.RecordProviderRequest(ctx, provider, kind, status)
}

// RecordProviderRequest increments the provider request counter.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			Attr("provider", provider),
			Attr("kind", kind),
			Attr("status", status),
		),
	)
}

// RecordProviderError increments the provider error counter.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(Attr("provider", provider), Attr("kind", kind)),
	)
}

// RecordAnalysisOutcome increments the analysis outcome counter. tier is
// "none" when the pipeline was exhausted.
func (m *Metrics) RecordAnalysisOutcome(ctx context.Context, task, tier string) {
	m.AnalysisOutcomes.Add(ctx, 1,
		metric.WithAttributes(Attr("task", task), Attr("tier", tier)),
	)
}

// RecordSegment increments the synthesis segment counter.
func (m *Metrics) RecordSegment(ctx context.Context, language, status string) {
	m.SynthesisSegments.Add(ctx, 1,
		metric.WithAttributes(Attr("language", language), Attr("status", status)),
	)
}

// RecordRateLimited increments the rate-limited counter for endpoint.
func (m *Metrics) RecordRateLimited(ctx context.Context, endpoint string) {
	m.RateLimited.Add(ctx, 1, metric.WithAttributes(Attr("endpoint", endpoint)))
}
