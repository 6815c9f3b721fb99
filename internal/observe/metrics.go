// Package observe provides application-wide observability primitives for
// kotodama: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all kotodama metrics.
const meterName = "github.com/kotodama-ai/kotodama"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per answering hop ---

	// EmbeddingDuration tracks query/chunk embedding latency.
	EmbeddingDuration metric.Float64Histogram

	// VectorQueryDuration tracks vector index search latency.
	VectorQueryDuration metric.Float64Histogram

	// LLMDuration tracks LLM completion latency.
	LLMDuration metric.Float64Histogram

	// TTSDuration tracks text-to-speech synthesis latency.
	TTSDuration metric.Float64Histogram

	// PipelineStageDuration tracks offline ingestion stage latency. Use with
	// attribute: attribute.String("stage", ...)
	PipelineStageDuration metric.Float64Histogram

	// --- Counters ---

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// AnswersServed counts completed /chat responses. Use with attribute:
	//   attribute.Bool("audio", ...)
	AnswersServed metric.Int64Counter

	// AudioCacheHits and AudioCacheMisses count audio cache lookups.
	AudioCacheHits   metric.Int64Counter
	AudioCacheMisses metric.Int64Counter

	// RateLimitRejections counts requests refused by the rate limiter. Use
	// with attribute: attribute.String("endpoint", ...)
	RateLimitRejections metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveRequests tracks the number of in-flight /chat requests.
	ActiveRequests metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// outbound API hops: sub-second for embeddings and vector search, multi-second
// tails for LLM completions.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.EmbeddingDuration, err = m.Float64Histogram("kotodama.embedding.duration",
		metric.WithDescription("Latency of embedding calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.VectorQueryDuration, err = m.Float64Histogram("kotodama.vector.query.duration",
		metric.WithDescription("Latency of vector index searches."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LLMDuration, err = m.Float64Histogram("kotodama.llm.duration",
		metric.WithDescription("Latency of LLM completions."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = m.Float64Histogram("kotodama.tts.duration",
		metric.WithDescription("Latency of text-to-speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PipelineStageDuration, err = m.Float64Histogram("kotodama.pipeline.stage.duration",
		metric.WithDescription("Latency of offline ingestion stages by stage name."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ProviderRequests, err = m.Int64Counter("kotodama.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.AnswersServed, err = m.Int64Counter("kotodama.answers.served",
		metric.WithDescription("Total completed chat responses by audio presence."),
	); err != nil {
		return nil, err
	}
	if met.AudioCacheHits, err = m.Int64Counter("kotodama.audiocache.hits",
		metric.WithDescription("Total audio cache hits."),
	); err != nil {
		return nil, err
	}
	if met.AudioCacheMisses, err = m.Int64Counter("kotodama.audiocache.misses",
		metric.WithDescription("Total audio cache misses."),
	); err != nil {
		return nil, err
	}
	if met.RateLimitRejections, err = m.Int64Counter("kotodama.ratelimit.rejections",
		metric.WithDescription("Total requests refused by the rate limiter by endpoint."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("kotodama.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveRequests, err = m.Int64UpDownCounter("kotodama.active_requests",
		metric.WithDescription("Number of in-flight chat requests."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("kotodama.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
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

// RecordProviderRequest is a convenience method that records a provider
// request counter increment with the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError is a convenience method that records a provider error
// counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordAnswer records one served chat response.
func (m *Metrics) RecordAnswer(ctx context.Context, audio bool) {
	m.AnswersServed.Add(ctx, 1,
		metric.WithAttributes(attribute.Bool("audio", audio)),
	)
}

// RecordCacheLookup records one audio cache lookup outcome.
func (m *Metrics) RecordCacheLookup(ctx context.Context, hit bool) {
	if hit {
		m.AudioCacheHits.Add(ctx, 1)
		return
	}
	m.AudioCacheMisses.Add(ctx, 1)
}

// RecordRateLimitRejection records one refused request.
func (m *Metrics) RecordRateLimitRejection(ctx context.Context, endpoint string) {
	m.RateLimitRejections.Add(ctx, 1,
		metric.WithAttributes(attribute.String("endpoint", endpoint)),
	)
}
