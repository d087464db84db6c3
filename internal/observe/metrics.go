// Package observe provides the observability primitives for Yomiko:
// OpenTelemetry metrics with a Prometheus exporter bridge, a tracer for the
// utterance pipeline, and trace-enriched structured logging.
//
// A package-level default [Metrics] instance ([DefaultMetrics]) is provided
// for convenience; tests should use [NewMetrics] with their own
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Yomiko metrics.
const meterName = "github.com/yomiko-bot/yomiko"

// Metrics holds all OpenTelemetry metric instruments for the reading
// pipeline. All fields are safe for concurrent use; the underlying OTel
// types handle their own synchronisation.
type Metrics struct {
	// MessagesEnqueued counts messages accepted into a guild queue.
	// Attribute: guild_id.
	MessagesEnqueued metric.Int64Counter

	// MessagesSkipped counts messages filtered out before queueing.
	// Attributes: guild_id, reason.
	MessagesSkipped metric.Int64Counter

	// UtterancesSpoken counts utterances fully synthesized and played.
	// Attribute: guild_id.
	UtterancesSpoken metric.Int64Counter

	// SynthesisDuration tracks the two-step VOICEVOX exchange latency.
	SynthesisDuration metric.Float64Histogram

	// PlaybackDuration tracks voice-channel playback time per utterance.
	PlaybackDuration metric.Float64Histogram

	// SynthesisErrors counts failed synthesis calls. Attribute: stage
	// (audio_query, synthesis, or transport).
	SynthesisErrors metric.Int64Counter

	// PlaybackErrors counts failed playback attempts.
	PlaybackErrors metric.Int64Counter

	// ActiveReaders tracks how many guilds currently have a running
	// consumer loop.
	ActiveReaders metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries in seconds, sized for
// synthesis round trips and spoken-utterance playback.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates all instruments on the given provider.
func NewMetrics(provider metric.MeterProvider) (*Metrics, error) {
	meter := provider.Meter(meterName)
	m := &Metrics{}

	var err error
	if m.MessagesEnqueued, err = meter.Int64Counter(
		"yomiko.messages.enqueued",
		metric.WithDescription("Messages accepted into a guild reading queue"),
	); err != nil {
		return nil, err
	}
	if m.MessagesSkipped, err = meter.Int64Counter(
		"yomiko.messages.skipped",
		metric.WithDescription("Messages filtered out before queueing"),
	); err != nil {
		return nil, err
	}
	if m.UtterancesSpoken, err = meter.Int64Counter(
		"yomiko.utterances.spoken",
		metric.WithDescription("Utterances fully synthesized and played"),
	); err != nil {
		return nil, err
	}
	if m.SynthesisDuration, err = meter.Float64Histogram(
		"yomiko.synthesis.duration",
		metric.WithDescription("VOICEVOX synthesis latency"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if m.PlaybackDuration, err = meter.Float64Histogram(
		"yomiko.playback.duration",
		metric.WithDescription("Voice playback time per utterance"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if m.SynthesisErrors, err = meter.Int64Counter(
		"yomiko.synthesis.errors",
		metric.WithDescription("Failed synthesis calls"),
	); err != nil {
		return nil, err
	}
	if m.PlaybackErrors, err = meter.Int64Counter(
		"yomiko.playback.errors",
		metric.WithDescription("Failed playback attempts"),
	); err != nil {
		return nil, err
	}
	if m.ActiveReaders, err = meter.Int64UpDownCounter(
		"yomiko.readers.active",
		metric.WithDescription("Guilds with a running consumer loop"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the process-wide Metrics instance backed by the
// global meter provider. Instrument creation errors are silently ignored
// here; [NewMetrics] surfaces them for callers that care.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		m, err := NewMetrics(otel.GetMeterProvider())
		if err != nil {
			m = &Metrics{}
		}
		defaultMetrics = m
	})
	return defaultMetrics
}

// GuildAttr builds the guild_id metric attribute.
func GuildAttr(guildID string) attribute.KeyValue {
	return attribute.String("guild_id", guildID)
}

// Count is a nil-safe increment helper so pipeline code can record without
// checking whether metrics were initialised.
func Count(ctx context.Context, c metric.Int64Counter, attrs ...attribute.KeyValue) {
	if c != nil {
		c.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// Record is a nil-safe histogram helper.
func Record(ctx context.Context, h metric.Float64Histogram, seconds float64, attrs ...attribute.KeyValue) {
	if h != nil {
		h.Record(ctx, seconds, metric.WithAttributes(attrs...))
	}
}

// Gauge is a nil-safe up-down counter helper.
func Gauge(ctx context.Context, g metric.Int64UpDownCounter, delta int64) {
	if g != nil {
		g.Add(ctx, delta)
	}
}
