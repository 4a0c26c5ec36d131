// Package observe provides OpenTelemetry metrics for guildbox.
//
// Instruments are created through the OTel Metrics API and exported via the
// Prometheus bridge set up by [InitProvider]. Tests should build their own
// [Metrics] with [NewMetrics] and a ManualReader-backed provider.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all guildbox metrics.
const meterName = "github.com/osa030/guildbox"

// Metrics holds all metric instruments. Safe for concurrent use.
type Metrics struct {
	// ActiveSessions tracks the number of guilds with a live player.
	ActiveSessions metric.Int64UpDownCounter

	// Directives counts directives issued to audio nodes. Attributes:
	//   attribute.String("directive", ...), attribute.String("status", ...)
	Directives metric.Int64Counter

	// DirectiveDuration tracks node round-trip latency per directive.
	DirectiveDuration metric.Float64Histogram

	// Events counts node events dispatched to players, by kind.
	Events metric.Int64Counter

	// InvalidEvents counts events dispatch could not route.
	InvalidEvents metric.Int64Counter

	// Rejections counts enqueue requests rejected by a filter, by code.
	Rejections metric.Int64Counter
}

// latencyBuckets are histogram boundaries in seconds for node REST calls.
var latencyBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5,
}

// NewMetrics creates all instruments on the given provider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.ActiveSessions, err = m.Int64UpDownCounter("guildbox.active_sessions",
		metric.WithDescription("Number of guilds with a live player."),
	); err != nil {
		return nil, err
	}
	if met.Directives, err = m.Int64Counter("guildbox.node.directives",
		metric.WithDescription("Directives issued to audio nodes by directive and status."),
	); err != nil {
		return nil, err
	}
	if met.DirectiveDuration, err = m.Float64Histogram("guildbox.node.directive.duration",
		metric.WithDescription("Latency of directives issued to audio nodes."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Events, err = m.Int64Counter("guildbox.node.events",
		metric.WithDescription("Node events dispatched to players by kind."),
	); err != nil {
		return nil, err
	}
	if met.InvalidEvents, err = m.Int64Counter("guildbox.node.events.invalid",
		metric.WithDescription("Node events that could not be dispatched."),
	); err != nil {
		return nil, err
	}
	if met.Rejections, err = m.Int64Counter("guildbox.enqueue.rejections",
		metric.WithDescription("Enqueue requests rejected by admission filters, by code."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level instance built on the global
// meter provider. Panics if instrument creation fails.
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

// RecordDirective records one directive outcome and its latency.
func (m *Metrics) RecordDirective(ctx context.Context, directive string, elapsed time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.Directives.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("directive", directive),
			attribute.String("status", status),
		),
	)
	m.DirectiveDuration.Record(ctx, elapsed.Seconds(),
		metric.WithAttributes(attribute.String("directive", directive)),
	)
}

// RecordEvent records one dispatched node event.
func (m *Metrics) RecordEvent(ctx context.Context, kind string) {
	m.Events.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordInvalidEvent records an event dispatch could not route.
func (m *Metrics) RecordInvalidEvent(ctx context.Context) {
	m.InvalidEvents.Add(ctx, 1)
}

// RecordRejection records an enqueue request rejected with the given code.
func (m *Metrics) RecordRejection(ctx context.Context, code string) {
	m.Rejections.Add(ctx, 1, metric.WithAttributes(attribute.String("code", code)))
}
