// Package observability provides a hook extension that records
// system-wide lifecycle metrics through OpenTelemetry. Register it with
// the engine to track enqueue rates, completion counts, failure rates,
// retries, dead-letter volume, and cancellations.
package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/conductorhq/conductor/entry"
	"github.com/conductorhq/conductor/hook"
)

// meterName is the instrumentation scope name for conductor metrics.
const meterName = "github.com/conductorhq/conductor/observability"

// Compile-time interface checks.
var (
	_ hook.Extension         = (*MetricsExtension)(nil)
	_ hook.EntryEnqueued     = (*MetricsExtension)(nil)
	_ hook.EntryCompleted    = (*MetricsExtension)(nil)
	_ hook.EntryFailed       = (*MetricsExtension)(nil)
	_ hook.EntryRetrying     = (*MetricsExtension)(nil)
	_ hook.EntryDeadLettered = (*MetricsExtension)(nil)
	_ hook.EntryCancelled    = (*MetricsExtension)(nil)
)

// MetricsExtension counts lifecycle events per job with OTel counters.
// If no MeterProvider is configured globally, the instruments are noops
// and the extension costs nothing.
type MetricsExtension struct {
	enqueued     metric.Int64Counter
	completed    metric.Int64Counter
	failed       metric.Int64Counter
	retried      metric.Int64Counter
	deadLettered metric.Int64Counter
	cancelled    metric.Int64Counter
	waitTime     metric.Float64Histogram
}

// NewMetricsExtension creates a MetricsExtension using the global
// MeterProvider.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension with the
// provided meter. Use this variant to inject a specific MeterProvider
// for testing.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	m := &MetricsExtension{}
	// On error the OTel API returns noop instruments, so the extension
	// degrades gracefully.
	m.enqueued, _ = meter.Int64Counter("conductor.entry.enqueued",
		metric.WithDescription("Total entries enqueued"),
		metric.WithUnit("{entry}"),
	)
	m.completed, _ = meter.Int64Counter("conductor.entry.completed",
		metric.WithDescription("Total entries completed"),
		metric.WithUnit("{entry}"),
	)
	m.failed, _ = meter.Int64Counter("conductor.entry.failed",
		metric.WithDescription("Total entries failed terminally"),
		metric.WithUnit("{entry}"),
	)
	m.retried, _ = meter.Int64Counter("conductor.entry.retried",
		metric.WithDescription("Total retry attempts scheduled"),
		metric.WithUnit("{retry}"),
	)
	m.deadLettered, _ = meter.Int64Counter("conductor.entry.dead_lettered",
		metric.WithDescription("Total entries quarantined"),
		metric.WithUnit("{entry}"),
	)
	m.cancelled, _ = meter.Int64Counter("conductor.entry.cancelled",
		metric.WithDescription("Total entries cancelled"),
		metric.WithUnit("{entry}"),
	)
	m.waitTime, _ = meter.Float64Histogram("conductor.entry.wait_time",
		metric.WithDescription("Time from enqueue to execution start in seconds"),
		metric.WithUnit("s"),
	)
	return m
}

// Name implements hook.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

func attrs(e *entry.Entry) metric.MeasurementOption {
	return metric.WithAttributes(
		attribute.String("job_id", e.JobID),
		attribute.String("priority", string(e.Priority)),
	)
}

// OnEntryEnqueued implements hook.EntryEnqueued.
func (m *MetricsExtension) OnEntryEnqueued(ctx context.Context, e *entry.Entry) error {
	m.enqueued.Add(ctx, 1, attrs(e))
	return nil
}

// OnEntryCompleted implements hook.EntryCompleted.
func (m *MetricsExtension) OnEntryCompleted(ctx context.Context, e *entry.Entry, _ time.Duration) error {
	m.completed.Add(ctx, 1, attrs(e))
	if e.StartedAt != nil {
		m.waitTime.Record(ctx, e.StartedAt.Sub(e.EnqueuedAt).Seconds(), attrs(e))
	}
	return nil
}

// OnEntryFailed implements hook.EntryFailed.
func (m *MetricsExtension) OnEntryFailed(ctx context.Context, e *entry.Entry, _ error) error {
	m.failed.Add(ctx, 1, attrs(e))
	return nil
}

// OnEntryRetrying implements hook.EntryRetrying.
func (m *MetricsExtension) OnEntryRetrying(ctx context.Context, e *entry.Entry, _ int, _ time.Time) error {
	m.retried.Add(ctx, 1, attrs(e))
	return nil
}

// OnEntryDeadLettered implements hook.EntryDeadLettered.
func (m *MetricsExtension) OnEntryDeadLettered(ctx context.Context, e *entry.Entry, _ error) error {
	m.deadLettered.Add(ctx, 1, attrs(e))
	return nil
}

// OnEntryCancelled implements hook.EntryCancelled.
func (m *MetricsExtension) OnEntryCancelled(ctx context.Context, e *entry.Entry) error {
	m.cancelled.Add(ctx, 1, attrs(e))
	return nil
}
