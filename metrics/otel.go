package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name for chronopool metrics.
const meterName = "github.com/chronopool/chronopool"

// otelEmitter backs Emitter with real OpenTelemetry instruments.
type otelEmitter struct {
	meterState  metric.Int64UpDownCounter
	outcomes    metric.Int64Counter
	duration    metric.Float64Histogram
	queuedFor   metric.Float64Histogram
	workerGauge metric.Int64UpDownCounter
}

// NewOTelEmitter builds an Emitter backed by the given meter. Instruments
// are created once; if the meter reports an error creating any of them,
// NewOTelEmitter returns that error and no Emitter.
func NewOTelEmitter(meter metric.Meter) (Emitter, error) {
	meterState, err := meter.Int64UpDownCounter(
		"jobs.meter",
		metric.WithDescription("Number of jobs currently queued or processing"),
		metric.WithUnit("{job}"),
	)
	if err != nil {
		return nil, fmt.Errorf("metrics: create jobs.meter: %w", err)
	}

	outcomes, err := meter.Int64Counter(
		"jobs",
		metric.WithDescription("Total jobs reaching a terminal or retry outcome"),
		metric.WithUnit("{job}"),
	)
	if err != nil {
		return nil, fmt.Errorf("metrics: create jobs: %w", err)
	}

	duration, err := meter.Float64Histogram(
		"jobs.duration",
		metric.WithDescription("Job handler execution time in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("metrics: create jobs.duration: %w", err)
	}

	queuedFor, err := meter.Float64Histogram(
		"jobs.queued_for_duration_seconds",
		metric.WithDescription("Time from a job being pushed to a worker starting it, in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("metrics: create jobs.queued_for_duration_seconds: %w", err)
	}

	workerGauge, err := meter.Int64UpDownCounter(
		"workers",
		metric.WithDescription("Number of workers configured on the pool"),
		metric.WithUnit("{worker}"),
	)
	if err != nil {
		return nil, fmt.Errorf("metrics: create workers: %w", err)
	}

	return &otelEmitter{
		meterState:  meterState,
		outcomes:    outcomes,
		duration:    duration,
		queuedFor:   queuedFor,
		workerGauge: workerGauge,
	}, nil
}

var _ Emitter = (*otelEmitter)(nil)

func (e *otelEmitter) MarkQueued(ctx context.Context, name string) {
	e.meterState.Add(ctx, 1, metric.WithAttributes(
		attribute.String("name", name),
		attribute.String("status", "queued"),
	))
}

func (e *otelEmitter) MarkDequeued(ctx context.Context, name string) {
	e.meterState.Add(ctx, -1, metric.WithAttributes(
		attribute.String("name", name),
		attribute.String("status", "queued"),
	))
	e.meterState.Add(ctx, 1, metric.WithAttributes(
		attribute.String("name", name),
		attribute.String("status", "processing"),
	))
}

func (e *otelEmitter) MarkProcessingDone(ctx context.Context, name string) {
	e.meterState.Add(ctx, -1, metric.WithAttributes(
		attribute.String("name", name),
		attribute.String("status", "processing"),
	))
}

func (e *otelEmitter) RecordTerminal(ctx context.Context, name string, status Status, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("name", name),
		attribute.String("status", string(status)),
	)
	e.outcomes.Add(ctx, 1, attrs)
	e.duration.Record(ctx, duration.Seconds(), attrs)
}

func (e *otelEmitter) RecordQueuedFor(ctx context.Context, name string, waited time.Duration) {
	e.queuedFor.Record(ctx, waited.Seconds(), metric.WithAttributes(
		attribute.String("name", name),
	))
}

func (e *otelEmitter) SetWorkers(ctx context.Context, n int) {
	e.workerGauge.Add(ctx, int64(n))
}
