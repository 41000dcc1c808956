// Package metrics implements chronopool's job lifecycle signals as
// OpenTelemetry instruments.
//
// [Emitter] is the low-level recorder: five signals covering queue depth,
// terminal-outcome counts, execution duration, and queue wait time, plus a
// worker-count gauge set once at startup. [NewOTelEmitter] backs it with a
// real go.opentelemetry.io/otel/metric.Meter; [Noop] discards everything.
//
// [Extension] adapts an Emitter into an ext.Extension, so the worker pool
// and scheduler never import this package directly — they only ever emit
// lifecycle hooks through an ext.Registry, and metrics collection is one
// more subscriber.
package metrics
