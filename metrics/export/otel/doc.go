// Package otel publishes forumauth engine metrics through an OpenTelemetry
// Meter.
//
// [NewExporter] registers one Int64ObservableCounter per engine counter and
// one Int64ObservableGauge per cumulative latency bucket. A single callback
// reads the engine snapshot on each collection cycle. The caller owns the
// MeterProvider.
package otel
