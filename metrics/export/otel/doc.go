// Package otel publishes authcore counters through an OpenTelemetry Meter.
//
// [New] registers one Int64ObservableCounter per engine counter and one
// Int64ObservableGauge per latency bucket. A single callback reads
// MetricsSnapshot on each collection. The caller owns the MeterProvider.
package otel
