// Package otel publishes session metrics through an OpenTelemetry meter.
//
// [NewExporter] registers one observable counter per session counter and
// one observable gauge per cumulative latency bucket. A single callback
// reads the manager's snapshot on each collection.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Change session state.
package otel
