// Package otel binds session store metrics to OpenTelemetry instruments.
//
// [NewOTelExporter] registers an Int64ObservableCounter per store counter
// and an Int64ObservableGauge per histogram bucket. One callback reads the
// store's metrics snapshot on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate store state.
package otel
