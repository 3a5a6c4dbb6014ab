// Package prometheus exposes session store metrics to Prometheus.
//
// [Collector] is a prometheus.Collector that reads the store's metrics
// snapshot on every scrape. [PrometheusExporter] registers one in a private
// registry and serves it through [PrometheusExporter.Handler]. Counter names
// are gosession_*_total; the single histogram is
// gosession_persist_write_latency_seconds.
//
// # What this package must NOT do
//
//   - Register into the global Prometheus registry. Callers mount the
//     Handler or register the Collector themselves.
//   - Mutate store state.
package prometheus
