// Package metric exposes attendmesh metrics in Prometheus format.
//
//   - prometheus.go: the Registry, its HTTP handler and attendance event
//     counters
//   - collector.go: a collector reporting store sizes at scrape time
//
// Metrics are served at /metrics.
package metric
