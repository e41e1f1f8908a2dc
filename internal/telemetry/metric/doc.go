// Package metric provides Prometheus metrics for minikv.
//
//   - prometheus.go: registry, server metrics and HTTP handler
//   - collector.go: collector reading store statistics at scrape time
//
// Metrics are exposed at /metrics by the admin HTTP server. All recording
// methods accept a nil *Registry so components can run without metrics.
package metric
