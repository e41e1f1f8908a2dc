// Package httpserver provides the admin HTTP server for minikv.
//
// Endpoints:
//
//   - GET /health: liveness, always 200 while the process serves HTTP
//   - GET /ready: readiness, 503 when a readiness check fails
//   - GET /metrics: Prometheus exposition
//
// Every route runs through Recover, RequestID and Logging; an optional
// per-client rate limit sits in front of them.
package httpserver
