// Package main provides the entry point for minikv-server.
//
// The server speaks a RESP subset (GET and SET) on a TCP listener and can
// optionally expose an admin HTTP endpoint with health, readiness and
// Prometheus metrics.
//
// Usage:
//
//	minikv-server [flags]
//	minikv-server --config /etc/minikv/config.yaml
//	minikv-server -i 0.0.0.0 -p 6380
//
// Configuration is layered: defaults, config file, env file, MINIKV_
// environment variables, then flags.
package main
