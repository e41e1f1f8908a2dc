// Package logger provides structured logging for minikv.
//
// It wraps log/slog:
//
//   - logger.go: handler construction, dynamic level, rotating file output
//   - context.go: logger and connection/request IDs carried in a context
//   - redact.go: attribute sanitizing (secret redaction, value truncation)
//
// Attributes are sanitized by the handler itself, so call sites may log
// keys and client-supplied values freely.
package logger
