// Package repl provides the interactive mode of minikv-cli.
//
//   - repl.go: read-eval-print loop and argument splitting
//   - completer.go: command names, prefix completion, suggestions
//   - history.go: command history persisted between sessions
package repl
