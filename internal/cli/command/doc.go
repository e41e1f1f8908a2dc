// Package command provides the minikv-cli command tree.
//
// Single-command mode:
//
//	minikv-cli -s 127.0.0.1:6379 set hello world
//	minikv-cli get hello
//
// Without a subcommand the CLI starts an interactive session against the
// same server.
package command
