// Package main provides the entry point for minikv-cli.
//
// Usage:
//
//	minikv-cli [global flags] get <key>
//	minikv-cli [global flags] set <key> <value>
//	minikv-cli [global flags]            # interactive mode
package main
