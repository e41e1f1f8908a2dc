// Package config provides the minikv server configuration.
//
//   - spec.go: ServerConfig struct definition
//   - default.go: default values
//   - verify.go: validation
//
// Configuration is loaded via internal/infra/confloader from files,
// environment variables and flags.
package config
