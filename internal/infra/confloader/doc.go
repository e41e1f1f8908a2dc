// Package confloader provides the configuration loading mechanism.
//
// It layers sources with koanf and unmarshals the result into a typed struct.
//
// Priority (highest to lowest):
//
//  1. Overrides (command-line flags)
//  2. Environment variables
//  3. Dotenv file (--env-file)
//  4. Configuration file (YAML)
//  5. Default values already present in the target struct
//
// Environment variables use a prefix and a double underscore between
// nesting levels, so single underscores survive inside key names:
//
//	MINIKV_SERVER__REDIS__MAX_BULK_LEN=1048576  ->  server.redis.max_bulk_len
//
// Watcher reports changes to the configuration file so callers can Reload.
package confloader
