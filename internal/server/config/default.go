package config

import "github.com/yndnr/minikv/pkg/frame"

// Default configuration values.
const (
	DefaultRedisHost = "127.0.0.1"
	DefaultRedisPort = 6379
	DefaultAdminAddr = "127.0.0.1:9121"

	DefaultAdminRateLimit = 50

	DefaultLogLevel      = "info"
	DefaultLogFormat     = "json"
	DefaultLogMaxSizeMB  = 100
	DefaultLogMaxBackups = 3
	DefaultLogMaxAgeDays = 28
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			Redis: RedisConfig{
				Host:        DefaultRedisHost,
				Port:        DefaultRedisPort,
				MaxBulkLen:  frame.DefaultMaxBulkLen,
				MaxArrayLen: frame.DefaultMaxArrayLen,
				MaxLineLen:  frame.DefaultMaxLineLen,
				WriteMode:   WriteModeBuffered,
			},
			Admin: AdminConfig{
				Enabled:   false,
				Addr:      DefaultAdminAddr,
				RateLimit: DefaultAdminRateLimit,
			},
		},
		Log: LogSection{
			Level:      DefaultLogLevel,
			Format:     DefaultLogFormat,
			MaxSizeMB:  DefaultLogMaxSizeMB,
			MaxBackups: DefaultLogMaxBackups,
			MaxAgeDays: DefaultLogMaxAgeDays,
		},
	}
}
