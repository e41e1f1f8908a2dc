package config

import (
	"net"
	"strconv"
	"time"
)

// ServerConfig is the root configuration for minikv-server.
type ServerConfig struct {
	Server ServerSection `koanf:"server"`
	Log    LogSection    `koanf:"log"`
}

// ServerSection configures server endpoints.
type ServerSection struct {
	Redis RedisConfig `koanf:"redis"`
	Local LocalConfig `koanf:"local"`
	Admin AdminConfig `koanf:"admin"`
}

// Write modes for client connections.
const (
	// WriteModeBuffered writes through a bufio.Writer flushed after every frame.
	WriteModeBuffered = "buffered"
	// WriteModeRaw encodes into a reusable buffer written with one Write per frame.
	WriteModeRaw = "raw"
)

// RedisConfig configures the key-value protocol server.
type RedisConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`

	// Protocol limits; zero selects the built-in default.
	MaxBulkLen  int `koanf:"max_bulk_len"`
	MaxArrayLen int `koanf:"max_array_len"`
	MaxLineLen  int `koanf:"max_line_len"`

	WriteMode string `koanf:"write_mode"`

	// RateLimit caps commands per second per connection; 0 disables it.
	RateLimit float64 `koanf:"rate_limit"`

	// IdleTimeout closes connections silent for this long; 0 disables it.
	IdleTimeout time.Duration `koanf:"idle_timeout"`
}

// Addr returns host:port.
func (c RedisConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// LocalConfig configures the Unix socket listener. It serves the same
// protocol as the TCP listener against the same store.
type LocalConfig struct {
	// Socket is the socket path; empty disables the listener.
	Socket string `koanf:"socket"`
}

// AdminConfig configures the admin HTTP server (health, metrics).
type AdminConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`

	// RateLimit caps requests per second per client IP; 0 disables it.
	RateLimit float64 `koanf:"rate_limit"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`

	// File enables rotating file output instead of stderr.
	File       string `koanf:"file"`
	MaxSizeMB  int    `koanf:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups"`
	MaxAgeDays int    `koanf:"max_age_days"`
}
