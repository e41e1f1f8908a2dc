package config

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/yndnr/minikv/internal/telemetry/logger"
)

// Verify validates the configuration. All problems are reported together.
func Verify(cfg *ServerConfig) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	return errors.Join(
		verifyRedis(&cfg.Server.Redis),
		verifyLocal(&cfg.Server.Local),
		verifyAdmin(&cfg.Server.Admin, &cfg.Server.Redis),
		verifyLog(&cfg.Log),
	)
}

func verifyRedis(cfg *RedisConfig) error {
	var errs []error

	if cfg.Host == "" {
		errs = append(errs, errors.New("server.redis.host is required"))
	}
	// Port 0 asks the OS for a free port.
	if cfg.Port < 0 || cfg.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.redis.port %d out of range", cfg.Port))
	}
	for name, v := range map[string]int{
		"server.redis.max_bulk_len":  cfg.MaxBulkLen,
		"server.redis.max_array_len": cfg.MaxArrayLen,
		"server.redis.max_line_len":  cfg.MaxLineLen,
	} {
		if v < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", name))
		}
	}
	// SET needs three elements.
	if cfg.MaxArrayLen > 0 && cfg.MaxArrayLen < 3 {
		errs = append(errs, errors.New("server.redis.max_array_len must be at least 3"))
	}
	switch cfg.WriteMode {
	case "", WriteModeBuffered, WriteModeRaw:
	default:
		errs = append(errs, fmt.Errorf("server.redis.write_mode %q must be %q or %q",
			cfg.WriteMode, WriteModeBuffered, WriteModeRaw))
	}
	if cfg.RateLimit < 0 {
		errs = append(errs, errors.New("server.redis.rate_limit must not be negative"))
	}
	if cfg.IdleTimeout < 0 {
		errs = append(errs, errors.New("server.redis.idle_timeout must not be negative"))
	}

	return errors.Join(errs...)
}

// maxSocketPath is the portable sun_path limit (macOS allows 104 bytes).
const maxSocketPath = 103

func verifyLocal(cfg *LocalConfig) error {
	if len(cfg.Socket) > maxSocketPath {
		return fmt.Errorf("server.local.socket path is %d bytes, limit is %d", len(cfg.Socket), maxSocketPath)
	}
	return nil
}

func verifyAdmin(cfg *AdminConfig, redis *RedisConfig) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.RateLimit < 0 {
		return errors.New("server.admin.rate_limit must not be negative")
	}
	if _, _, err := net.SplitHostPort(cfg.Addr); err != nil {
		return fmt.Errorf("server.admin.addr %q: %w", cfg.Addr, err)
	}
	if redis.Port != 0 && cfg.Addr == redis.Addr() {
		return fmt.Errorf("server.admin.addr %q conflicts with server.redis", cfg.Addr)
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	var errs []error

	if !logger.ValidLevel(cfg.Level) {
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", cfg.Level))
	}
	switch strings.ToLower(cfg.Format) {
	case "json", "text", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be json or text", cfg.Format))
	}
	if cfg.File != "" && (cfg.MaxSizeMB < 0 || cfg.MaxBackups < 0 || cfg.MaxAgeDays < 0) {
		errs = append(errs, errors.New("log rotation settings must not be negative"))
	}

	return errors.Join(errs...)
}
