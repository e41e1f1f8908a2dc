package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/minikv/internal/infra/buildinfo"
	"github.com/yndnr/minikv/internal/infra/confloader"
	"github.com/yndnr/minikv/internal/infra/shutdown"
	"github.com/yndnr/minikv/internal/server/config"
	"github.com/yndnr/minikv/internal/server/httpserver"
	"github.com/yndnr/minikv/internal/server/localserver"
	"github.com/yndnr/minikv/internal/server/redisserver"
	"github.com/yndnr/minikv/internal/storage/memory"
	"github.com/yndnr/minikv/internal/telemetry/logger"
	"github.com/yndnr/minikv/internal/telemetry/metric"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "minikv-server",
		Usage:   "minimal RESP key-value server",
		Version: buildinfo.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				EnvVars: []string{"MINIKV_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Path to a dotenv file with MINIKV_ variables",
			},
			&cli.StringFlag{
				Name:    "ip",
				Aliases: []string{"i"},
				Usage:   "Listen address",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Listen port",
			},
			&cli.StringFlag{
				Name:  "socket",
				Usage: "Also serve on this Unix socket path",
			},
			&cli.StringFlag{
				Name:  "admin-addr",
				Usage: "Enable the admin HTTP server on this address",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level: debug, info, warn, error",
			},
		},
		Action: func(c *cli.Context) error {
			return run(c.Context, loaderOptions(c))
		},
	}
}

// loaderOptions maps flags onto the config loader. Only flags given on the
// command line override lower layers.
func loaderOptions(c *cli.Context) []confloader.Option {
	var opts []confloader.Option
	if path := c.String("config"); path != "" {
		opts = append(opts, confloader.WithConfigFile(path))
	}
	if path := c.String("env-file"); path != "" {
		opts = append(opts, confloader.WithDotEnv(path))
	}

	overrides := make(map[string]any)
	if c.IsSet("ip") {
		overrides["server.redis.host"] = c.String("ip")
	}
	if c.IsSet("port") {
		overrides["server.redis.port"] = c.Int("port")
	}
	if c.IsSet("socket") {
		overrides["server.local.socket"] = c.String("socket")
	}
	if c.IsSet("admin-addr") {
		overrides["server.admin.enabled"] = true
		overrides["server.admin.addr"] = c.String("admin-addr")
	}
	if c.IsSet("log-level") {
		overrides["log.level"] = c.String("log-level")
	}
	if len(overrides) > 0 {
		opts = append(opts, confloader.WithOverrides(overrides))
	}
	return opts
}

func run(ctx context.Context, opts []confloader.Option) error {
	loader := confloader.NewLoader(opts...)
	cfg, err := loadConfig(loader)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close(log)

	info := buildinfo.Get()
	log.Info("starting minikv-server",
		"version", info.Version,
		"commit", info.Commit,
		"config", loader.FilePath())

	store := memory.New()

	metrics := metric.NewRegistry()
	metrics.MustRegister(metric.NewStoreCollector(store))
	metrics.SetBuildInfo(info.Version, info.Commit, info.GoVersion)

	kv := redisserver.New(redisserver.ConfigFrom(cfg.Server.Redis), store,
		redisserver.WithLogger(log),
		redisserver.WithMetrics(metrics))
	if err := kv.Start(ctx); err != nil {
		return err
	}
	log.Info("redis server listening", "addr", kv.Addr().String(), "server_id", kv.ID().String())

	sh := shutdown.NewHandler(shutdown.DefaultTimeout, log)
	sh.OnShutdown("redis", kv.Shutdown)

	if path := cfg.Server.Local.Socket; path != "" {
		local := localserver.New(path, kv, log)
		if err := local.Start(ctx); err != nil {
			_ = sh.Shutdown()
			return fmt.Errorf("start local socket: %w", err)
		}
		sh.OnShutdown("local", local.Shutdown)
	}

	if cfg.Server.Admin.Enabled {
		router := httpserver.NewRouter(&httpserver.RouterConfig{
			Logger:    log,
			Gatherer:  metrics.Gatherer(),
			RateLimit: cfg.Server.Admin.RateLimit,
			ReadyChecks: map[string]httpserver.ReadyCheck{
				"store": func(context.Context) error {
					if store.Poisoned() {
						return memory.ErrLockPoisoned
					}
					return nil
				},
				"redis": func(context.Context) error {
					if kv.Addr() == nil {
						return errors.New("not listening")
					}
					return nil
				},
			},
		})
		admin := httpserver.New(cfg.Server.Admin.Addr, router, log)
		if err := admin.Start(); err != nil {
			_ = sh.Shutdown()
			return fmt.Errorf("start admin server: %w", err)
		}
		log.Info("admin server listening", "addr", admin.Addr().String())
		sh.OnShutdown("admin", admin.Shutdown)
	}

	if path := loader.FilePath(); path != "" {
		stop, err := watchConfig(path, opts, log)
		if err != nil {
			log.Warn("config watcher disabled", "error", err)
		} else {
			sh.OnShutdown("config-watcher", func(context.Context) error { return stop() })
		}
	}

	log.Info("server started, press Ctrl+C to stop")
	if err := sh.Wait(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}
	log.Info("server stopped gracefully")
	return nil
}

// loadConfig layers all sources over the defaults and validates the result.
func loadConfig(loader *confloader.Loader) (*config.ServerConfig, error) {
	cfg := config.Default()
	if err := loader.Load(cfg); err != nil {
		return nil, err
	}
	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func initLogger(cfg *config.ServerConfig) (logger.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		return nil, err
	}
	logger.SetDefault(log)
	return log, nil
}

// watchConfig reloads the config file on change. Only the log level is
// applied live; listener settings need a restart.
func watchConfig(path string, opts []confloader.Option, log logger.Logger) (func() error, error) {
	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
	if err != nil {
		return nil, err
	}
	if err := w.Watch(path); err != nil {
		_ = w.Stop()
		return nil, err
	}

	w.OnChange(func(string) {
		cfg, err := loadConfig(confloader.NewLoader(opts...))
		if err != nil {
			log.Warn("config reload rejected", "error", err)
			return
		}
		if cfg.Log.Level != logger.GetLevel() {
			logger.SetLevel(cfg.Log.Level)
			log.Info("log level changed", "level", cfg.Log.Level)
		}
	})
	w.StartAsync()
	return w.Stop, nil
}
