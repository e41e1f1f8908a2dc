package redisserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/yndnr/minikv/internal/server/config"
	"github.com/yndnr/minikv/internal/telemetry/logger"
	"github.com/yndnr/minikv/internal/telemetry/metric"
	"github.com/yndnr/minikv/pkg/cmap"
	"github.com/yndnr/minikv/pkg/frame"
)

// Config holds the Redis server configuration.
type Config struct {
	// Addr is the TCP listen address.
	Addr string
	// Limits bounds incoming frames.
	Limits frame.Limits
	// WriteMode selects the FrameConn variant (buffered or raw).
	WriteMode string
	// RateLimit is the per-connection command rate in commands/s. 0 disables it.
	RateLimit float64
	// IdleTimeout closes connections that send nothing for this long. 0 disables it.
	IdleTimeout time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return ConfigFrom(config.Default().Server.Redis)
}

// ConfigFrom converts the file configuration section.
func ConfigFrom(rc config.RedisConfig) Config {
	return Config{
		Addr: rc.Addr(),
		Limits: frame.Limits{
			MaxBulkLen:  rc.MaxBulkLen,
			MaxArrayLen: rc.MaxArrayLen,
			MaxLineLen:  rc.MaxLineLen,
		},
		WriteMode:   rc.WriteMode,
		RateLimit:   rc.RateLimit,
		IdleTimeout: rc.IdleTimeout,
	}
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics records connection and command metrics in m.
func WithMetrics(m *metric.Registry) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// Server represents the Redis protocol server.
type Server struct {
	cfg        Config
	id         uuid.UUID
	dispatcher *Dispatcher
	logger     logger.Logger
	metrics    *metric.Registry

	mu  sync.Mutex
	lns []net.Listener

	conns   *cmap.Map[FrameConn]
	closing atomic.Bool
	wg      sync.WaitGroup
}

// New creates a new Redis protocol server backed by store.
func New(cfg Config, store Store, opts ...Option) *Server {
	s := &Server{
		cfg:    cfg,
		id:     uuid.New(),
		logger: logger.Default(),
		conns:  cmap.New[FrameConn](),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "redis", "server_id", s.id.String())
	s.dispatcher = NewDispatcher(store, s.metrics)
	return s
}

// ID returns the instance ID.
func (s *Server) ID() uuid.UUID {
	return s.id
}

// Addr returns the address of the first listener, or nil before Start or
// Serve.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.lns) == 0 {
		return nil
	}
	return s.lns[0].Addr()
}

func (s *Server) track(ln net.Listener) {
	s.mu.Lock()
	s.lns = append(s.lns, ln)
	s.mu.Unlock()
}

// ActiveConnections returns the number of live connections.
func (s *Server) ActiveConnections() int {
	return s.conns.Count()
}

// Start listens on cfg.Addr and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	s.track(ln)
	s.logger.Info("starting redis server", "address", ln.Addr().String(), "write_mode", s.cfg.WriteMode)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.serve(ctx, ln); err != nil {
			s.logger.Error("redis server error", "error", err)
		}
	}()
	return nil
}

// Serve accepts connections on ln until ln is closed, Shutdown is called or
// ctx is cancelled. Cancelling ctx also closes every live connection.
// Serve may run on several listeners at once; they share the store and
// the connection registry.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.track(ln)
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() {
		s.closing.Store(true)
		_ = ln.Close()
		s.closeAll()
	})
	defer stop()

	for {
		c, err := ln.Accept()
		if err != nil {
			if s.closing.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		id := ulid.Make().String()
		fc := NewFrameConn(c, s.cfg.WriteMode, s.cfg.Limits)

		// Register before checking closing so closeAll cannot miss it.
		s.conns.Set(id, fc)
		if s.closing.Load() {
			s.conns.Delete(id)
			_ = fc.Close()
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(ctx, id, fc)
		}()
	}
}

func (s *Server) serveConn(ctx context.Context, id string, fc FrameConn) {
	defer s.conns.Delete(id)
	defer fc.Close()

	s.metrics.ConnOpened()
	defer s.metrics.ConnClosed()

	ctx = logger.WithLogger(ctx, s.logger.With("remote", remoteString(fc)))
	ctx = logger.WithConnID(ctx, id)
	log := logger.L(ctx)

	h := NewHandler(fc, s.dispatcher,
		WithRateLimit(s.cfg.RateLimit),
		WithIdleTimeout(s.cfg.IdleTimeout),
		WithHandlerMetrics(s.metrics),
	)

	log.Debug("connection opened")
	state, err := h.Run(ctx)
	if err != nil {
		log.Warn("connection failed", "state", state.String(), "error", err)
		return
	}
	log.Debug("connection closed", "state", state.String())
}

// remoteString names the peer. Unix socket peers are usually unnamed.
func remoteString(fc FrameConn) string {
	addr := fc.RemoteAddr()
	if addr == nil || addr.String() == "" {
		return "local"
	}
	return addr.String()
}

func (s *Server) closeAll() {
	s.conns.Range(func(_ string, fc FrameConn) bool {
		_ = fc.Close()
		return true
	})
}

// Shutdown stops accepting, closes every live connection and waits for the
// handlers to return or for ctx to end.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closing.Store(true)

	var errs []error
	s.mu.Lock()
	for _, ln := range s.lns {
		if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, err)
		}
	}
	s.mu.Unlock()

	s.closeAll()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	return errors.Join(errs...)
}
