package localserver

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"sync"

	"github.com/yndnr/minikv/internal/telemetry/logger"
)

// SocketMode is the permission set on the socket file.
const SocketMode fs.FileMode = 0o600

// Backend serves connections accepted on a listener. redisserver.Server
// implements it.
type Backend interface {
	Serve(ctx context.Context, ln net.Listener) error
}

// Server owns the socket file and its listener.
type Server struct {
	path    string
	backend Backend
	logger  logger.Logger

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
}

// New creates a local server for the socket at path.
func New(path string, backend Backend, log logger.Logger) *Server {
	if log == nil {
		log = logger.Discard()
	}
	return &Server{
		path:    path,
		backend: backend,
		logger:  log.With("component", "local", "socket", path),
	}
}

// Path returns the socket path.
func (s *Server) Path() string {
	return s.path
}

// Start creates the socket and serves it in the background. A stale socket
// left by a previous process is replaced; any other file at path is an
// error.
func (s *Server) Start(ctx context.Context) error {
	if err := removeStale(s.path); err != nil {
		return err
	}

	ln, err := net.Listen("unix", s.path)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.path, err)
	}
	if err := os.Chmod(s.path, SocketMode); err != nil {
		_ = ln.Close()
		return fmt.Errorf("chmod %s: %w", s.path, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	s.logger.Info("local socket listening")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.backend.Serve(ctx, ln); err != nil {
			s.logger.Error("local socket error", "error", err)
		}
	}()
	return nil
}

func removeStale(path string) error {
	fi, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if fi.Mode()&fs.ModeSocket == 0 {
		return fmt.Errorf("%s exists and is not a socket", path)
	}
	return os.Remove(path)
}

// Shutdown stops accepting on the socket, removes the file and waits for
// the accept loop to return. Live connections belong to the backend and
// are closed by its own shutdown.
func (s *Server) Shutdown(ctx context.Context) error {
	var closeErr error
	s.mu.Lock()
	if s.listener != nil {
		if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			closeErr = err
		}
	}
	s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) && closeErr == nil {
		closeErr = err
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return closeErr
	case <-ctx.Done():
		return ctx.Err()
	}
}
