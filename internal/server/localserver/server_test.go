package localserver

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/yndnr/minikv/internal/server/redisserver"
	"github.com/yndnr/minikv/internal/storage/memory"
	"github.com/yndnr/minikv/internal/telemetry/logger"
	"github.com/yndnr/minikv/pkg/client"
)

func newBackend(t *testing.T) *redisserver.Server {
	t.Helper()
	kv := redisserver.New(redisserver.Config{Addr: "127.0.0.1:0"}, memory.New(),
		redisserver.WithLogger(logger.Discard()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = kv.Shutdown(ctx)
	})
	return kv
}

func socketPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "kv.sock")
}

func startLocal(t *testing.T, path string, kv *redisserver.Server) *Server {
	t.Helper()
	s := New(path, kv, logger.Discard())
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})
	return s
}

func TestServer_SetGetOverSocket(t *testing.T) {
	path := socketPath(t)
	startLocal(t, path, newBackend(t))

	ctx := context.Background()
	c, err := client.Dial(ctx, client.UnixPrefix+path)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer c.Close()

	if err := c.Set(ctx, "hello", []byte("world")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	v, ok, err := c.Get(ctx, "hello")
	if err != nil || !ok || string(v) != "world" {
		t.Fatalf("Get() = (%q, %v, %v), want world", v, ok, err)
	}
}

func TestServer_SharesStoreWithTCP(t *testing.T) {
	kv := newBackend(t)
	ctx := context.Background()
	if err := kv.Start(ctx); err != nil {
		t.Fatalf("backend Start() error = %v", err)
	}

	path := socketPath(t)
	startLocal(t, path, kv)

	tcp, err := client.Dial(ctx, kv.Addr().String())
	if err != nil {
		t.Fatalf("Dial(tcp) error = %v", err)
	}
	defer tcp.Close()
	local, err := client.Dial(ctx, client.UnixPrefix+path)
	if err != nil {
		t.Fatalf("Dial(unix) error = %v", err)
	}
	defer local.Close()

	if err := tcp.Set(ctx, "k", []byte("over-tcp")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	v, ok, err := local.Get(ctx, "k")
	if err != nil || !ok || string(v) != "over-tcp" {
		t.Fatalf("Get() = (%q, %v, %v), want over-tcp", v, ok, err)
	}
	if got := kv.ActiveConnections(); got != 2 {
		t.Errorf("ActiveConnections() = %d, want 2", got)
	}
}

func TestServer_SocketMode(t *testing.T) {
	path := socketPath(t)
	startLocal(t, path, newBackend(t))

	fi, err := os.Lstat(path)
	if err != nil {
		t.Fatalf("Lstat() error = %v", err)
	}
	if fi.Mode()&os.ModeSocket == 0 {
		t.Errorf("mode = %v, want socket", fi.Mode())
	}
	if perm := fi.Mode().Perm(); perm != SocketMode {
		t.Errorf("perm = %v, want %v", perm, SocketMode)
	}
}

func TestServer_ReplacesStaleSocket(t *testing.T) {
	path := socketPath(t)
	kv := newBackend(t)

	first := New(path, kv, logger.Discard())
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("first Start() error = %v", err)
	}
	// Simulate a crash: the file stays behind but nobody listens.
	first.mu.Lock()
	if ul, ok := first.listener.(interface{ SetUnlinkOnClose(bool) }); ok {
		ul.SetUnlinkOnClose(false)
	}
	_ = first.listener.Close()
	first.mu.Unlock()

	if _, err := os.Lstat(path); err != nil {
		t.Fatalf("stale socket missing: %v", err)
	}

	startLocal(t, path, kv)
	c, err := client.Dial(context.Background(), client.UnixPrefix+path)
	if err != nil {
		t.Fatalf("Dial() after restart error = %v", err)
	}
	_ = c.Close()
}

func TestServer_RefusesRegularFile(t *testing.T) {
	path := socketPath(t)
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := New(path, newBackend(t), logger.Discard())
	err := s.Start(context.Background())
	if err == nil || !strings.Contains(err.Error(), "not a socket") {
		t.Fatalf("Start() error = %v, want not a socket", err)
	}
	if b, _ := os.ReadFile(path); string(b) != "data" {
		t.Error("regular file was modified")
	}
}

func TestServer_ShutdownRemovesSocket(t *testing.T) {
	path := socketPath(t)
	s := New(path, newBackend(t), logger.Discard())
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if _, err := os.Lstat(path); !os.IsNotExist(err) {
		t.Errorf("socket still present: %v", err)
	}
	if _, err := client.Dial(context.Background(), client.UnixPrefix+path); err == nil {
		t.Error("Dial() after Shutdown succeeded")
	}
}

func TestServer_Path(t *testing.T) {
	if got := New("/run/minikv.sock", nil, nil).Path(); got != "/run/minikv.sock" {
		t.Errorf("Path() = %q", got)
	}
}
