package benchmark

import (
	"context"
	"fmt"
	"runtime"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/minikv/internal/server/redisserver"
	"github.com/yndnr/minikv/internal/storage/memory"
	"github.com/yndnr/minikv/internal/telemetry/logger"
	"github.com/yndnr/minikv/pkg/client"
)

// KeyCounts defines the store sizes for benchmarking.
var KeyCounts = []int{1000, 10000, 100000}

// ValueSizes defines payload sizes in bytes.
var ValueSizes = []int{16, 1024, 64 * 1024}

// newKey returns a unique key.
func newKey() string {
	return "key-" + ulid.Make().String()
}

// prefillStore fills store with count keys and returns them.
func prefillStore(b *testing.B, store *memory.Store, count int) []string {
	b.Helper()
	keys := make([]string, count)
	value := []byte("value")
	for i := range keys {
		keys[i] = fmt.Sprintf("key-%d", i)
		if err := store.Set(keys[i], value); err != nil {
			b.Fatalf("Set failed: %v", err)
		}
	}
	return keys
}

// startServer runs an in-process server for the duration of the benchmark.
func startServer(b *testing.B, writeMode string) string {
	b.Helper()
	cfg := redisserver.DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	cfg.WriteMode = writeMode

	s := redisserver.New(cfg, memory.New(), redisserver.WithLogger(logger.Discard()))
	if err := s.Start(context.Background()); err != nil {
		b.Fatalf("Start failed: %v", err)
	}
	b.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})
	return s.Addr().String()
}

func dial(b *testing.B, addr string) *client.Client {
	b.Helper()
	c, err := client.Dial(context.Background(), addr)
	if err != nil {
		b.Fatalf("Dial failed: %v", err)
	}
	b.Cleanup(func() { _ = c.Close() })
	return c
}

// reportMemory reports heap usage after a GC.
func reportMemory(b *testing.B, prefix string) {
	var m runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&m)
	b.ReportMetric(float64(m.HeapAlloc)/1024/1024, prefix+"_heap_MB")
}
