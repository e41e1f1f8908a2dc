package redisserver

import (
	"context"
	"errors"
	"time"

	"github.com/yndnr/minikv/internal/storage/memory"
	"github.com/yndnr/minikv/internal/telemetry/logger"
	"github.com/yndnr/minikv/internal/telemetry/metric"
	"github.com/yndnr/minikv/pkg/frame"
)

// Fixed replies.
var (
	replyOK            = frame.Simple("OK")
	replyUnimplemented = frame.Error("unimplemented")
	replyLockError     = frame.Error("lock error")
	replyInternalError = frame.Error("ERR internal error")
)

// Store is the key-value state shared by all connections.
type Store interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
}

// Dispatcher executes commands against a Store.
type Dispatcher struct {
	store   Store
	metrics *metric.Registry
}

// NewDispatcher creates a dispatcher. metrics may be nil.
func NewDispatcher(store Store, metrics *metric.Registry) *Dispatcher {
	return &Dispatcher{store: store, metrics: metrics}
}

// Dispatch runs cmd and returns the reply frame. It never returns nil.
//
// Store failures become error replies; the caller keeps the connection open.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command) frame.Frame {
	start := time.Now()
	reply, result := d.exec(ctx, cmd)
	d.metrics.ObserveCommand(commandName(cmd), result, time.Since(start))
	return reply
}

func (d *Dispatcher) exec(ctx context.Context, cmd Command) (frame.Frame, string) {
	switch c := cmd.(type) {
	case Get:
		v, ok, err := d.store.Get(c.Key)
		if err != nil {
			return d.storeError(ctx, "get", c.Key, err)
		}
		if !ok {
			return frame.Null{}, metric.ResultMiss
		}
		return frame.Bulk(v), metric.ResultOK

	case Set:
		if err := d.store.Set(c.Key, c.Value); err != nil {
			return d.storeError(ctx, "set", c.Key, err)
		}
		return replyOK, metric.ResultOK

	default:
		return replyUnimplemented, metric.ResultError
	}
}

func (d *Dispatcher) storeError(ctx context.Context, op, key string, err error) (frame.Frame, string) {
	if errors.Is(err, memory.ErrLockPoisoned) {
		logger.L(ctx).Error("store unavailable", "op", op, "key", key, "error", err)
		return replyLockError, metric.ResultLockError
	}
	logger.L(ctx).Error("store operation failed", "op", op, "key", key, "error", err)
	return replyInternalError, metric.ResultError
}
