package redisserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"runtime/debug"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/yndnr/minikv/internal/telemetry/logger"
	"github.com/yndnr/minikv/internal/telemetry/metric"
	"github.com/yndnr/minikv/pkg/frame"
)

// State is a connection handler state.
type State int32

const (
	StateAwaitFrame State = iota
	StateDispatch
	StateReply
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateAwaitFrame:
		return "await_frame"
	case StateDispatch:
		return "dispatch"
	case StateReply:
		return "reply"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateClosed || s == StateFailed
}

// ErrPanic wraps a panic recovered while dispatching.
var ErrPanic = errors.New("panic during dispatch")

type readDeadliner interface {
	SetReadDeadline(t time.Time) error
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithRateLimit limits dispatch to r commands per second. r <= 0 disables it.
func WithRateLimit(r float64) HandlerOption {
	return func(h *Handler) {
		if r <= 0 {
			h.limiter = nil
			return
		}
		burst := int(math.Ceil(r))
		if burst < 1 {
			burst = 1
		}
		h.limiter = rate.NewLimiter(rate.Limit(r), burst)
	}
}

// WithIdleTimeout closes the connection when no frame arrives within d.
// d <= 0 waits forever.
func WithIdleTimeout(d time.Duration) HandlerOption {
	return func(h *Handler) {
		h.idleTimeout = d
	}
}

// WithHandlerMetrics records frame errors in m.
func WithHandlerMetrics(m *metric.Registry) HandlerOption {
	return func(h *Handler) {
		h.metrics = m
	}
}

// Handler drives one connection from its first frame to a terminal state.
// It owns the connection exclusively.
type Handler struct {
	conn        FrameConn
	dispatcher  *Dispatcher
	limiter     *rate.Limiter
	idleTimeout time.Duration
	metrics     *metric.Registry

	state atomic.Int32
}

// NewHandler creates a handler for conn.
func NewHandler(conn FrameConn, d *Dispatcher, opts ...HandlerOption) *Handler {
	h := &Handler{
		conn:       conn,
		dispatcher: d,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.setState(StateAwaitFrame)
	return h
}

// State returns the current state.
func (h *Handler) State() State {
	return State(h.state.Load())
}

func (h *Handler) setState(s State) {
	h.state.Store(int32(s))
}

// Run processes requests until the peer disconnects, an error occurs or ctx
// is cancelled. It returns the terminal state and, for StateFailed, the cause.
// Run does not close the connection.
func (h *Handler) Run(ctx context.Context) (State, error) {
	log := logger.L(ctx)

	for {
		h.setState(StateAwaitFrame)

		if h.idleTimeout > 0 {
			if d, ok := h.conn.(readDeadliner); ok {
				_ = d.SetReadDeadline(time.Now().Add(h.idleTimeout))
			}
		}

		f, err := h.conn.ReadFrame()
		if err != nil {
			return h.readFailed(ctx, err)
		}

		cmd, err := ParseCommand(f)
		if err != nil {
			h.metrics.FrameError(metric.ReasonProtocol)
			log.Debug("rejecting request", "error", err)
			// Best effort; the connection is closed either way.
			_ = h.conn.WriteFrame(frame.Error("ERR " + err.Error()))
			return h.fail(err)
		}

		h.setState(StateDispatch)
		if h.limiter != nil {
			if err := h.limiter.Wait(ctx); err != nil {
				h.setState(StateClosed)
				return StateClosed, nil
			}
		}

		reply, err := h.dispatch(ctx, cmd)
		if err != nil {
			h.metrics.FrameError(metric.ReasonPanic)
			log.Error("dispatch panicked", "command", commandName(cmd), "error", err)
			return h.fail(err)
		}

		h.setState(StateReply)
		if err := h.conn.WriteFrame(reply); err != nil {
			h.metrics.FrameError(metric.ReasonWrite)
			return h.fail(fmt.Errorf("write reply: %w", err))
		}
	}
}

func (h *Handler) dispatch(ctx context.Context, cmd Command) (reply frame.Frame, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.L(ctx).Debug("dispatch stack", "stack", string(debug.Stack()))
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return h.dispatcher.Dispatch(ctx, cmd), nil
}

func (h *Handler) readFailed(ctx context.Context, err error) (State, error) {
	if errors.Is(err, io.EOF) {
		h.setState(StateClosed)
		return StateClosed, nil
	}
	if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
		// The server closed the connection on shutdown.
		h.setState(StateClosed)
		return StateClosed, nil
	}

	var netErr net.Error
	switch {
	case errors.As(err, &netErr) && netErr.Timeout():
		h.metrics.FrameError(metric.ReasonIdle)
		h.setState(StateClosed)
		return StateClosed, nil
	case errors.Is(err, frame.ErrConnReset):
		h.metrics.FrameError(metric.ReasonTruncated)
	case errors.Is(err, frame.ErrMalformed):
		h.metrics.FrameError(metric.ReasonMalformed)
	}
	return h.fail(fmt.Errorf("read frame: %w", err))
}

func (h *Handler) fail(err error) (State, error) {
	h.setState(StateFailed)
	return StateFailed, err
}
