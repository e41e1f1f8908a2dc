package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/resp"
)

// DefaultTimeout bounds a request when ctx carries no deadline.
const DefaultTimeout = 5 * time.Second

var (
	// ErrClosed is returned after Close, or after a failure left the
	// connection unusable.
	ErrClosed = errors.New("client: connection closed")

	// ErrUnexpectedReply is returned when a reply has the wrong type.
	ErrUnexpectedReply = errors.New("client: unexpected reply")
)

// ServerError is an error reply sent by the server.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	return "server: " + e.Message
}

// IsLockError reports whether err is the server's store-unavailable reply.
func IsLockError(err error) bool {
	var se *ServerError
	return errors.As(err, &se) && se.Message == "lock error"
}

// IsUnimplemented reports whether the server recognized the command but does
// not implement it.
func IsUnimplemented(err error) bool {
	var se *ServerError
	return errors.As(err, &se) && se.Message == "unimplemented"
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout used when ctx has no deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// Client is a connection to one minikv server. It is safe for concurrent
// use; requests are serialized.
type Client struct {
	addr    string
	timeout time.Duration

	mu     sync.Mutex
	conn   net.Conn
	rd     *resp.Reader
	buf    bytes.Buffer
	broken bool
}

// UnixPrefix marks an address as a Unix socket path.
const UnixPrefix = "unix:"

// Dial connects to the server at addr, which is host:port or
// unix:/path/to/socket.
func Dial(ctx context.Context, addr string, opts ...Option) (*Client, error) {
	c := &Client{
		addr:    addr,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	network, target := "tcp", addr
	if path, ok := strings.CutPrefix(addr, UnixPrefix); ok {
		network, target = "unix", path
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, network, target)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	c.conn = conn
	c.rd = resp.NewReader(conn)
	return c, nil
}

// Addr returns the server address.
func (c *Client) Addr() string {
	return c.addr
}

// Get returns the value stored under key. The boolean is false when the key
// does not exist.
func (c *Client) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := c.Do(ctx, resp.StringValue("GET"), resp.StringValue(key))
	if err != nil {
		return nil, false, err
	}
	if v.IsNull() {
		return nil, false, nil
	}
	if v.Type() != resp.BulkString {
		return nil, false, fmt.Errorf("%w: GET returned %v", ErrUnexpectedReply, v.Type())
	}
	return v.Bytes(), true, nil
}

// Set stores value under key.
func (c *Client) Set(ctx context.Context, key string, value []byte) error {
	v, err := c.Do(ctx, resp.StringValue("SET"), resp.StringValue(key), resp.BytesValue(value))
	if err != nil {
		return err
	}
	if v.Type() != resp.SimpleString || v.String() != "OK" {
		return fmt.Errorf("%w: SET returned %v %q", ErrUnexpectedReply, v.Type(), v.String())
	}
	return nil
}

// Ping sends PING and returns the reply text.
func (c *Client) Ping(ctx context.Context) (string, error) {
	v, err := c.Do(ctx, resp.StringValue("PING"))
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

// Do sends one request made of args and returns the reply. Error replies are
// returned as *ServerError.
func (c *Client) Do(ctx context.Context, args ...resp.Value) (resp.Value, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || c.broken {
		return resp.Value{}, ErrClosed
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.timeout)
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return resp.Value{}, c.fail(err)
	}
	// Cancellation interrupts blocked I/O.
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetDeadline(time.Now())
	})
	defer stop()

	c.buf.Reset()
	if err := resp.NewWriter(&c.buf).WriteArray(args); err != nil {
		return resp.Value{}, fmt.Errorf("encode request: %w", err)
	}
	if _, err := c.conn.Write(c.buf.Bytes()); err != nil {
		return resp.Value{}, c.fail(ctxErr(ctx, err))
	}

	v, _, err := c.rd.ReadValue()
	if err != nil {
		return resp.Value{}, c.fail(ctxErr(ctx, err))
	}
	if v.Type() == resp.Error {
		return v, &ServerError{Message: v.String()}
	}
	return v, nil
}

// fail marks the connection unusable; a half-read reply cannot be resynced.
func (c *Client) fail(err error) error {
	c.broken = true
	_ = c.conn.Close()
	return err
}

func ctxErr(ctx context.Context, err error) error {
	if cerr := ctx.Err(); cerr != nil {
		return fmt.Errorf("%w: %w", cerr, err)
	}
	// The socket deadline can fire just before the context timer.
	if d, ok := ctx.Deadline(); ok && !time.Now().Before(d) {
		return fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
	}
	return err
}

// Close closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	if c.broken {
		return nil
	}
	return err
}
