package redisserver

import (
	"bufio"
	"net"
	"sync/atomic"
	"time"

	"github.com/yndnr/minikv/internal/server/config"
	"github.com/yndnr/minikv/pkg/frame"
)

// FrameConn reads and writes whole frames on a byte stream.
//
// WriteFrame returns only after the encoded frame has been handed to the
// transport. Frames that have no encoding (Array) fail without writing
// anything.
type FrameConn interface {
	ReadFrame() (frame.Frame, error)
	WriteFrame(f frame.Frame) error
	Close() error
	RemoteAddr() net.Addr
}

// maxRetainedScratch is the largest encode buffer kept between frames.
const maxRetainedScratch = 64 * 1024

// retain empties b for reuse, or drops it once it outgrew maxRetainedScratch.
func retain(b []byte) []byte {
	if cap(b) > maxRetainedScratch {
		return nil
	}
	return b[:0]
}

// NewFrameConn wraps c using the given write mode (config.WriteModeBuffered
// or config.WriteModeRaw). An empty mode selects the buffered variant.
func NewFrameConn(c net.Conn, mode string, lim frame.Limits) FrameConn {
	base := baseConn{
		netConn: c,
		dec:     frame.NewDecoder(c, lim),
	}
	if mode == config.WriteModeRaw {
		return &rawConn{baseConn: base}
	}
	return &bufferedConn{
		baseConn: base,
		bw:       bufio.NewWriter(c),
	}
}

// baseConn holds the read side shared by both variants.
type baseConn struct {
	netConn net.Conn
	dec     *frame.Decoder
	closed  atomic.Bool
}

func (c *baseConn) ReadFrame() (frame.Frame, error) {
	return c.dec.ReadFrame()
}

func (c *baseConn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.netConn.Close()
}

func (c *baseConn) RemoteAddr() net.Addr {
	return c.netConn.RemoteAddr()
}

// SetReadDeadline bounds the next ReadFrame.
func (c *baseConn) SetReadDeadline(t time.Time) error {
	return c.netConn.SetReadDeadline(t)
}

// bufferedConn writes through a bufio.Writer flushed after every frame.
type bufferedConn struct {
	baseConn
	bw      *bufio.Writer
	scratch []byte
}

func (c *bufferedConn) WriteFrame(f frame.Frame) error {
	b, err := frame.Append(c.scratch[:0], f)
	if err != nil {
		return err
	}
	c.scratch = retain(b)

	if _, err := c.bw.Write(b); err != nil {
		return err
	}
	return c.bw.Flush()
}

// rawConn encodes into its own growable buffer and issues one Write per frame.
type rawConn struct {
	baseConn
	out []byte
}

func (c *rawConn) WriteFrame(f frame.Frame) error {
	b, err := frame.Append(c.out[:0], f)
	if err != nil {
		return err
	}
	c.out = retain(b)

	_, err = c.netConn.Write(b)
	return err
}
