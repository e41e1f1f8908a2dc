package frame

import (
	"errors"
	"io"
)

const (
	initialBufferSize = 4 * 1024

	// maxRetainedBuffer is the largest buffer kept once its frame has been
	// consumed.
	maxRetainedBuffer = 64 * 1024

	// maxEmptyReads matches bufio's tolerance for readers that keep
	// returning (0, nil).
	maxEmptyReads = 100
)

// Decoder reads frames from a byte stream.
//
// Bytes before the decode cursor have been consumed into frames; bytes after
// it are an undecoded remainder that survives across reads. At most one
// partial frame is ever buffered.
type Decoder struct {
	r   io.Reader
	lim Limits
	buf []byte
	eof bool
}

// NewDecoder returns a Decoder reading from r with the given limits.
func NewDecoder(r io.Reader, lim Limits) *Decoder {
	return &Decoder{
		r:   r,
		lim: lim.normalize(),
		buf: make([]byte, 0, initialBufferSize),
	}
}

// Buffered returns the number of undecoded bytes currently held.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// ReadFrame returns the next frame from the stream.
//
// It returns io.EOF when the peer closed the stream between frames and
// ErrConnReset when it closed in the middle of one. Malformed input is
// returned as an error wrapping ErrMalformed; the decoder should not be used
// after any error.
func (d *Decoder) ReadFrame() (Frame, error) {
	empty := 0
	for {
		f, err := d.parseBuffered()
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, ErrIncomplete) {
			return nil, err
		}

		if d.eof {
			if len(d.buf) == 0 {
				return nil, io.EOF
			}
			return nil, ErrConnReset
		}

		n, err := d.fill()
		switch {
		case err == io.EOF:
			d.eof = true
		case err != nil:
			return nil, err
		case n == 0:
			empty++
			if empty >= maxEmptyReads {
				return nil, io.ErrNoProgress
			}
		default:
			empty = 0
		}
	}
}

// parseBuffered decodes one frame from the buffer and drops its bytes.
func (d *Decoder) parseBuffered() (Frame, error) {
	if len(d.buf) == 0 {
		return nil, ErrIncomplete
	}
	if _, err := Check(d.buf, d.lim); err != nil {
		return nil, err
	}
	f, n, err := Parse(d.buf, d.lim)
	if err != nil {
		return nil, err
	}
	d.buf = d.buf[:copy(d.buf, d.buf[n:])]
	d.shrink()
	return f, nil
}

// shrink returns an oversized buffer to its initial size when the remainder
// fits.
func (d *Decoder) shrink() {
	if cap(d.buf) <= maxRetainedBuffer || len(d.buf) > initialBufferSize {
		return
	}
	small := make([]byte, len(d.buf), initialBufferSize)
	copy(small, d.buf)
	d.buf = small
}

// fill reads once from the underlying reader into spare capacity, growing
// the buffer when it is full.
func (d *Decoder) fill() (int, error) {
	if len(d.buf) == cap(d.buf) {
		grown := make([]byte, len(d.buf), 2*cap(d.buf)+initialBufferSize)
		copy(grown, d.buf)
		d.buf = grown
	}
	n, err := d.r.Read(d.buf[len(d.buf):cap(d.buf)])
	d.buf = d.buf[:len(d.buf)+n]
	if n > 0 && err == io.EOF {
		// Keep the bytes; report EOF on the next empty read.
		d.eof = true
		return n, nil
	}
	return n, err
}
