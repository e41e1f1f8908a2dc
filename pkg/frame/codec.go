package frame

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// Protocol limits. A length field above a limit is malformed input, never
// an allocation request.
const (
	// DefaultMaxBulkLen bounds a single bulk payload (512 MiB, same as Redis).
	DefaultMaxBulkLen = 512 * 1024 * 1024

	// DefaultMaxArrayLen bounds the element count of an array.
	// GET and SET need three at most.
	DefaultMaxArrayLen = 1024

	// DefaultMaxLineLen bounds a CRLF-terminated line (simple, error,
	// integer and length headers).
	DefaultMaxLineLen = 64 * 1024

	// maxNesting bounds array nesting depth.
	maxNesting = 32
)

var (
	// ErrIncomplete means the window does not yet hold a whole frame.
	// It is not a failure; the caller reads more bytes and retries.
	ErrIncomplete = errors.New("frame: incomplete")

	// ErrMalformed means the bytes violate the wire grammar.
	ErrMalformed = errors.New("frame: malformed")

	// ErrLimitExceeded is wrapped together with ErrMalformed when a length
	// exceeds the configured Limits.
	ErrLimitExceeded = errors.New("frame: limit exceeded")

	// ErrUnsupported is returned when encoding a frame with no wire encoding
	// (Array) or an unknown Frame implementation.
	ErrUnsupported = errors.New("frame: unsupported")

	// ErrConnReset is returned by Decoder when the stream ends inside a frame.
	ErrConnReset = errors.New("connection reset by peer")
)

var crlf = []byte("\r\n")

// Limits bounds what the decoder accepts. Zero fields take the defaults.
type Limits struct {
	MaxBulkLen  int
	MaxArrayLen int
	MaxLineLen  int
}

// DefaultLimits returns the default protocol limits.
func DefaultLimits() Limits {
	return Limits{
		MaxBulkLen:  DefaultMaxBulkLen,
		MaxArrayLen: DefaultMaxArrayLen,
		MaxLineLen:  DefaultMaxLineLen,
	}
}

func (l Limits) normalize() Limits {
	if l.MaxBulkLen <= 0 {
		l.MaxBulkLen = DefaultMaxBulkLen
	}
	if l.MaxArrayLen <= 0 {
		l.MaxArrayLen = DefaultMaxArrayLen
	}
	if l.MaxLineLen <= 0 {
		l.MaxLineLen = DefaultMaxLineLen
	}
	return l
}

// Check reports whether buf starts with one complete frame.
//
// On success it returns the frame's length in bytes. It returns ErrIncomplete
// when more bytes are needed and an error wrapping ErrMalformed when the bytes
// can never form a valid frame. buf is never modified.
func Check(buf []byte, lim Limits) (int, error) {
	c := cursor{buf: buf, lim: lim.normalize()}
	if _, err := c.next(0, false); err != nil {
		return 0, err
	}
	return c.pos, nil
}

// Parse extracts the frame at the start of buf and returns it with its
// length. It is meant to run after Check succeeded on the same window.
// Bulk payloads are copied, so buf may be reused afterwards.
func Parse(buf []byte, lim Limits) (Frame, int, error) {
	c := cursor{buf: buf, lim: lim.normalize()}
	f, err := c.next(0, true)
	if err != nil {
		return nil, 0, err
	}
	return f, c.pos, nil
}

// cursor walks a byte window. With build=false it only validates, which is
// what Check needs; with build=true it also materializes frames.
type cursor struct {
	buf []byte
	pos int
	lim Limits
}

func (c *cursor) next(depth int, build bool) (Frame, error) {
	if c.pos >= len(c.buf) {
		return nil, ErrIncomplete
	}
	tag := c.buf[c.pos]
	c.pos++

	switch tag {
	case '+', '-':
		line, err := c.line()
		if err != nil {
			return nil, err
		}
		if !build {
			return nil, nil
		}
		if tag == '+' {
			return Simple(line), nil
		}
		return Error(line), nil

	case ':':
		line, err := c.line()
		if err != nil {
			return nil, err
		}
		n, ok := parseDecimal(line)
		if !ok {
			return nil, fmt.Errorf("%w: invalid integer %q", ErrMalformed, line)
		}
		if !build {
			return nil, nil
		}
		return Integer(n), nil

	case '$':
		n, err := c.length(true)
		if err != nil {
			return nil, err
		}
		if n == -1 {
			if !build {
				return nil, nil
			}
			return Null{}, nil
		}
		if n > int64(c.lim.MaxBulkLen) {
			return nil, fmt.Errorf("%w: %w: bulk length %d exceeds limit %d", ErrMalformed, ErrLimitExceeded, n, c.lim.MaxBulkLen)
		}
		size := int(n)
		if len(c.buf)-c.pos < size+2 {
			return nil, ErrIncomplete
		}
		if !bytes.Equal(c.buf[c.pos+size:c.pos+size+2], crlf) {
			return nil, fmt.Errorf("%w: invalid bulk terminator", ErrMalformed)
		}
		var payload Bulk
		if build {
			payload = make(Bulk, size)
			copy(payload, c.buf[c.pos:c.pos+size])
		}
		c.pos += size + 2
		if !build {
			return nil, nil
		}
		return payload, nil

	case '*':
		if depth >= maxNesting {
			return nil, fmt.Errorf("%w: %w: array nesting exceeds %d", ErrMalformed, ErrLimitExceeded, maxNesting)
		}
		n, err := c.length(false)
		if err != nil {
			return nil, err
		}
		if n > int64(c.lim.MaxArrayLen) {
			return nil, fmt.Errorf("%w: %w: array length %d exceeds limit %d", ErrMalformed, ErrLimitExceeded, n, c.lim.MaxArrayLen)
		}
		var items Array
		if build {
			items = make(Array, 0, n)
		}
		for i := int64(0); i < n; i++ {
			f, err := c.next(depth+1, build)
			if err != nil {
				return nil, err
			}
			if build {
				items = append(items, f)
			}
		}
		if !build {
			return nil, nil
		}
		return items, nil

	default:
		return nil, fmt.Errorf("%w: invalid frame type byte %q", ErrMalformed, tag)
	}
}

// line returns the bytes up to the next CRLF and moves past it.
func (c *cursor) line() ([]byte, error) {
	rest := c.buf[c.pos:]
	i := bytes.Index(rest, crlf)
	if i < 0 {
		// A trailing CR may be the first half of the terminator.
		if len(rest) > c.lim.MaxLineLen+1 {
			return nil, fmt.Errorf("%w: %w: line exceeds %d bytes", ErrMalformed, ErrLimitExceeded, c.lim.MaxLineLen)
		}
		if j := bytes.IndexByte(rest, '\n'); j >= 0 {
			return nil, fmt.Errorf("%w: bare LF in line", ErrMalformed)
		}
		if j := bytes.IndexByte(rest, '\r'); j >= 0 && j < len(rest)-1 {
			return nil, fmt.Errorf("%w: bare CR in line", ErrMalformed)
		}
		return nil, ErrIncomplete
	}
	if i > c.lim.MaxLineLen {
		return nil, fmt.Errorf("%w: %w: line exceeds %d bytes", ErrMalformed, ErrLimitExceeded, c.lim.MaxLineLen)
	}
	line := rest[:i]
	if bytes.IndexByte(line, '\r') >= 0 || bytes.IndexByte(line, '\n') >= 0 {
		return nil, fmt.Errorf("%w: bare CR or LF in line", ErrMalformed)
	}
	c.pos += i + 2
	return line, nil
}

// length reads a length header. The literal -1 is returned as -1 when
// allowNull is set; every other header must be a canonical decimal.
func (c *cursor) length(allowNull bool) (int64, error) {
	line, err := c.line()
	if err != nil {
		return 0, err
	}
	if len(line) == 0 {
		return 0, fmt.Errorf("%w: empty length", ErrMalformed)
	}
	if allowNull && string(line) == "-1" {
		return -1, nil
	}
	n, ok := parseDecimal(line)
	if !ok || n > math.MaxInt64 {
		return 0, fmt.Errorf("%w: invalid length %q", ErrMalformed, line)
	}
	return int64(n), nil
}

// parseDecimal parses the encoder's form of an unsigned number: ASCII digits
// only, no sign, and no leading zero unless the value is 0. Anything else
// would not re-encode to the same bytes.
func parseDecimal(b []byte) (uint64, bool) {
	if len(b) == 0 || (b[0] == '0' && len(b) > 1) {
		return 0, false
	}
	var n uint64
	for _, ch := range b {
		if ch < '0' || ch > '9' {
			return 0, false
		}
		d := uint64(ch - '0')
		if n > (math.MaxUint64-d)/10 {
			return 0, false
		}
		n = n*10 + d
	}
	return n, true
}

// Append appends the wire encoding of f to dst.
func Append(dst []byte, f Frame) ([]byte, error) {
	switch v := f.(type) {
	case Simple:
		if err := checkLine(string(v)); err != nil {
			return dst, err
		}
		dst = append(dst, '+')
		dst = append(dst, v...)
		return append(dst, crlf...), nil
	case Error:
		if err := checkLine(string(v)); err != nil {
			return dst, err
		}
		dst = append(dst, '-')
		dst = append(dst, v...)
		return append(dst, crlf...), nil
	case Integer:
		dst = append(dst, ':')
		dst = strconv.AppendUint(dst, uint64(v), 10)
		return append(dst, crlf...), nil
	case Bulk:
		dst = append(dst, '$')
		dst = strconv.AppendInt(dst, int64(len(v)), 10)
		dst = append(dst, crlf...)
		dst = append(dst, v...)
		return append(dst, crlf...), nil
	case Null:
		return append(dst, "$-1\r\n"...), nil
	case Array:
		return dst, fmt.Errorf("%w: array frames cannot be encoded", ErrUnsupported)
	default:
		return dst, fmt.Errorf("%w: frame %T", ErrUnsupported, f)
	}
}

func checkLine(s string) error {
	for i := 0; i < len(s); i++ {
		if s[i] == '\r' || s[i] == '\n' {
			return fmt.Errorf("%w: CR or LF in line frame", ErrMalformed)
		}
	}
	return nil
}
