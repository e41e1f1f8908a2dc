package frame

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/tidwall/resp"
)

// chunkReader hands out one chunk per Read call.
type chunkReader struct {
	chunks [][]byte
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	r.chunks[0] = r.chunks[0][n:]
	if len(r.chunks[0]) == 0 {
		r.chunks = r.chunks[1:]
	}
	return n, nil
}

func mustAppend(t *testing.T, f Frame) []byte {
	t.Helper()
	b, err := Append(nil, f)
	if err != nil {
		t.Fatalf("Append(%v) error = %v", f, err)
	}
	return b
}

func TestDecoder_WholeFrames(t *testing.T) {
	for _, f := range sampleFrames() {
		d := NewDecoder(bytes.NewReader(mustAppend(t, f)), DefaultLimits())
		got, err := d.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame(%v) error = %v", f, err)
		}
		if !Equal(got, f) {
			t.Errorf("ReadFrame() = %v, want %v", got, f)
		}
		if _, err := d.ReadFrame(); err != io.EOF {
			t.Errorf("second ReadFrame() error = %v, want io.EOF", err)
		}
	}
}

func TestDecoder_EverySplitPoint(t *testing.T) {
	for _, f := range sampleFrames() {
		encoded := mustAppend(t, f)
		for i := 0; i <= len(encoded); i++ {
			r := &chunkReader{chunks: [][]byte{
				append([]byte(nil), encoded[:i]...),
				append([]byte(nil), encoded[i:]...),
			}}
			d := NewDecoder(r, DefaultLimits())
			got, err := d.ReadFrame()
			if err != nil {
				t.Fatalf("split %d of %q: ReadFrame() error = %v", i, encoded, err)
			}
			if !Equal(got, f) {
				t.Fatalf("split %d of %q: got %v, want %v", i, encoded, got, f)
			}
		}
	}
}

func TestDecoder_OneByteAtATime(t *testing.T) {
	var stream []byte
	frames := sampleFrames()
	for _, f := range frames {
		stream = append(stream, mustAppend(t, f)...)
	}

	d := NewDecoder(iotest.OneByteReader(bytes.NewReader(stream)), DefaultLimits())
	for i, want := range frames {
		got, err := d.ReadFrame()
		if err != nil {
			t.Fatalf("frame %d: ReadFrame() error = %v", i, err)
		}
		if !Equal(got, want) {
			t.Fatalf("frame %d: got %v, want %v", i, got, want)
		}
	}
	if _, err := d.ReadFrame(); err != io.EOF {
		t.Errorf("ReadFrame() after last frame error = %v, want io.EOF", err)
	}
}

func TestDecoder_Truncated(t *testing.T) {
	for _, f := range sampleFrames() {
		encoded := mustAppend(t, f)
		d := NewDecoder(bytes.NewReader(encoded[:len(encoded)-1]), DefaultLimits())
		got, err := d.ReadFrame()
		if !errors.Is(err, ErrConnReset) {
			t.Errorf("truncated %q: ReadFrame() = (%v, %v), want ErrConnReset", encoded, got, err)
		}
	}
}

func TestDecoder_TruncatedDataErrReader(t *testing.T) {
	// Readers may return the final bytes together with io.EOF.
	r := iotest.DataErrReader(strings.NewReader("*2\r\n$3\r\nGET\r\n$1\r\n"))
	d := NewDecoder(r, DefaultLimits())
	if _, err := d.ReadFrame(); !errors.Is(err, ErrConnReset) {
		t.Fatalf("ReadFrame() error = %v, want ErrConnReset", err)
	}
}

func TestDecoder_EmptyStream(t *testing.T) {
	d := NewDecoder(strings.NewReader(""), DefaultLimits())
	if _, err := d.ReadFrame(); err != io.EOF {
		t.Fatalf("ReadFrame() error = %v, want io.EOF", err)
	}
}

func TestDecoder_PipelinedRemainderStaysBuffered(t *testing.T) {
	in := "*2\r\n$3\r\nGET\r\n$1\r\na\r\n*2\r\n$3\r\nGET\r\n$1\r\nb\r\n$5\r\nhel"
	d := NewDecoder(strings.NewReader(in), DefaultLimits())

	for _, key := range []string{"a", "b"} {
		f, err := d.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame() error = %v", err)
		}
		if want := Command("GET", key); !Equal(f, want) {
			t.Fatalf("ReadFrame() = %v, want %v", f, want)
		}
	}
	if got := d.Buffered(); got != len("$5\r\nhel") {
		t.Errorf("Buffered() = %d, want %d", got, len("$5\r\nhel"))
	}
	if _, err := d.ReadFrame(); !errors.Is(err, ErrConnReset) {
		t.Errorf("ReadFrame() error = %v, want ErrConnReset", err)
	}
}

func TestDecoder_Malformed(t *testing.T) {
	d := NewDecoder(strings.NewReader("+OK\r\n%bad\r\n"), DefaultLimits())
	if _, err := d.ReadFrame(); err != nil {
		t.Fatalf("first ReadFrame() error = %v", err)
	}
	if _, err := d.ReadFrame(); !errors.Is(err, ErrMalformed) {
		t.Fatalf("second ReadFrame() error = %v, want ErrMalformed", err)
	}
}

func TestDecoder_LimitBeforeAllocation(t *testing.T) {
	// The header claims far more than the limit; the decoder must refuse
	// without waiting for (or allocating) the payload.
	d := NewDecoder(strings.NewReader("$1073741824\r\n"), Limits{MaxBulkLen: 1024})
	if _, err := d.ReadFrame(); !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("ReadFrame() error = %v, want ErrLimitExceeded", err)
	}
}

func TestDecoder_LargeBulkGrowsBuffer(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), 3*initialBufferSize+17)
	d := NewDecoder(bytes.NewReader(mustAppend(t, Bulk(payload))), DefaultLimits())
	f, err := d.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	if !bytes.Equal(f.(Bulk), payload) {
		t.Errorf("payload mismatch, len = %d", len(f.(Bulk)))
	}
}

func TestDecoder_ShrinksAfterLargeFrame(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), 4*maxRetainedBuffer)
	stream := append(mustAppend(t, Bulk(payload)), mustAppend(t, Simple("OK"))...)
	d := NewDecoder(bytes.NewReader(stream), DefaultLimits())

	f, err := d.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	if len(f.(Bulk)) != len(payload) {
		t.Fatalf("payload len = %d, want %d", len(f.(Bulk)), len(payload))
	}
	if got := cap(d.buf); got > maxRetainedBuffer {
		t.Errorf("buffer cap after large frame = %d, want <= %d", got, maxRetainedBuffer)
	}

	f, err = d.ReadFrame()
	if err != nil {
		t.Fatalf("second ReadFrame() error = %v", err)
	}
	if !Equal(f, Simple("OK")) {
		t.Errorf("second frame = %v, want +OK", f)
	}
}

type stuckReader struct{}

func (stuckReader) Read([]byte) (int, error) { return 0, nil }

func TestDecoder_NoProgress(t *testing.T) {
	d := NewDecoder(stuckReader{}, DefaultLimits())
	if _, err := d.ReadFrame(); !errors.Is(err, io.ErrNoProgress) {
		t.Fatalf("ReadFrame() error = %v, want io.ErrNoProgress", err)
	}
}

func TestDecoder_ReadError(t *testing.T) {
	boom := errors.New("boom")
	d := NewDecoder(iotest.ErrReader(boom), DefaultLimits())
	if _, err := d.ReadFrame(); !errors.Is(err, boom) {
		t.Fatalf("ReadFrame() error = %v, want boom", err)
	}
}

// ============================================================
// Interoperability with an independent RESP implementation
// ============================================================

func TestDecoder_InteropWithTidwallResp(t *testing.T) {
	tests := []struct {
		name  string
		value resp.Value
		want  Frame
	}{
		{"simple", resp.SimpleStringValue("OK"), Simple("OK")},
		{"error", resp.ErrorValue(errors.New("lock error")), Error("lock error")},
		{"integer", resp.IntegerValue(7), Integer(7)},
		{"bulk", resp.BytesValue([]byte("world")), Bulk("world")},
		{"null", resp.NullValue(), Null{}},
		{"request", resp.ArrayValue([]resp.Value{
			resp.StringValue("SET"),
			resp.StringValue("hello"),
			resp.StringValue("world"),
		}), Command("SET", "hello", "world")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wire, err := tt.value.MarshalRESP()
			if err != nil {
				t.Fatalf("MarshalRESP() error = %v", err)
			}
			got, err := NewDecoder(bytes.NewReader(wire), DefaultLimits()).ReadFrame()
			if err != nil {
				t.Fatalf("ReadFrame(%q) error = %v", wire, err)
			}
			if !Equal(got, tt.want) {
				t.Errorf("ReadFrame(%q) = %v, want %v", wire, got, tt.want)
			}

			if tt.want.Kind() == KindArray {
				return
			}
			ours := mustAppend(t, tt.want)
			if !bytes.Equal(ours, wire) {
				t.Errorf("Append(%v) = %q, tidwall/resp = %q", tt.want, ours, wire)
			}
		})
	}
}
