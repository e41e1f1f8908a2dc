package benchmark

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/yndnr/minikv/pkg/frame"
)

// encodeSet returns the wire form of SET key value.
func encodeSet(key string, value []byte) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "*3\r\n$3\r\nSET\r\n$%d\r\n%s\r\n$%d\r\n", len(key), key, len(value))
	buf.Write(value)
	buf.WriteString("\r\n")
	return buf.Bytes()
}

// BenchmarkDecodeSet benchmarks decoding SET requests of various sizes.
func BenchmarkDecodeSet(b *testing.B) {
	for _, size := range ValueSizes {
		b.Run(fmt.Sprintf("value_%d", size), func(b *testing.B) {
			wire := encodeSet("bench-key", bytes.Repeat([]byte("x"), size))

			b.SetBytes(int64(len(wire)))
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				d := frame.NewDecoder(bytes.NewReader(wire), frame.DefaultLimits())
				if _, err := d.ReadFrame(); err != nil {
					b.Fatalf("ReadFrame failed: %v", err)
				}
			}
		})
	}
}

// BenchmarkDecodePipelined benchmarks a stream of back-to-back requests.
func BenchmarkDecodePipelined(b *testing.B) {
	const depth = 100
	var stream []byte
	for i := 0; i < depth; i++ {
		stream = append(stream, encodeSet(fmt.Sprintf("key-%d", i), []byte("value"))...)
	}

	b.SetBytes(int64(len(stream)))
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		d := frame.NewDecoder(bytes.NewReader(stream), frame.DefaultLimits())
		for j := 0; j < depth; j++ {
			if _, err := d.ReadFrame(); err != nil {
				b.Fatalf("ReadFrame failed: %v", err)
			}
		}
	}
}

// BenchmarkCheck benchmarks frame validation without building frames.
func BenchmarkCheck(b *testing.B) {
	wire := encodeSet("bench-key", bytes.Repeat([]byte("x"), 1024))
	lim := frame.DefaultLimits()

	b.SetBytes(int64(len(wire)))
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if _, err := frame.Check(wire, lim); err != nil {
			b.Fatalf("Check failed: %v", err)
		}
	}
}

// BenchmarkAppendBulk benchmarks reply encoding.
func BenchmarkAppendBulk(b *testing.B) {
	for _, size := range ValueSizes {
		b.Run(fmt.Sprintf("value_%d", size), func(b *testing.B) {
			f := frame.Bulk(bytes.Repeat([]byte("x"), size))
			buf := make([]byte, 0, size+32)

			b.SetBytes(int64(size))
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				var err error
				if buf, err = frame.Append(buf[:0], f); err != nil {
					b.Fatalf("Append failed: %v", err)
				}
			}
		})
	}
}
