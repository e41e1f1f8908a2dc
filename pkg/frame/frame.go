package frame

import (
	"bytes"
	"fmt"
	"strconv"
)

// Kind identifies the variant of a Frame.
type Kind uint8

const (
	KindSimple Kind = iota
	KindError
	KindInteger
	KindBulk
	KindNull
	KindArray

	numKinds
)

// Kinds returns every frame kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, 0, numKinds)
	for k := Kind(0); k < numKinds; k++ {
		out = append(out, k)
	}
	return out
}

func (k Kind) String() string {
	switch k {
	case KindSimple:
		return "simple"
	case KindError:
		return "error"
	case KindInteger:
		return "integer"
	case KindBulk:
		return "bulk"
	case KindNull:
		return "null"
	case KindArray:
		return "array"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Frame is a single protocol message. The set of implementations is closed:
// Simple, Error, Integer, Bulk, Null and Array.
type Frame interface {
	Kind() Kind
	fmt.Stringer

	sealed()
}

// Simple is a short status reply such as "OK". It must not contain CR or LF.
type Simple string

// Error is an error reply. It must not contain CR or LF.
type Error string

// Integer is a non-negative integer reply.
type Integer uint64

// Bulk is a length-prefixed binary payload.
type Bulk []byte

// Null is the absent value, encoded as a bulk of length -1.
type Null struct{}

// Array is an ordered list of frames. Requests arrive as arrays.
type Array []Frame

func (Simple) Kind() Kind  { return KindSimple }
func (Error) Kind() Kind   { return KindError }
func (Integer) Kind() Kind { return KindInteger }
func (Bulk) Kind() Kind    { return KindBulk }
func (Null) Kind() Kind    { return KindNull }
func (Array) Kind() Kind   { return KindArray }

func (Simple) sealed()  {}
func (Error) sealed()   {}
func (Integer) sealed() {}
func (Bulk) sealed()    {}
func (Null) sealed()    {}
func (Array) sealed()   {}

func (s Simple) String() string  { return "+" + string(s) }
func (e Error) String() string   { return "-" + string(e) }
func (n Integer) String() string { return ":" + strconv.FormatUint(uint64(n), 10) }
func (b Bulk) String() string    { return fmt.Sprintf("$%q", []byte(b)) }
func (Null) String() string      { return "$-1" }

func (a Array) String() string {
	var sb bytes.Buffer
	sb.WriteString("*[")
	for i, f := range a {
		if i > 0 {
			sb.WriteString(" ")
		}
		if f == nil {
			sb.WriteString("<nil>")
			continue
		}
		sb.WriteString(f.String())
	}
	sb.WriteString("]")
	return sb.String()
}

// Equal reports whether two frames are the same kind and carry the same
// payload. A nil Bulk equals an empty Bulk.
func Equal(a, b Frame) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch av := a.(type) {
	case Simple:
		return av == b.(Simple)
	case Error:
		return av == b.(Error)
	case Integer:
		return av == b.(Integer)
	case Bulk:
		return bytes.Equal(av, b.(Bulk))
	case Null:
		return true
	case Array:
		bv := b.(Array)
		if len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Command builds a request array of bulk strings, the shape clients use
// to send commands.
func Command(args ...string) Array {
	out := make(Array, 0, len(args))
	for _, a := range args {
		out = append(out, Bulk(a))
	}
	return out
}
