package protocol

import "fmt"

// Size is the payload length argument of NewHeader. It is a distinct type from
// Type so the two cannot be swapped at a call site, even when S and T match.
type Size[S Unsigned] struct{ n S }

// SizeOf wraps n as a Size.
func SizeOf[S Unsigned](n S) Size[S] { return Size[S]{n: n} }

// Value returns the wrapped length.
func (s Size[S]) Value() S { return s.n }

// Type is the type tag argument of NewHeader and NewPacket.
type Type[T Unsigned] struct{ t T }

// TypeOf wraps t as a Type.
func TypeOf[T Unsigned](t T) Type[T] { return Type[T]{t: t} }

// Value returns the wrapped tag.
func (t Type[T]) Value() T { return t.t }

// Buffer is the growable byte buffer the extract functions consume from.
// *bytes.Buffer satisfies it.
type Buffer interface {
	// Len returns the number of unread bytes.
	Len() int
	// Bytes returns the unread bytes without consuming them.
	Bytes() []byte
	// Next removes and returns the next n bytes.
	Next(n int) []byte
}

// Header is the fixed-width frame prefix:
//
//	[size: S, big-endian][type: T, big-endian]
type Header[S, T Unsigned] struct {
	size S
	typ  T
}

// NewHeader builds a header from an explicit size and type.
func NewHeader[S, T Unsigned](size Size[S], typ Type[T]) Header[S, T] {
	return Header[S, T]{size: size.n, typ: typ.t}
}

// Size returns the payload length carried by the header.
func (h Header[S, T]) Size() S { return h.size }

// Type returns the type tag carried by the header.
func (h Header[S, T]) Type() T { return h.typ }

// WithSize returns a copy of h with the size field replaced.
func (h Header[S, T]) WithSize(size Size[S]) Header[S, T] {
	h.size = size.n
	return h
}

// WithType returns a copy of h with the type field replaced.
func (h Header[S, T]) WithType(typ Type[T]) Header[S, T] {
	h.typ = typ.t
	return h
}

func (h Header[S, T]) String() string {
	return fmt.Sprintf("header(size=%d, type=%d)", h.size, h.typ)
}

// HasCompleteHeader reports whether data is long enough to hold a header.
func HasCompleteHeader[S, T Unsigned](data []byte) bool {
	return len(data) >= HeaderLen[S, T]()
}

// DecodeHeader reads the header at the front of data. data is not modified.
func DecodeHeader[S, T Unsigned](data []byte) (Header[S, T], error) {
	if !HasCompleteHeader[S, T](data) {
		return Header[S, T]{}, fmt.Errorf("%w: header needs %d bytes, have %d",
			ErrIncompleteData, HeaderLen[S, T](), len(data))
	}
	return Header[S, T]{
		size: getUint[S](data),
		typ:  getUint[T](data[byteWidth[S]():]),
	}, nil
}

// ExtractHeader decodes the header at the front of buf and removes its bytes.
// buf is left untouched when the header is incomplete.
func ExtractHeader[S, T Unsigned](buf Buffer) (Header[S, T], error) {
	h, err := DecodeHeader[S, T](buf.Bytes())
	if err != nil {
		return Header[S, T]{}, err
	}
	buf.Next(HeaderLen[S, T]())
	return h, nil
}

// EncodeHeader serializes h into a new HeaderLen-byte slice.
func EncodeHeader[S, T Unsigned](h Header[S, T]) []byte {
	return AppendHeader(make([]byte, 0, HeaderLen[S, T]()), h)
}

// AppendHeader appends the wire form of h to dst.
func AppendHeader[S, T Unsigned](dst []byte, h Header[S, T]) []byte {
	off := len(dst)
	dst = append(dst, make([]byte, HeaderLen[S, T]())...)
	putUint(dst[off:], h.size)
	putUint(dst[off+byteWidth[S]():], h.typ)
	return dst
}
