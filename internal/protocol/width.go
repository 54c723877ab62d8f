package protocol

import "encoding/binary"

// Unsigned is the closed set of integer types a header field may be declared
// with. Only these three widths have a defined network byte order.
type Unsigned interface {
	uint8 | uint16 | uint32
}

// byteWidth returns the on-wire width of V in bytes.
func byteWidth[V Unsigned]() int {
	var v V
	switch any(v).(type) {
	case uint8:
		return 1
	case uint16:
		return 2
	default:
		return 4
	}
}

// maxValue returns the largest value representable by V.
func maxValue[V Unsigned]() uint64 {
	return uint64(^V(0))
}

// putUint writes v into b in network byte order. b must hold byteWidth[V]() bytes.
func putUint[V Unsigned](b []byte, v V) {
	switch x := any(v).(type) {
	case uint8:
		b[0] = x
	case uint16:
		binary.BigEndian.PutUint16(b, x)
	case uint32:
		binary.BigEndian.PutUint32(b, x)
	}
}

// getUint reads a network byte order V from the front of b.
func getUint[V Unsigned](b []byte) V {
	var v V
	switch any(v).(type) {
	case uint8:
		return V(b[0])
	case uint16:
		return V(binary.BigEndian.Uint16(b))
	default:
		return V(binary.BigEndian.Uint32(b))
	}
}

// MaxPayloadSize returns the largest payload length a size field of type S can carry.
func MaxPayloadSize[S Unsigned]() uint64 {
	return maxValue[S]()
}

// HeaderLen returns the fixed header width for a (S, T) layout.
func HeaderLen[S, T Unsigned]() int {
	return byteWidth[S]() + byteWidth[T]()
}

// Bits returns the width of V in bits (8, 16 or 32).
func Bits[V Unsigned]() int {
	return byteWidth[V]() * 8
}
