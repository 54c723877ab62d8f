// Package stream adapts the generic packet codec to byte streams whose field
// widths are picked at configuration time. A Framer hides the (S, T) type
// parameters behind a widened Frame; Decoder, Reader and Writer move frames
// across buffers, readers and writers.
package stream

import (
	"errors"
	"fmt"

	"github.com/1ureka/genpkt/internal/protocol"
)

var (
	ErrUnsupportedWidth = errors.New("stream: unsupported field width")
	ErrTypeOutOfRange   = errors.New("stream: type tag out of range")
	ErrFrameTooLarge    = errors.New("stream: frame exceeds payload limit")
)

// Frame is a decoded packet with its type widened to uint32.
type Frame struct {
	Type    uint32
	Payload []byte
}

// Framer encodes and decodes frames for one fixed header layout.
type Framer interface {
	SizeBits() int
	TypeBits() int
	HeaderLen() int
	MaxPayloadSize() uint64
	MaxType() uint32

	// HasCompletePacket reports whether data starts with a complete packet.
	HasCompletePacket(data []byte) bool
	// PeekSize returns the payload length announced by the header at the
	// front of data, if the header is complete.
	PeekSize(data []byte) (uint64, bool)
	// Decode copies the frame at the front of data.
	Decode(data []byte) (Frame, error)
	// Extract decodes the frame at the front of buf and removes its bytes.
	Extract(buf protocol.Buffer) (Frame, error)
	// Encode returns the wire form of f.
	Encode(f Frame) ([]byte, error)
	// Append appends the wire form of f to dst.
	Append(dst []byte, f Frame) ([]byte, error)
}

// For returns the Framer of a layout known at compile time.
func For[S, T protocol.Unsigned]() Framer {
	return framer[S, T]{}
}

// NewFramer returns the Framer for a size field of sizeBits and a type field
// of typeBits. Each must be 8, 16 or 32.
func NewFramer(sizeBits, typeBits int) (Framer, error) {
	switch sizeBits {
	case 8:
		return withType[uint8](typeBits)
	case 16:
		return withType[uint16](typeBits)
	case 32:
		return withType[uint32](typeBits)
	}
	return nil, fmt.Errorf("%w: size field of %d bits", ErrUnsupportedWidth, sizeBits)
}

func withType[S protocol.Unsigned](typeBits int) (Framer, error) {
	switch typeBits {
	case 8:
		return framer[S, uint8]{}, nil
	case 16:
		return framer[S, uint16]{}, nil
	case 32:
		return framer[S, uint32]{}, nil
	}
	return nil, fmt.Errorf("%w: type field of %d bits", ErrUnsupportedWidth, typeBits)
}

type framer[S, T protocol.Unsigned] struct{}

func (framer[S, T]) SizeBits() int          { return protocol.Bits[S]() }
func (framer[S, T]) TypeBits() int          { return protocol.Bits[T]() }
func (framer[S, T]) HeaderLen() int         { return protocol.HeaderLen[S, T]() }
func (framer[S, T]) MaxPayloadSize() uint64 { return protocol.MaxPayloadSize[S]() }
func (framer[S, T]) MaxType() uint32        { return uint32(^T(0)) }

func (framer[S, T]) HasCompletePacket(data []byte) bool {
	return protocol.HasCompletePacket[S, T](data)
}

func (framer[S, T]) PeekSize(data []byte) (uint64, bool) {
	h, err := protocol.DecodeHeader[S, T](data)
	if err != nil {
		return 0, false
	}
	return uint64(h.Size()), true
}

func (framer[S, T]) Decode(data []byte) (Frame, error) {
	pkt, err := protocol.Decode[S, T](data)
	if err != nil {
		return Frame{}, err
	}
	return widen(pkt), nil
}

func (framer[S, T]) Extract(buf protocol.Buffer) (Frame, error) {
	pkt, err := protocol.Extract[S, T](buf)
	if err != nil {
		return Frame{}, err
	}
	return widen(pkt), nil
}

func (f framer[S, T]) Encode(fr Frame) ([]byte, error) {
	pkt, err := f.packet(fr)
	if err != nil {
		return nil, err
	}
	return protocol.Encode(pkt), nil
}

func (f framer[S, T]) Append(dst []byte, fr Frame) ([]byte, error) {
	pkt, err := f.packet(fr)
	if err != nil {
		return dst, err
	}
	return protocol.AppendPacket(dst, pkt), nil
}

func (f framer[S, T]) packet(fr Frame) (*protocol.Packet[S, T], error) {
	if fr.Type > f.MaxType() {
		return nil, fmt.Errorf("%w: %d does not fit a %d-bit type field",
			ErrTypeOutOfRange, fr.Type, f.TypeBits())
	}
	return protocol.NewPacket[S](protocol.TypeOf(T(fr.Type)), fr.Payload)
}

func widen[S, T protocol.Unsigned](pkt *protocol.Packet[S, T]) Frame {
	return Frame{Type: uint32(pkt.Type()), Payload: pkt.Payload()}
}
