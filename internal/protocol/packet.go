// Package protocol implements the length-prefixed packet format: a fixed
// header carrying the payload length and a caller-defined type tag, followed
// by the raw payload.
//
// The widths of the size field (S) and type field (T) are chosen
// independently from uint8, uint16 and uint32. Both fields are big-endian on
// the wire. The package performs no I/O; it works on byte slices and on a
// Buffer from which complete packets can be drained one at a time.
package protocol

import (
	"bytes"
	"fmt"
)

// Packet is one framed message. Its header size always equals len(payload).
type Packet[S, T Unsigned] struct {
	header  Header[S, T]
	payload []byte
}

// Common layouts.
type (
	Packet32   = Packet[uint32, uint32]
	Packet16x8 = Packet[uint16, uint8]
	Packet8x8  = Packet[uint8, uint8]
)

// NewPacket builds a packet of the given type. The payload is copied and the
// header size is derived from its length.
func NewPacket[S, T Unsigned](typ Type[T], payload []byte) (*Packet[S, T], error) {
	if err := checkPayload[S](payload); err != nil {
		return nil, err
	}
	return &Packet[S, T]{
		header:  NewHeader(SizeOf(S(len(payload))), typ),
		payload: bytes.Clone(nonNil(payload)),
	}, nil
}

// Header returns the packet header.
func (p *Packet[S, T]) Header() Header[S, T] { return p.header }

// Type returns the type tag.
func (p *Packet[S, T]) Type() T { return p.header.typ }

// Payload returns the payload. The slice is owned by the packet.
func (p *Packet[S, T]) Payload() []byte { return p.payload }

// SetType replaces the type tag.
func (p *Packet[S, T]) SetType(typ Type[T]) {
	p.header = p.header.WithType(typ)
}

// SetPayload replaces the payload and updates the header size. On error the
// packet is left unchanged.
func (p *Packet[S, T]) SetPayload(payload []byte) error {
	if err := checkPayload[S](payload); err != nil {
		return err
	}
	p.payload = bytes.Clone(nonNil(payload))
	p.header = p.header.WithSize(SizeOf(S(len(payload))))
	return nil
}

// DataSize returns the exact number of bytes Encode produces for p.
func (p *Packet[S, T]) DataSize() int {
	return HeaderLen[S, T]() + len(p.payload)
}

// Equal reports whether p and o carry the same header and payload.
func (p *Packet[S, T]) Equal(o *Packet[S, T]) bool {
	if p == nil || o == nil {
		return p == o
	}
	return p.header == o.header && bytes.Equal(p.payload, o.payload)
}

func (p *Packet[S, T]) String() string {
	return fmt.Sprintf("packet(type=%d, size=%d)", p.header.typ, p.header.size)
}

func checkPayload[S Unsigned](payload []byte) error {
	if uint64(len(payload)) > MaxPayloadSize[S]() {
		return fmt.Errorf("%w: %d-bit size field holds at most %d bytes, payload is %d",
			ErrPayloadTooLarge, Bits[S](), MaxPayloadSize[S](), len(payload))
	}
	return nil
}

// nonNil keeps empty payloads as empty slices so decoded and constructed
// packets compare alike.
func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
