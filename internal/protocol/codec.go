package protocol

import "fmt"

// HasCompletePacket reports whether data holds a complete header and at
// least as many payload bytes as the header announces. data is not modified.
func HasCompletePacket[S, T Unsigned](data []byte) bool {
	h, err := DecodeHeader[S, T](data)
	if err != nil {
		return false
	}
	return uint64(len(data)-HeaderLen[S, T]()) >= uint64(h.size)
}

// Decode copies the packet at the front of data. data is not modified and
// any bytes after the packet are ignored.
func Decode[S, T Unsigned](data []byte) (*Packet[S, T], error) {
	if !HasCompletePacket[S, T](data) {
		return nil, incomplete[S, T](data)
	}
	h, _ := DecodeHeader[S, T](data)
	hl := HeaderLen[S, T]()
	payload := make([]byte, int(h.size))
	copy(payload, data[hl:])
	return &Packet[S, T]{header: h, payload: payload}, nil
}

// Extract decodes the packet at the front of buf and removes exactly its
// bytes, leaving any following data for the next call. buf is left untouched
// when the packet is incomplete.
//
// Draining a stream buffer:
//
//	for protocol.HasCompletePacket[S, T](buf.Bytes()) {
//		pkt, _ := protocol.Extract[S, T](buf)
//		...
//	}
func Extract[S, T Unsigned](buf Buffer) (*Packet[S, T], error) {
	pkt, err := Decode[S, T](buf.Bytes())
	if err != nil {
		return nil, err
	}
	buf.Next(pkt.DataSize())
	return pkt, nil
}

// Encode serializes pkt as header followed by payload.
func Encode[S, T Unsigned](pkt *Packet[S, T]) []byte {
	return AppendPacket(make([]byte, 0, pkt.DataSize()), pkt)
}

// AppendPacket appends the wire form of pkt to dst.
func AppendPacket[S, T Unsigned](dst []byte, pkt *Packet[S, T]) []byte {
	dst = AppendHeader(dst, pkt.header)
	return append(dst, pkt.payload...)
}

func incomplete[S, T Unsigned](data []byte) error {
	h, err := DecodeHeader[S, T](data)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: packet needs %d bytes, have %d",
		ErrIncompleteData, HeaderLen[S, T]()+int(h.size), len(data))
}
