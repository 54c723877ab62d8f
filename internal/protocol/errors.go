package protocol

import "errors"

var (
	// ErrIncompleteData is returned by the decode and extract functions when
	// the buffer does not yet hold a complete header or packet. Callers should
	// wait for more bytes and retry.
	ErrIncompleteData = errors.New("protocol: incomplete data")

	// ErrPayloadTooLarge is returned when a payload is longer than the size
	// field can represent.
	ErrPayloadTooLarge = errors.New("protocol: payload too large")
)
