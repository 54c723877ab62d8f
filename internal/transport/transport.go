// Package transport carries frames over stream-oriented links. Every
// implementation keeps a per-link stream.Decoder (or stream.Reader) so frames
// may be split across, or packed into, the underlying reads and messages.
package transport

import (
	"context"
	"errors"

	"github.com/1ureka/genpkt/internal/stream"
)

// ErrClosed is returned by Send once the transport has shut down.
var ErrClosed = errors.New("transport: closed")

// Handler receives every inbound frame. A non-nil error reports a fatal
// receive failure (I/O error, corrupt or oversized frame); the transport
// closes right after delivering it.
type Handler func(stream.Frame, error)

// Transport is a bidirectional frame link.
type Transport interface {
	// Send encodes and queues or writes one frame.
	Send(ctx context.Context, f stream.Frame) error
	// OnFrame registers the inbound handler and starts receiving. Frames
	// arriving before the first call are buffered by the link.
	OnFrame(fn Handler)
	// Done is closed when the transport shuts down.
	Done() <-chan struct{}
	// Close shuts the transport down. It is safe to call more than once.
	Close() error
}

// frameSize is the encoded length of f under framer.
func frameSize(framer stream.Framer, f stream.Frame) int {
	return framer.HeaderLen() + len(f.Payload)
}
