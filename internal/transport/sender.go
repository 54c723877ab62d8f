package transport

import (
	"context"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/genpkt/internal/util"
)

const (
	highWaterMark  = 256 * 1024 // pause sending when bufferedAmount exceeds this
	lowWaterMark   = 64 * 1024  // resume sending when bufferedAmount drops below this
	sendBufferSize = 64         // outgoing frame channel capacity
	maxMessageSize = 16 * 1024  // largest DataChannel message the sender emits
)

// sender is a goroutine-based writer that serializes all writes to a single
// DataChannel, adding open-gate and backpressure control. Queued frames are
// concatenated into one byte stream and cut into messages of at most
// maxMessageSize bytes; the receiver's Decoder restores frame boundaries.
type sender struct {
	inbox       chan []byte
	drainSignal chan struct{}
}

// newSender creates a sender, wires the backpressure callbacks on dc, and
// starts the background loop. The loop exits when ctx is cancelled; a failed
// DataChannel write calls cancel.
func newSender(ctx context.Context, cancel context.CancelFunc, dc *webrtc.DataChannel, openSignal <-chan struct{}) *sender {
	s := &sender{
		inbox:       make(chan []byte, sendBufferSize),
		drainSignal: make(chan struct{}, 1),
	}

	dc.SetBufferedAmountLowThreshold(uint64(lowWaterMark))
	dc.OnBufferedAmountLow(func() {
		select {
		case s.drainSignal <- struct{}{}:
		default:
		}
	})

	go s.loop(ctx, cancel, dc, openSignal)

	return s
}

// loop is the single-writer goroutine. It waits for the DataChannel to open,
// then drains the inbox with backpressure awareness.
func (s *sender) loop(ctx context.Context, cancel context.CancelFunc, dc *webrtc.DataChannel, openSignal <-chan struct{}) {
	// Phase 1: wait for DC to be open.
	select {
	case <-openSignal:
	case <-ctx.Done():
		return
	}

	// Phase 2: batch queued frames and send them with backpressure.
	for {
		select {
		case data := <-s.inbox:
			batch := s.collect(data)

			for _, msg := range chunks(batch, maxMessageSize) {
				if dc.BufferedAmount() > uint64(highWaterMark) {
					select {
					case <-s.drainSignal:
					case <-ctx.Done():
						return
					}
				}
				if err := dc.Send(msg); err != nil {
					util.LogError("failed to send DataChannel message (%d bytes): %v", len(msg), err)
					cancel()
					return
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

// collect appends already-queued frames to batch without blocking, stopping
// once a full message is available.
func (s *sender) collect(batch []byte) []byte {
	for len(batch) < maxMessageSize {
		select {
		case data := <-s.inbox:
			batch = append(batch, data...)
		default:
			return batch
		}
	}
	return batch
}

// send enqueues an encoded frame; the sender takes ownership of data. It
// blocks while the queue is full and fails with ErrClosed once life is done.
func (s *sender) send(ctx, life context.Context, data []byte) error {
	select {
	case <-life.Done():
		return ErrClosed
	default:
	}

	select {
	case s.inbox <- data:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-life.Done():
		return ErrClosed
	}
}

// chunks splits b into consecutive slices of at most size bytes.
func chunks(b []byte, size int) [][]byte {
	var out [][]byte
	for len(b) > size {
		out = append(out, b[:size])
		b = b[size:]
	}
	if len(b) > 0 {
		out = append(out, b)
	}
	return out
}
