package stream

import (
	"bytes"
	"fmt"
)

// Option configures a Decoder or Reader.
type Option func(*options)

type options struct {
	maxPayload uint64
	chunkSize  int
}

const defaultChunkSize = 32 * 1024

// WithMaxPayload rejects frames announcing more than n payload bytes, before
// they are buffered. Zero keeps the size field's own maximum as the only bound.
func WithMaxPayload(n uint64) Option {
	return func(o *options) { o.maxPayload = n }
}

// WithChunkSize sets how many bytes a Reader requests per Read call.
func WithChunkSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.chunkSize = n
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{chunkSize: defaultChunkSize}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Decoder accumulates stream bytes and drains complete frames from them.
// It is not safe for concurrent use; give each connection its own Decoder.
type Decoder struct {
	framer Framer
	opts   options
	buf    bytes.Buffer
	err    error
}

// NewDecoder returns an empty Decoder for the given layout.
func NewDecoder(f Framer, opts ...Option) *Decoder {
	return &Decoder{framer: f, opts: buildOptions(opts)}
}

// Write appends p to the pending bytes. It never fails.
func (d *Decoder) Write(p []byte) (int, error) {
	return d.buf.Write(p)
}

// Next removes and returns the next complete frame. ok is false when the
// pending bytes do not yet hold one. Once Next has returned an error the
// stream is unusable and every later call returns the same error.
func (d *Decoder) Next() (f Frame, ok bool, err error) {
	if d.err != nil {
		return Frame{}, false, d.err
	}
	if limit := d.opts.maxPayload; limit > 0 {
		if size, peeked := d.framer.PeekSize(d.buf.Bytes()); peeked && size > limit {
			d.err = fmt.Errorf("%w: header announces %d bytes, limit is %d", ErrFrameTooLarge, size, limit)
			return Frame{}, false, d.err
		}
	}
	if !d.framer.HasCompletePacket(d.buf.Bytes()) {
		return Frame{}, false, nil
	}
	f, err = d.framer.Extract(&d.buf)
	if err != nil {
		d.err = err
		return Frame{}, false, err
	}
	return f, true, nil
}

// Feed appends p and drains every frame that is now complete. Frames drained
// before an error are returned alongside it.
func (d *Decoder) Feed(p []byte) ([]Frame, error) {
	d.buf.Write(p)
	var frames []Frame
	for {
		f, ok, err := d.Next()
		if err != nil {
			return frames, err
		}
		if !ok {
			return frames, nil
		}
		frames = append(frames, f)
	}
}

// Buffered returns the number of pending bytes not yet returned as frames.
func (d *Decoder) Buffered() int {
	return d.buf.Len()
}

// Framer returns the layout the Decoder decodes.
func (d *Decoder) Framer() Framer {
	return d.framer
}
