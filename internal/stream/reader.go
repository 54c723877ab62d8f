package stream

import (
	"errors"
	"fmt"
	"io"
)

// Reader reads frames from a byte stream such as a socket, pipe or file.
type Reader struct {
	r     io.Reader
	dec   *Decoder
	chunk []byte
}

// NewReader returns a Reader decoding r with the given layout.
func NewReader(r io.Reader, f Framer, opts ...Option) *Reader {
	dec := NewDecoder(f, opts...)
	return &Reader{
		r:     r,
		dec:   dec,
		chunk: make([]byte, dec.opts.chunkSize),
	}
}

// ReadFrame blocks until a complete frame is available. It returns io.EOF
// when the stream ends on a frame boundary and io.ErrUnexpectedEOF when it
// ends inside a frame.
func (r *Reader) ReadFrame() (Frame, error) {
	for {
		f, ok, err := r.dec.Next()
		if err != nil {
			return Frame{}, err
		}
		if ok {
			return f, nil
		}

		n, err := r.r.Read(r.chunk)
		if n > 0 {
			r.dec.Write(r.chunk[:n])
		}
		if err == nil {
			continue
		}
		if !errors.Is(err, io.EOF) {
			return Frame{}, err
		}
		// Drain what the final read delivered before reporting EOF.
		if f, ok, derr := r.dec.Next(); derr != nil {
			return Frame{}, derr
		} else if ok {
			return f, nil
		}
		if r.dec.Buffered() > 0 {
			return Frame{}, fmt.Errorf("stream: %d trailing bytes: %w", r.dec.Buffered(), io.ErrUnexpectedEOF)
		}
		return Frame{}, io.EOF
	}
}

// Buffered returns the number of bytes read but not yet returned as frames.
func (r *Reader) Buffered() int {
	return r.dec.Buffered()
}
