package stream

import (
	"fmt"
	"io"
)

// Writer writes frames to a byte stream. Each frame is issued as a single
// Write call. It is not safe for concurrent use.
type Writer struct {
	w      io.Writer
	framer Framer
	buf    []byte
}

// NewWriter returns a Writer encoding frames onto w with the given layout.
func NewWriter(w io.Writer, f Framer) *Writer {
	return &Writer{w: w, framer: f}
}

// WriteFrame encodes f and writes it. It returns the number of bytes written.
func (w *Writer) WriteFrame(f Frame) (int, error) {
	buf, err := w.framer.Append(w.buf[:0], f)
	if err != nil {
		return 0, err
	}
	w.buf = buf

	n, err := w.w.Write(buf)
	if err != nil {
		return n, fmt.Errorf("stream: write frame: %w", err)
	}
	return n, nil
}
