package stream_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/1ureka/genpkt/internal/stream"
)

func encodeAll(t *testing.T, f stream.Framer, frames []stream.Frame) []byte {
	t.Helper()
	var out []byte
	for _, fr := range frames {
		var err error
		out, err = f.Append(out, fr)
		if err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	return out
}

func sameFrames(t *testing.T, got, want []stream.Frame) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d frames, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Type != want[i].Type || !bytes.Equal(got[i].Payload, want[i].Payload) {
			t.Errorf("frame %d: got {%d %q}, want {%d %q}",
				i, got[i].Type, got[i].Payload, want[i].Type, want[i].Payload)
		}
	}
}

// TestDecoderFeedSplits feeds the same stream in chunks of every size from 1
// to the full length and expects identical frames each time.
func TestDecoderFeedSplits(t *testing.T) {
	f := stream.For[uint16, uint8]()
	want := []stream.Frame{
		{Type: 1, Payload: []byte("alpha")},
		{Type: 2, Payload: []byte{}},
		{Type: 3, Payload: bytes.Repeat([]byte("z"), 300)},
		{Type: 255, Payload: []byte("omega")},
	}
	data := encodeAll(t, f, want)

	for chunk := 1; chunk <= len(data); chunk++ {
		dec := stream.NewDecoder(f)
		var got []stream.Frame
		for off := 0; off < len(data); off += chunk {
			end := min(off+chunk, len(data))
			frames, err := dec.Feed(data[off:end])
			if err != nil {
				t.Fatalf("chunk %d: Feed failed: %v", chunk, err)
			}
			got = append(got, frames...)
		}
		sameFrames(t, got, want)
		if dec.Buffered() != 0 {
			t.Errorf("chunk %d: %d bytes left", chunk, dec.Buffered())
		}
	}
}

func TestDecoderKeepsPartialFrame(t *testing.T) {
	f := stream.For[uint8, uint8]()
	data := encodeAll(t, f, []stream.Frame{{Type: 1, Payload: []byte("abc")}, {Type: 2, Payload: []byte("def")}})

	dec := stream.NewDecoder(f)
	frames, err := dec.Feed(data[:7])
	if err != nil {
		t.Fatalf("Feed failed: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	if dec.Buffered() != 2 {
		t.Errorf("Buffered = %d, want 2", dec.Buffered())
	}

	_, ok, err := dec.Next()
	if ok || err != nil {
		t.Errorf("Next on partial frame: ok=%v err=%v", ok, err)
	}
}

// TestDecoderMaxPayload verifies the sanity bound trips on the header alone
// and that the decoder stays failed afterwards.
func TestDecoderMaxPayload(t *testing.T) {
	f := stream.For[uint32, uint8]()
	dec := stream.NewDecoder(f, stream.WithMaxPayload(16))

	ok, _ := f.Encode(stream.Frame{Type: 1, Payload: make([]byte, 16)})
	frames, err := dec.Feed(ok)
	if err != nil || len(frames) != 1 {
		t.Fatalf("frame at the limit rejected: %v", err)
	}

	big, _ := f.Encode(stream.Frame{Type: 1, Payload: make([]byte, 17)})
	_, err = dec.Feed(big[:f.HeaderLen()])
	if !errors.Is(err, stream.ErrFrameTooLarge) {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}

	_, _, err = dec.Next()
	if !errors.Is(err, stream.ErrFrameTooLarge) {
		t.Errorf("decoder recovered after failure: %v", err)
	}
}
