package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/1ureka/genpkt/internal/config"
	"github.com/1ureka/genpkt/internal/stream"
	"github.com/1ureka/genpkt/internal/transport"
)

func TestRouterDispatch(t *testing.T) {
	f := stream.For[uint8, uint8]()
	tr, _ := mockTransports(f)

	var got []string
	r := NewRouter()
	r.Handle(7, func(ctx context.Context, tr transport.Transport, f stream.Frame) {
		got = append(got, "first:"+string(f.Payload))
	})
	r.Handle(7, func(ctx context.Context, tr transport.Transport, f stream.Frame) {
		got = append(got, "second:"+string(f.Payload))
	})

	if !r.Dispatch(context.Background(), tr, stream.Frame{Type: 7, Payload: []byte("a")}) {
		t.Fatal("expected a handler for type 7")
	}
	if r.Dispatch(context.Background(), tr, stream.Frame{Type: 8, Payload: []byte("b")}) {
		t.Fatal("expected no handler for type 8")
	}
	if len(got) != 1 || got[0] != "second:a" {
		t.Fatalf("unexpected handler calls: %v", got)
	}
}

func TestRunHostAnswersPing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, host := mockTransports(stream.For[uint16, uint8]())
	defer client.Close()

	done := make(chan error, 1)
	go func() { done <- RunHost(ctx, host) }()

	pongs := make(chan stream.Frame, 4)
	client.OnFrame(func(f stream.Frame, err error) {
		if err == nil {
			pongs <- f
		}
	})

	for _, payload := range []string{"one", "two"} {
		if err := client.Send(ctx, stream.Frame{Type: TypePing, Payload: []byte(payload)}); err != nil {
			t.Fatal(err)
		}
		select {
		case f := <-pongs:
			if f.Type != TypePong || string(f.Payload) != payload {
				t.Fatalf("got type %d %q, want pong %q", f.Type, f.Payload, payload)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for pong")
		}
	}

	client.Close()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("RunHost: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("RunHost did not return after close")
	}
}

func TestRunReportsReceiveError(t *testing.T) {
	client, host := mockTransports(stream.For[uint8, uint8]())
	defer client.Close()

	done := make(chan error, 1)
	go func() { done <- RunHost(context.Background(), host) }()

	// Let Run register its handler before failing the link.
	deadline := time.Now().Add(5 * time.Second)
	for {
		host.mu.Lock()
		ready := host.handler != nil
		host.mu.Unlock()
		if ready || time.Now().After(deadline) {
			break
		}
		time.Sleep(time.Millisecond)
	}

	host.fail(stream.ErrFrameTooLarge)

	select {
	case err := <-done:
		if !errors.Is(err, stream.ErrFrameTooLarge) {
			t.Fatalf("expected ErrFrameTooLarge, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("RunHost did not return")
	}
}

func TestRunDrainsQueuedFrames(t *testing.T) {
	f := stream.For[uint8, uint8]()
	client, host := mockTransports(f)

	// Frames sent before Run starts are pending on the host side.
	for i := 0; i < 5; i++ {
		if err := client.Send(context.Background(), stream.Frame{Type: 9, Payload: []byte{byte(i)}}); err != nil {
			t.Fatal(err)
		}
	}
	client.Close()

	var seen []byte
	r := NewRouter()
	r.Handle(9, func(ctx context.Context, tr transport.Transport, f stream.Frame) {
		seen = append(seen, f.Payload...)
	})

	if err := Run(context.Background(), host, r); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(seen, []byte{0, 1, 2, 3, 4}) {
		t.Fatalf("handled %v, want all five frames in order", seen)
	}
}

func TestRunClientWaitsForPongs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, host := mockTransports(stream.For[uint16, uint8]())
	defer client.Close()
	go RunHost(ctx, host)

	in := strings.NewReader("alpha\nbeta\ngamma\n")
	if err := RunClient(ctx, client, in, TypePing); err != nil {
		t.Fatalf("RunClient: %v", err)
	}
}

func TestRunClientSkipsOversizedLines(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, host := mockTransports(stream.For[uint8, uint8]())
	defer client.Close()

	var texts []string
	r := NewRouter()
	r.Handle(TypeText, func(ctx context.Context, tr transport.Transport, f stream.Frame) {
		texts = append(texts, string(f.Payload))
	})
	hostDone := make(chan error, 1)
	go func() { hostDone <- Run(ctx, host, r) }()

	in := strings.NewReader(strings.Repeat("x", 256) + "\nfits\n")
	if err := RunClient(ctx, client, in, TypeText); err != nil {
		t.Fatalf("RunClient: %v", err)
	}

	client.Close()
	if err := <-hostDone; err != nil {
		t.Fatal(err)
	}
	if len(texts) != 1 || texts[0] != "fits" {
		t.Fatalf("host received %q, want only the short line", texts)
	}
}

func TestRunClientStopsWhenLinkCloses(t *testing.T) {
	client, _ := mockTransports(stream.For[uint8, uint8]())

	pr, pw := io.Pipe()
	defer pw.Close()

	done := make(chan error, 1)
	go func() { done <- RunClient(context.Background(), client, pr, TypeText) }()

	client.Close()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("RunClient: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("RunClient did not return after the link closed")
	}
}

func TestServeAndDial(t *testing.T) {
	tests := []struct {
		name  string
		kind  config.Kind
		serve func(context.Context, net.Listener, stream.Framer, ...stream.Option) error
		addr  func(net.Addr) string
	}{
		{"tcp", config.KindTCP, ServeTCP, func(a net.Addr) string { return a.String() }},
		{"ws", config.KindWS, ServeWS, func(a net.Addr) string { return "ws://" + a.String() + "/frames" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			f := stream.For[uint32, uint16]()
			ln, err := net.Listen("tcp", "127.0.0.1:0")
			if err != nil {
				t.Fatal(err)
			}

			served := make(chan error, 1)
			go func() { served <- tt.serve(ctx, ln, f) }()

			cfg := config.Default()
			cfg.Role = config.RoleClient
			cfg.Transport = tt.kind
			cfg.Addr = tt.addr(ln.Addr())

			tr, err := Dial(ctx, cfg, f)
			if err != nil {
				t.Fatal(err)
			}
			defer tr.Close()

			in := strings.NewReader("first\nsecond\n" + strings.Repeat("z", 70000) + "\n")
			if err := RunClient(ctx, tr, in, TypePing); err != nil {
				t.Fatalf("RunClient: %v", err)
			}

			cancel()
			select {
			case err := <-served:
				if err != nil {
					t.Fatalf("serve: %v", err)
				}
			case <-time.After(5 * time.Second):
				t.Fatal("server did not stop")
			}
		})
	}
}

func TestDialUnsupportedTransport(t *testing.T) {
	cfg := config.Default()
	cfg.Transport = "carrier-pigeon"
	if _, err := Dial(context.Background(), cfg, stream.For[uint8, uint8]()); err == nil {
		t.Fatal("expected an error")
	}
}

func TestPackAndDump(t *testing.T) {
	f := stream.For[uint16, uint8]()
	path := filepath.Join(t.TempDir(), "frames.bin")

	n, err := Pack(path, f, TypeText, strings.NewReader("hello\n\nworld\n"))
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("packed %d frames, want 3", n)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{
		0x00, 0x05, 0x01, 'h', 'e', 'l', 'l', 'o',
		0x00, 0x00, 0x01,
		0x00, 0x05, 0x01, 'w', 'o', 'r', 'l', 'd',
	}
	if !bytes.Equal(data, want) {
		t.Fatalf("file = % X\nwant   % X", data, want)
	}

	var out bytes.Buffer
	count, err := Dump(path, f, &out)
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Fatalf("dumped %d packets, want 3", count)
	}
	for _, s := range []string{`"hello"`, `"world"`, "1 (text)", "3 packet(s), 19 bytes, layout 16/8"} {
		if !strings.Contains(out.String(), s) {
			t.Errorf("dump output missing %q:\n%s", s, out.String())
		}
	}
}

func TestDumpTruncatedFile(t *testing.T) {
	f := stream.For[uint8, uint8]()
	path := filepath.Join(t.TempDir(), "frames.bin")
	data := []byte{0x02, 0x02, 'h', 'i', 0x05, 0x01, 'a'}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	count, err := Dump(path, f, &out)
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected io.ErrUnexpectedEOF, got %v", err)
	}
	if count != 1 {
		t.Fatalf("dumped %d packets, want 1", count)
	}
	if !strings.Contains(out.String(), "2 (ping)") {
		t.Fatalf("complete packet missing from output:\n%s", out.String())
	}
}

func TestPreview(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want string
	}{
		{"text", []byte("hi there"), `"hi there"`},
		{"empty", []byte{}, `""`},
		{"binary", []byte{0x00, 0xFF, 0x10}, "00 FF 10"},
		{"long text", []byte(strings.Repeat("a", 40)), `"` + strings.Repeat("a", 32) + `"…`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := preview(tt.in); got != tt.want {
				t.Fatalf("preview = %s, want %s", got, tt.want)
			}
		})
	}
}
