package app

import (
	"context"
	"sync"

	"github.com/1ureka/genpkt/internal/stream"
	"github.com/1ureka/genpkt/internal/transport"
)

// Compile-time interface check.
var _ transport.Transport = (*mockTransport)(nil)

// mockTransport implements transport.Transport for in-process testing.
// Two linked mockTransport instances simulate a bidirectional link: frames
// sent by one side are validated with the framer and handed to the other
// side's handler, in order.
type mockTransport struct {
	framer stream.Framer

	mu      sync.Mutex
	handler transport.Handler
	pending []stream.Frame
	peer    *mockTransport

	done chan struct{}
	once sync.Once
}

// mockTransports creates a linked pair of mock transports.
func mockTransports(f stream.Framer) (client, host *mockTransport) {
	client = &mockTransport{framer: f, done: make(chan struct{})}
	host = &mockTransport{framer: f, done: make(chan struct{})}
	client.peer = host
	host.peer = client
	return client, host
}

// Send validates f and delivers it to the peer.
func (m *mockTransport) Send(ctx context.Context, f stream.Frame) error {
	select {
	case <-m.done:
		return transport.ErrClosed
	default:
	}
	if _, err := m.framer.Encode(f); err != nil {
		return err
	}
	m.peer.deliver(f)
	return nil
}

func (m *mockTransport) deliver(f stream.Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handler == nil {
		m.pending = append(m.pending, f)
		return
	}
	m.handler(f, nil)
}

// fail reports a receive error to the handler and closes the link.
func (m *mockTransport) fail(err error) {
	m.mu.Lock()
	fn := m.handler
	m.mu.Unlock()
	if fn != nil {
		fn(stream.Frame{}, err)
	}
	m.Close()
}

// OnFrame registers the handler and flushes frames received earlier.
func (m *mockTransport) OnFrame(fn transport.Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = fn
	for _, f := range m.pending {
		fn(f, nil)
	}
	m.pending = nil
}

// Done returns a channel that is closed when either side is closed.
func (m *mockTransport) Done() <-chan struct{} {
	return m.done
}

// Close shuts down both sides. Safe to call multiple times.
func (m *mockTransport) Close() error {
	m.shutdown()
	m.peer.shutdown()
	return nil
}

func (m *mockTransport) shutdown() {
	m.once.Do(func() { close(m.done) })
}
