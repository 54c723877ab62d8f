package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/1ureka/genpkt/internal/protocol"
	"github.com/1ureka/genpkt/internal/stream"
	"github.com/1ureka/genpkt/internal/util"
)

// Conn carries frames over a net.Conn (TCP socket, unix socket, pipe).
type Conn struct {
	conn   net.Conn
	id     uint32
	framer stream.Framer
	opts   []stream.Option

	wmu sync.Mutex
	w   *stream.Writer

	ctx       context.Context
	cancel    context.CancelFunc
	startOnce sync.Once
	closeOnce sync.Once
}

// NewConn wraps conn. The link lives until Close, a receive failure, or ctx
// cancellation.
func NewConn(ctx context.Context, conn net.Conn, f stream.Framer, opts ...stream.Option) *Conn {
	cCtx, cancel := context.WithCancel(ctx)
	c := &Conn{
		conn:   conn,
		id:     util.ConnID(conn),
		framer: f,
		opts:   opts,
		w:      stream.NewWriter(conn, f),
		ctx:    cCtx,
		cancel: cancel,
	}
	util.Stats.AddConn()

	// Closing the socket is what unblocks a pending Read.
	go func() {
		<-cCtx.Done()
		c.Close()
	}()

	return c
}

// DialTCP connects to addr and wraps the connection.
func DialTCP(ctx context.Context, addr string, f stream.Framer, opts ...stream.Option) (*Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return NewConn(ctx, conn, f, opts...), nil
}

// ID returns the connection's log tag.
func (c *Conn) ID() uint32 { return c.id }

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// Send writes one frame. A ctx deadline becomes the socket write deadline.
func (c *Conn) Send(ctx context.Context, f stream.Frame) error {
	select {
	case <-c.ctx.Done():
		return ErrClosed
	default:
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetWriteDeadline(deadline)
		defer c.conn.SetWriteDeadline(time.Time{})
	}

	n, err := c.w.WriteFrame(f)
	if err != nil {
		if errors.Is(err, stream.ErrTypeOutOfRange) || errors.Is(err, protocol.ErrPayloadTooLarge) {
			return err
		}
		// Part of the frame may be on the wire; the peer cannot resync.
		c.Close()
		return err
	}
	util.Stats.AddSent(n)
	util.LogFrame("sent frame", c.id, f.Type, n)
	return nil
}

// OnFrame starts the read loop on the first call; later calls are ignored.
func (c *Conn) OnFrame(fn Handler) {
	c.startOnce.Do(func() {
		go c.readLoop(fn)
	})
}

func (c *Conn) readLoop(fn Handler) {
	defer c.Close()

	r := stream.NewReader(c.conn, c.framer, c.opts...)
	for {
		f, err := r.ReadFrame()
		if err != nil {
			select {
			case <-c.ctx.Done():
				// Local shutdown, not a peer failure.
			default:
				if !errors.Is(err, io.EOF) {
					fn(stream.Frame{}, err)
				}
			}
			return
		}

		n := frameSize(c.framer, f)
		util.Stats.AddRecv(n)
		util.LogFrame("received frame", c.id, f.Type, n)
		fn(f, nil)
	}
}

// Done returns a channel that is closed when the connection shuts down.
func (c *Conn) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		err = c.conn.Close()
		util.Stats.RemoveConn()
		util.LogDebug("[%08x] connection closed", c.id)
	})
	return err
}
