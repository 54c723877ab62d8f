package transport

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/1ureka/genpkt/internal/stream"
	"github.com/1ureka/genpkt/internal/util"
)

// closeGrace bounds how long Close waits to deliver the close control message.
const closeGrace = time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WS carries frames over a WebSocket. Frames are written as binary messages,
// one per Send, but the receiving side treats the message sequence as a byte
// stream, so peers that split or batch frames are understood too.
type WS struct {
	conn   *websocket.Conn
	id     uint32
	framer stream.Framer
	dec    *stream.Decoder

	wmu sync.Mutex

	ctx       context.Context
	cancel    context.CancelFunc
	startOnce sync.Once
	closeOnce sync.Once
}

// NewWS wraps an established WebSocket connection.
func NewWS(ctx context.Context, conn *websocket.Conn, f stream.Framer, opts ...stream.Option) *WS {
	wCtx, cancel := context.WithCancel(ctx)
	w := &WS{
		conn:   conn,
		id:     util.ConnIDFromAddrs(conn.LocalAddr(), conn.RemoteAddr()),
		framer: f,
		dec:    stream.NewDecoder(f, opts...),
		ctx:    wCtx,
		cancel: cancel,
	}
	util.Stats.AddConn()

	go func() {
		<-wCtx.Done()
		w.Close()
	}()

	return w
}

// DialWS connects to a WebSocket URL such as ws://host:port/frames.
func DialWS(ctx context.Context, url string, f stream.Framer, opts ...stream.Option) (*WS, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to WS server: %w", err)
	}
	return NewWS(ctx, conn, f, opts...), nil
}

// UpgradeWS upgrades an incoming HTTP request to a framed WebSocket link.
func UpgradeWS(ctx context.Context, w http.ResponseWriter, r *http.Request, f stream.Framer, opts ...stream.Option) (*WS, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return NewWS(ctx, conn, f, opts...), nil
}

// ID returns the connection's log tag.
func (w *WS) ID() uint32 { return w.id }

// Send writes one frame as a single binary message.
func (w *WS) Send(ctx context.Context, f stream.Frame) error {
	select {
	case <-w.ctx.Done():
		return ErrClosed
	default:
	}

	data, err := w.framer.Encode(f)
	if err != nil {
		return err
	}

	w.wmu.Lock()
	defer w.wmu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		w.conn.SetWriteDeadline(deadline)
		defer w.conn.SetWriteDeadline(time.Time{})
	}
	if err := w.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return fmt.Errorf("WS write failed: %w", err)
	}

	util.Stats.AddSent(len(data))
	util.LogFrame("sent frame", w.id, f.Type, len(data))
	return nil
}

// OnFrame starts the read loop on the first call; later calls are ignored.
func (w *WS) OnFrame(fn Handler) {
	w.startOnce.Do(func() {
		go w.readLoop(fn)
	})
}

func (w *WS) readLoop(fn Handler) {
	defer w.Close()

	for {
		mt, data, err := w.conn.ReadMessage()
		if err != nil {
			select {
			case <-w.ctx.Done():
			default:
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					fn(stream.Frame{}, err)
				}
			}
			return
		}
		if mt != websocket.BinaryMessage {
			util.LogDebug("[%08x] ignoring non-binary WS message", w.id)
			continue
		}

		frames, err := w.dec.Feed(data)
		for _, f := range frames {
			n := frameSize(w.framer, f)
			util.Stats.AddRecv(n)
			util.LogFrame("received frame", w.id, f.Type, n)
			fn(f, nil)
		}
		if err != nil {
			fn(stream.Frame{}, err)
			return
		}
	}
}

// Done returns a channel that is closed when the link shuts down.
func (w *WS) Done() <-chan struct{} {
	return w.ctx.Done()
}

// Close sends a normal-closure control message and closes the socket.
func (w *WS) Close() error {
	var err error
	w.closeOnce.Do(func() {
		w.cancel()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGrace))
		err = w.conn.Close()
		util.Stats.RemoveConn()
		util.LogDebug("[%08x] WS closed", w.id)
	})
	return err
}
