package signaling

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/pterm/pterm"

	"github.com/1ureka/genpkt/internal/transport"
	"github.com/1ureka/genpkt/internal/util"
)

// openTimeout bounds the wait for the DataChannel after the signaling socket
// has closed on the other side.
const openTimeout = 10 * time.Second

// ErrPeerClosed is returned when the peer shuts down before its DataChannel opens.
var ErrPeerClosed = errors.New("signaling: peer closed before the data channel opened")

// PeerFactory creates the Peer that signaling negotiates for.
type PeerFactory func(ctx context.Context) (*transport.Peer, error)

// Host is a listening signaling endpoint waiting for one client.
type Host struct {
	srv *server
}

// Listen starts a PIN-protected signaling server on addr ("host:port"; port 0
// picks a random port).
func Listen(addr string) (*Host, error) {
	srv := newServer(generatePIN(pinLength))
	if err := srv.start(addr); err != nil {
		return nil, err
	}
	return &Host{srv: srv}, nil
}

// Addr returns the listening address.
func (h *Host) Addr() net.Addr {
	return h.srv.listener.Addr()
}

// PIN returns the PIN clients must present.
func (h *Host) PIN() string {
	return h.srv.pin
}

// URL returns the WebSocket URL a client should dial, PIN included. An
// unspecified listen IP is reported as localhost.
func (h *Host) URL() string {
	host, port, _ := net.SplitHostPort(h.Addr().String())
	if ip := net.ParseIP(host); ip == nil || ip.IsUnspecified() {
		host = "localhost"
	}
	u := url.URL{
		Scheme:   "ws",
		Host:     net.JoinHostPort(host, port),
		Path:     "/ws",
		RawQuery: url.Values{"pin": {h.srv.pin}}.Encode(),
	}
	return u.String()
}

// Accept waits for a client, then offers a Peer created by newPeer and
// returns it once the DataChannel is open.
func (h *Host) Accept(ctx context.Context, newPeer PeerFactory) (*transport.Peer, error) {
	wsConn, err := h.srv.waitForClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to wait for client: %w", err)
	}
	defer wsConn.Close()
	util.LogInfo("signaling client connected from %s", wsConn.RemoteAddr())

	return establish(ctx, wsConn, newPeer, true)
}

// Close shuts down the signaling listener.
func (h *Host) Close() {
	h.srv.close()
}

// EstablishAsHost executes the full host-side signaling flow:
//  1. Start a WS server on addr
//  2. Print the URL (with PIN) the client must dial
//  3. Wait for the client to connect
//  4. Perform SDP/ICE exchange, offering first
//  5. Close the WS server and connection once the DataChannel is open
func EstablishAsHost(ctx context.Context, addr string, newPeer PeerFactory) (*transport.Peer, error) {
	h, err := Listen(addr)
	if err != nil {
		return nil, err
	}
	defer h.Close()

	pterm.DefaultBox.WithTitle("WebSocket Signaling Server").Println(
		fmt.Sprintf("URL : %s\nPIN : %s\n\nForward this port if the client is remote.", h.URL(), h.PIN()),
	)
	util.LogInfo("waiting for client...")

	return h.Accept(ctx, newPeer)
}

// EstablishAsClient executes the full client-side signaling flow:
//  1. Connect to the host's WS server
//  2. Answer the host's offer and exchange ICE candidates
//  3. Close the WS connection once the DataChannel is open
func EstablishAsClient(ctx context.Context, wsURL string, newPeer PeerFactory) (*transport.Peer, error) {
	util.LogInfo("connecting to host...")
	wsConn, err := connect(ctx, wsURL)
	if err != nil {
		return nil, err
	}
	defer wsConn.Close()
	util.LogDebug("WS connected: %s", wsURL)

	return establish(ctx, wsConn, newPeer, false)
}

// establish creates the peer and drives the exchange until the DataChannel
// opens. The peer is closed on failure.
func establish(ctx context.Context, wsConn *websocket.Conn, newPeer PeerFactory, offerer bool) (*transport.Peer, error) {
	peer, err := newPeer(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create peer: %w", err)
	}

	if err := exchange(ctx, wsConn, peer, offerer); err != nil {
		peer.Close()
		return nil, err
	}

	util.LogSuccess("WebRTC DataChannel established, closing WS")
	return peer, nil
}

// exchange performs the SDP/ICE exchange over wsConn. The offerer sends its
// offer first; the other side answers from its receiver loop.
func exchange(ctx context.Context, wsConn *websocket.Conn, peer *transport.Peer, offerer bool) error {
	out := &outbox{peer: peer, conn: wsConn}
	r := &receiver{peer: peer, conn: wsConn, out: out}

	peer.OnICECandidate(func(c *webrtc.ICECandidate) {
		if err := out.trickle(c); err != nil {
			util.LogDebug("failed to send ICE candidate: %v", err)
		}
	})

	// Exits when wsConn is closed by the caller.
	errCh := make(chan error, 1)
	go func() {
		errCh <- r.watch()
	}()

	if offerer {
		if err := out.offer(); err != nil {
			return fmt.Errorf("failed to send offer: %w", err)
		}
	}

	select {
	case <-peer.Ready():
		return nil

	case err := <-errCh:
		// The other side may close signaling as soon as its own channel opens.
		if !r.remoteSet {
			return fmt.Errorf("signaling failed: %w", err)
		}
		select {
		case <-peer.Ready():
			return nil
		case <-peer.Done():
			return ErrPeerClosed
		case <-time.After(openTimeout):
			return fmt.Errorf("signaling failed: %w", err)
		case <-ctx.Done():
			return ctx.Err()
		}

	case <-peer.Done():
		return ErrPeerClosed

	case <-ctx.Done():
		return ctx.Err()
	}
}
