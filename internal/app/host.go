package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/1ureka/genpkt/internal/config"
	"github.com/1ureka/genpkt/internal/signaling"
	"github.com/1ureka/genpkt/internal/stream"
	"github.com/1ureka/genpkt/internal/transport"
	"github.com/1ureka/genpkt/internal/util"
)

// shutdownGrace bounds how long the WS server waits for handlers on shutdown.
const shutdownGrace = 2 * time.Second

// HostRouter returns the router used by the host role: text frames are
// logged, pings are answered with a pong carrying the same payload.
func HostRouter() *Router {
	r := NewRouter()
	r.Handle(TypeText, logText)
	r.Handle(TypePing, answerPing)
	r.Handle(TypePong, func(ctx context.Context, tr transport.Transport, f stream.Frame) {
		util.LogDebug("unsolicited pong (%d bytes)", len(f.Payload))
	})
	return r
}

func logText(ctx context.Context, tr transport.Transport, f stream.Frame) {
	util.LogInfo("text: %s", f.Payload)
}

func answerPing(ctx context.Context, tr transport.Transport, f stream.Frame) {
	if err := tr.Send(ctx, stream.Frame{Type: TypePong, Payload: f.Payload}); err != nil {
		util.LogWarning("failed to answer ping: %v", err)
	}
}

// RunHost serves one link with HostRouter. It blocks until the transport or
// ctx is done.
func RunHost(ctx context.Context, tr transport.Transport) error {
	return Run(ctx, tr, HostRouter())
}

// Serve accepts links on cfg.Addr over the configured transport and runs
// RunHost on each. TCP and WS accept any number of links; WebRTC serves the
// single peer that completes signaling. It blocks until ctx is done.
func Serve(ctx context.Context, cfg config.Config, f stream.Framer) error {
	opts := cfg.StreamOptions()

	switch cfg.Transport {
	case config.KindTCP:
		ln, err := net.Listen("tcp", cfg.Addr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", cfg.Addr, err)
		}
		return ServeTCP(ctx, ln, f, opts...)

	case config.KindWS:
		ln, err := net.Listen("tcp", cfg.Addr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", cfg.Addr, err)
		}
		return ServeWS(ctx, ln, f, opts...)

	case config.KindWebRTC:
		peer, err := signaling.EstablishAsHost(ctx, cfg.Addr, newPeerFactory(cfg, f))
		if err != nil {
			return fmt.Errorf("failed to establish peer: %w", err)
		}
		defer peer.Close()
		util.LogSuccess("P2P link established")
		return RunHost(ctx, peer)

	default:
		return fmt.Errorf("unsupported transport %q", cfg.Transport)
	}
}

// ServeTCP accepts connections on ln until ctx is done, serving each with
// RunHost. ln is closed on return.
func ServeTCP(ctx context.Context, ln net.Listener, f stream.Framer, opts ...stream.Option) error {
	// Close the listener when context is done so Accept() returns an error.
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	util.LogInfo("listening for TCP links on %s", ln.Addr())

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil // normal shutdown
			default:
				return fmt.Errorf("accept error: %w", err)
			}
		}

		tr := transport.NewConn(ctx, conn, f, opts...)
		util.LogInfo("[%08x] new link from %s", tr.ID(), conn.RemoteAddr())
		go serveLink(ctx, tr.ID(), tr)
	}
}

// ServeWS serves WebSocket links on ln at /frames until ctx is done. ln is
// closed on return.
func ServeWS(ctx context.Context, ln net.Listener, f stream.Framer, opts ...stream.Option) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/frames", func(w http.ResponseWriter, r *http.Request) {
		tr, err := transport.UpgradeWS(ctx, w, r, f, opts...)
		if err != nil {
			util.LogWarning("WS upgrade failed: %v", err)
			return
		}
		util.LogInfo("[%08x] new WS link from %s", tr.ID(), r.RemoteAddr)
		serveLink(ctx, tr.ID(), tr)
	})

	srv := &http.Server{Handler: mux}
	go func() {
		<-ctx.Done()
		sCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		srv.Shutdown(sCtx)
	}()

	util.LogInfo("listening for WS links on ws://%s/frames", ln.Addr())

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("WS server failed: %w", err)
	}
	return nil
}

func serveLink(ctx context.Context, id uint32, tr transport.Transport) {
	defer tr.Close()
	if err := RunHost(ctx, tr); err != nil {
		util.LogWarning("[%08x] link failed: %v", id, err)
		return
	}
	util.LogDebug("[%08x] link finished", id)
}

func newPeerFactory(cfg config.Config, f stream.Framer) signaling.PeerFactory {
	return func(ctx context.Context) (*transport.Peer, error) {
		return transport.NewPeer(ctx, cfg.PeerConfig(), f, cfg.StreamOptions()...)
	}
}
