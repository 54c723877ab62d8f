package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/1ureka/genpkt/internal/config"
	"github.com/1ureka/genpkt/internal/protocol"
	"github.com/1ureka/genpkt/internal/signaling"
	"github.com/1ureka/genpkt/internal/stream"
	"github.com/1ureka/genpkt/internal/transport"
	"github.com/1ureka/genpkt/internal/util"
)

// replyTimeout bounds the wait for outstanding pongs once input is exhausted.
const replyTimeout = 5 * time.Second

// Dial builds the client-side transport described by cfg.
func Dial(ctx context.Context, cfg config.Config, f stream.Framer) (transport.Transport, error) {
	opts := cfg.StreamOptions()

	switch cfg.Transport {
	case config.KindTCP:
		return transport.DialTCP(ctx, cfg.Addr, f, opts...)
	case config.KindWS:
		return transport.DialWS(ctx, cfg.Addr, f, opts...)
	case config.KindWebRTC:
		return signaling.EstablishAsClient(ctx, cfg.Addr, newPeerFactory(cfg, f))
	default:
		return nil, fmt.Errorf("unsupported transport %q", cfg.Transport)
	}
}

// RunClient sends each line read from in as one frame of type typ and logs
// the replies. Lines too long for the size field are skipped with a warning.
// When in is exhausted it waits up to replyTimeout for outstanding pongs. It
// returns early if the transport or ctx is done.
func RunClient(ctx context.Context, tr transport.Transport, in io.Reader, typ uint32) error {
	var outstanding atomic.Int64
	settled := make(chan struct{}, 1)

	r := NewRouter()
	r.Handle(TypeText, logText)
	r.Handle(TypePing, answerPing)
	r.Handle(TypePong, func(ctx context.Context, tr transport.Transport, f stream.Frame) {
		util.LogInfo("pong: %s", f.Payload)
		if outstanding.Add(-1) <= 0 {
			select {
			case settled <- struct{}{}:
			default:
			}
		}
	})

	runErr := make(chan error, 1)
	go func() {
		runErr <- Run(ctx, tr, r)
	}()

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := newLineScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-tr.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					if err != nil {
						return fmt.Errorf("failed to read input: %w", err)
					}
				default:
				}
				return waitForReplies(ctx, tr, &outstanding, settled, runErr)
			}
			if typ == TypePing {
				outstanding.Add(1)
			}
			err := tr.Send(ctx, stream.Frame{Type: typ, Payload: []byte(line)})
			switch {
			case err == nil:
			case errors.Is(err, protocol.ErrPayloadTooLarge):
				util.LogWarning("skipping line: %v", err)
				if typ == TypePing {
					outstanding.Add(-1)
				}
			default:
				return fmt.Errorf("failed to send frame: %w", err)
			}

		case err := <-runErr:
			return err

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func waitForReplies(ctx context.Context, tr transport.Transport, outstanding *atomic.Int64, settled <-chan struct{}, runErr <-chan error) error {
	timer := time.NewTimer(replyTimeout)
	defer timer.Stop()

	for outstanding.Load() > 0 {
		select {
		case <-settled:
		case err := <-runErr:
			return err
		case <-timer.C:
			return fmt.Errorf("timed out waiting for %d pong(s)", outstanding.Load())
		case <-tr.Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
