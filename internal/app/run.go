package app

import (
	"context"
	"fmt"

	"github.com/1ureka/genpkt/internal/stream"
	"github.com/1ureka/genpkt/internal/transport"
)

// inboxSize is the number of received frames queued ahead of the handlers.
const inboxSize = 64

// Run delivers every inbound frame of tr to r on a single goroutine until tr
// or ctx is done. A full inbox blocks the transport's receive path. The
// transport's receive error, if any, is returned.
func Run(ctx context.Context, tr transport.Transport, r *Router) error {
	inbox := make(chan stream.Frame, inboxSize)
	errCh := make(chan error, 1)

	tr.OnFrame(func(f stream.Frame, err error) {
		if err != nil {
			select {
			case errCh <- err:
			default:
			}
			return
		}
		select {
		case inbox <- f:
			return
		default:
		}
		select {
		case inbox <- f:
		case <-tr.Done():
		case <-ctx.Done():
		}
	})

	for {
		select {
		case f := <-inbox:
			r.Dispatch(ctx, tr, f)

		case err := <-errCh:
			return fmt.Errorf("receive failed: %w", err)

		case <-tr.Done():
			// Frames queued before shutdown are still handled.
			drain(ctx, tr, r, inbox)
			select {
			case err := <-errCh:
				return fmt.Errorf("receive failed: %w", err)
			default:
				return nil
			}

		case <-ctx.Done():
			tr.Close()
			return nil
		}
	}
}

func drain(ctx context.Context, tr transport.Transport, r *Router, inbox <-chan stream.Frame) {
	for {
		select {
		case f := <-inbox:
			r.Dispatch(ctx, tr, f)
		default:
			return
		}
	}
}
