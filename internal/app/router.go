// Package app contains the top-level orchestration for each role: serving
// and dialing frame links, and reading and writing packet files.
package app

import (
	"context"
	"sync"

	"github.com/1ureka/genpkt/internal/stream"
	"github.com/1ureka/genpkt/internal/transport"
	"github.com/1ureka/genpkt/internal/util"
)

// Built-in frame types.
const (
	TypeText uint32 = 1 // UTF-8 text, logged by the receiver
	TypePing uint32 = 2 // answered with a pong carrying the same payload
	TypePong uint32 = 3
)

// typeName returns a label for the built-in types.
func typeName(typ uint32) string {
	switch typ {
	case TypeText:
		return "text"
	case TypePing:
		return "ping"
	case TypePong:
		return "pong"
	default:
		return ""
	}
}

// HandlerFunc handles one inbound frame received on tr.
type HandlerFunc func(ctx context.Context, tr transport.Transport, f stream.Frame)

// Router maintains the type → handler route table.
type Router struct {
	mu     sync.RWMutex
	routes map[uint32]HandlerFunc
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{
		routes: make(map[uint32]HandlerFunc),
	}
}

// Handle registers fn for frames of type typ, replacing any earlier handler.
func (r *Router) Handle(typ uint32, fn HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[typ] = fn
}

// Route looks up the handler for a type.
func (r *Router) Route(typ uint32) (HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.routes[typ]
	return fn, ok
}

// Dispatch runs the handler registered for f.Type. Frames of unknown types
// are logged and dropped; the return value reports whether a handler ran.
func (r *Router) Dispatch(ctx context.Context, tr transport.Transport, f stream.Frame) bool {
	fn, ok := r.Route(f.Type)
	if !ok {
		util.LogWarning("no handler for frame type %d, dropping %d bytes", f.Type, len(f.Payload))
		return false
	}
	fn(ctx, tr, f)
	return true
}
