package signaling

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"

	"github.com/1ureka/genpkt/internal/transport"
)

// outbox writes the local side of the negotiation to the signaling socket.
// The ICE agent trickles candidates from its own goroutine, so writes are
// serialized.
type outbox struct {
	peer *transport.Peer
	conn *websocket.Conn

	mu sync.Mutex
}

func (o *outbox) write(msg message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.conn.WriteJSON(msg)
}

// describe installs the description returned by create as the local one and
// publishes its SDP as typ.
func (o *outbox) describe(typ messageType, create func() (webrtc.SessionDescription, error)) error {
	desc, err := create()
	if err != nil {
		return fmt.Errorf("create %s: %w", typ, err)
	}
	if err := o.peer.SetLocalDescription(desc); err != nil {
		return fmt.Errorf("apply local %s: %w", typ, err)
	}
	return o.write(message{Type: typ, SDP: desc.SDP})
}

func (o *outbox) offer() error  { return o.describe(msgTypeOffer, o.peer.CreateOffer) }
func (o *outbox) answer() error { return o.describe(msgTypeAnswer, o.peer.CreateAnswer) }

// trickle publishes a gathered candidate. A nil candidate ends gathering and
// is not sent.
func (o *outbox) trickle(c *webrtc.ICECandidate) error {
	if c == nil {
		return nil
	}
	init, err := json.Marshal(c.ToJSON())
	if err != nil {
		return fmt.Errorf("encode candidate: %w", err)
	}
	return o.write(message{Type: msgTypeCandidate, Candidate: string(init)})
}
