package signaling

import (
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"

	"github.com/1ureka/genpkt/internal/transport"
)

// receiver applies incoming signaling messages to the peer. Candidates that
// arrive before the remote description are held until it is set.
type receiver struct {
	peer *transport.Peer
	conn *websocket.Conn
	out  *outbox

	remoteSet bool
	pending   []webrtc.ICECandidateInit
}

// watch reads messages until the WebSocket fails or closes.
func (r *receiver) watch() error {
	for {
		var msg message
		if err := r.conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("failed to read WS message: %w", err)
		}

		switch msg.Type {
		case msgTypeOffer:
			if err := r.setRemote(webrtc.SDPTypeOffer, msg.SDP); err != nil {
				return err
			}
			if err := r.out.answer(); err != nil {
				return fmt.Errorf("failed to send answer: %w", err)
			}

		case msgTypeAnswer:
			if err := r.setRemote(webrtc.SDPTypeAnswer, msg.SDP); err != nil {
				return err
			}

		case msgTypeCandidate:
			var init webrtc.ICECandidateInit
			if err := json.Unmarshal([]byte(msg.Candidate), &init); err != nil {
				return fmt.Errorf("failed to parse ICE candidate: %w", err)
			}
			if !r.remoteSet {
				r.pending = append(r.pending, init)
				continue
			}
			if err := r.peer.AddICECandidate(init); err != nil {
				return err
			}

		default:
			return fmt.Errorf("unexpected signaling message %q", msg.Type)
		}
	}
}

func (r *receiver) setRemote(typ webrtc.SDPType, sdp string) error {
	if err := r.peer.SetRemoteDescription(webrtc.SessionDescription{Type: typ, SDP: sdp}); err != nil {
		return fmt.Errorf("failed to apply remote %s: %w", typ, err)
	}
	r.remoteSet = true

	for _, c := range r.pending {
		if err := r.peer.AddICECandidate(c); err != nil {
			return err
		}
	}
	r.pending = nil
	return nil
}
