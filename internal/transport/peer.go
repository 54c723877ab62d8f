package transport

import (
	"github.com/pion/webrtc/v4"
)

// DefaultSTUNServers are used for ICE candidate gathering when the
// configuration names none. No TURN: the link is meant to be direct P2P.
var DefaultSTUNServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
}

// PeerConfig configures the WebRTC PeerConnection behind a Peer.
type PeerConfig struct {
	// ICEServers lists STUN/TURN URLs. Empty means host candidates only.
	ICEServers []string
	// IncludeLoopback also gathers 127.0.0.1 candidates, so two peers on the
	// same machine can connect without any other interface.
	IncludeLoopback bool
}

// DefaultPeerConfig returns a configuration using the public Google STUN servers.
func DefaultPeerConfig() PeerConfig {
	return PeerConfig{ICEServers: DefaultSTUNServers}
}

// newPeerConnection creates a PeerConnection from cfg.
func newPeerConnection(cfg PeerConfig) (*webrtc.PeerConnection, error) {
	var se webrtc.SettingEngine
	se.SetIncludeLoopbackCandidate(cfg.IncludeLoopback)
	api := webrtc.NewAPI(webrtc.WithSettingEngine(se))

	var config webrtc.Configuration
	if len(cfg.ICEServers) > 0 {
		config.ICEServers = []webrtc.ICEServer{
			{URLs: cfg.ICEServers},
		}
	}
	return api.NewPeerConnection(config)
}

// newDataChannel creates a pre-negotiated DataChannel on the given
// PeerConnection. Negotiated mode (ID 0) lets both sides create the channel
// independently without relying on OnDataChannel. The channel is ordered and
// reliable: frames may be cut across messages and are reassembled in
// arrival order.
func newDataChannel(pc *webrtc.PeerConnection) (*webrtc.DataChannel, error) {
	ordered := true
	negotiated := true
	id := uint16(0)

	return pc.CreateDataChannel("frames", &webrtc.DataChannelInit{
		Ordered:    &ordered,
		Negotiated: &negotiated,
		ID:         &id,
	})
}
