package transport

import (
	"context"
	"errors"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/genpkt/internal/stream"
	"github.com/1ureka/genpkt/internal/util"
)

// Peer wraps a single PeerConnection + DataChannel pair, providing a
// high-level API for signaling exchange, frame sending with backpressure,
// and frame receiving.
//
// Its lifecycle is governed by the DataChannel state and the context passed
// at construction time. The PeerConnection state is recorded but does not
// drive open/close decisions.
type Peer struct {
	pc *webrtc.PeerConnection
	dc *webrtc.DataChannel

	framer     stream.Framer
	dec        *stream.Decoder
	sender     *sender
	openSignal chan struct{}

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	mu      sync.RWMutex
	pcState webrtc.PeerConnectionState

	hmu     sync.Mutex
	handler Handler
	pending []stream.Frame
}

// NewPeer creates a Peer backed by a new PeerConnection and a pre-negotiated
// DataChannel. The caller should perform signaling via the exposed methods
// (CreateOffer / CreateAnswer / …) and then use Send / OnFrame for data
// transfer.
//
// The Peer is considered alive as long as the DataChannel is open and ctx has
// not been cancelled.
func NewPeer(ctx context.Context, cfg PeerConfig, f stream.Framer, opts ...stream.Option) (*Peer, error) {
	pc, err := newPeerConnection(cfg)
	if err != nil {
		return nil, err
	}

	dc, err := newDataChannel(pc)
	if err != nil {
		pc.Close()
		return nil, err
	}

	pCtx, pCancel := context.WithCancel(ctx)

	p := &Peer{
		pc:         pc,
		dc:         dc,
		framer:     f,
		dec:        stream.NewDecoder(f, opts...),
		openSignal: make(chan struct{}),
		ctx:        pCtx,
		cancel:     pCancel,
		pcState:    webrtc.PeerConnectionStateNew,
	}

	// DC open gate.
	var openOnce sync.Once
	dc.OnOpen(func() {
		openOnce.Do(func() {
			util.Stats.AddConn()
			close(p.openSignal)
		})
	})

	// DC close → cancel peer context.
	dc.OnClose(func() {
		util.LogDebug("DataChannel closed")
		pCancel()
	})

	// Frames are decoded from the first message on; they wait in pending
	// until OnFrame installs a handler.
	dc.OnMessage(p.handleMessage)

	// Record PC state (informational only).
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		util.LogDebug("PeerConnection state: %s", state.String())
		p.mu.Lock()
		p.pcState = state
		p.mu.Unlock()
	})

	// Start the sender goroutine.
	p.sender = newSender(pCtx, pCancel, dc, p.openSignal)

	return p, nil
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// Ready returns a channel that is closed when the DataChannel is open and
// the Peer is ready to send and receive.
func (p *Peer) Ready() <-chan struct{} {
	return p.openSignal
}

// Done returns a channel that is closed when the Peer is shut down
// (DataChannel closed or parent context cancelled).
func (p *Peer) Done() <-chan struct{} {
	return p.ctx.Done()
}

// Close shuts down the DataChannel and PeerConnection.
func (p *Peer) Close() error {
	var err error
	p.closeOnce.Do(func() {
		p.cancel()
		select {
		case <-p.openSignal:
			util.Stats.RemoveConn()
		default:
		}
		err = errors.Join(p.dc.Close(), p.pc.Close())
	})
	return err
}

// ConnectionState returns the last observed PeerConnection state.
func (p *Peer) ConnectionState() webrtc.PeerConnectionState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.pcState
}

// ---------------------------------------------------------------------------
// Signaling
// ---------------------------------------------------------------------------

// CreateOffer generates an SDP offer.
func (p *Peer) CreateOffer() (webrtc.SessionDescription, error) {
	return p.pc.CreateOffer(nil)
}

// CreateAnswer generates an SDP answer.
func (p *Peer) CreateAnswer() (webrtc.SessionDescription, error) {
	return p.pc.CreateAnswer(nil)
}

// SetLocalDescription applies the local SDP.
func (p *Peer) SetLocalDescription(sdp webrtc.SessionDescription) error {
	return p.pc.SetLocalDescription(sdp)
}

// SetRemoteDescription applies the remote SDP.
func (p *Peer) SetRemoteDescription(sdp webrtc.SessionDescription) error {
	return p.pc.SetRemoteDescription(sdp)
}

// LocalDescription returns the applied local SDP. Once GatheringComplete
// fires it carries every local candidate, for non-trickle exchange.
func (p *Peer) LocalDescription() *webrtc.SessionDescription {
	return p.pc.LocalDescription()
}

// GatheringComplete returns a channel closed when ICE gathering finishes. It
// must be obtained before SetLocalDescription.
func (p *Peer) GatheringComplete() <-chan struct{} {
	return webrtc.GatheringCompletePromise(p.pc)
}

// OnICECandidate registers a callback invoked whenever a new local ICE
// candidate is gathered. A nil candidate signals the end of gathering.
func (p *Peer) OnICECandidate(fn func(*webrtc.ICECandidate)) {
	p.pc.OnICECandidate(fn)
}

// AddICECandidate adds a remote ICE candidate received through signaling.
func (p *Peer) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	return p.pc.AddICECandidate(candidate)
}

// ---------------------------------------------------------------------------
// Data
// ---------------------------------------------------------------------------

// Send encodes f and enqueues it for the sender goroutine. It blocks while the
// send queue is full.
func (p *Peer) Send(ctx context.Context, f stream.Frame) error {
	select {
	case <-p.ctx.Done():
		return ErrClosed
	default:
	}

	data, err := p.framer.Encode(f)
	if err != nil {
		return err
	}
	if err := p.sender.send(ctx, p.ctx, data); err != nil {
		return err
	}
	util.Stats.AddSent(len(data))
	util.LogFrame("queued frame", 0, f.Type, len(data))
	return nil
}

// OnFrame registers the callback invoked for every frame reassembled from
// inbound DataChannel messages. Frames that arrived earlier are delivered
// first.
func (p *Peer) OnFrame(fn Handler) {
	p.hmu.Lock()
	defer p.hmu.Unlock()
	p.handler = fn
	for _, f := range p.pending {
		fn(f, nil)
	}
	p.pending = nil
}

// handleMessage feeds one DataChannel message to the decoder. pion delivers
// messages of one channel sequentially, so the decoder has a single writer.
func (p *Peer) handleMessage(msg webrtc.DataChannelMessage) {
	frames, err := p.dec.Feed(msg.Data)

	p.hmu.Lock()
	defer p.hmu.Unlock()
	for _, f := range frames {
		n := frameSize(p.framer, f)
		util.Stats.AddRecv(n)
		util.LogFrame("received frame", 0, f.Type, n)
		if p.handler == nil {
			p.pending = append(p.pending, f)
			continue
		}
		p.handler(f, nil)
	}
	if err != nil {
		if p.handler != nil {
			p.handler(stream.Frame{}, err)
		} else {
			util.LogError("DataChannel stream failed: %v", err)
		}
		p.cancel()
	}
}
