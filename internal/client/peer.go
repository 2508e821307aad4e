package client

import (
	"encoding/json"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/podiumlive/podium/internal/protocol"
)

// Peer wraps one PeerConnection of the mesh: every participant holds
// one Peer per remote participant and negotiates it over the relay.
type Peer struct {
	pc       *webrtc.PeerConnection
	remoteID string
	onICE    func(webrtc.ICECandidateInit)
	onClosed func()
}

func DefaultWebRTCConfig() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{
				URLs: []string{"stun:stun.l.google.com:19302"},
			},
		},
	}
}

func NewPeer(cfg webrtc.Configuration, remoteID string) (*Peer, error) {
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}
	p := &Peer{pc: pc, remoteID: remoteID}

	pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand != nil && p.onICE != nil {
			p.onICE(cand.ToJSON())
		}
	})
	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("module", "client.peer").Str("remote", remoteID).Str("state", s.String()).Msg("peer state")
		if s == webrtc.PeerConnectionStateFailed || s == webrtc.PeerConnectionStateClosed {
			if p.onClosed != nil {
				p.onClosed()
			}
		}
	})
	return p, nil
}

func (p *Peer) OnICECandidate(fn func(webrtc.ICECandidateInit)) { p.onICE = fn }
func (p *Peer) OnClosed(fn func())                              { p.onClosed = fn }

func (p *Peer) CreateOffer() (*webrtc.SessionDescription, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return nil, err
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return nil, err
	}
	return p.pc.LocalDescription(), nil
}

func (p *Peer) ApplyOfferAndCreateAnswer(offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	if err := p.pc.SetRemoteDescription(offer); err != nil {
		return nil, err
	}
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return nil, err
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return nil, err
	}
	return p.pc.LocalDescription(), nil
}

func (p *Peer) ApplyAnswer(answer webrtc.SessionDescription) error {
	return p.pc.SetRemoteDescription(answer)
}

func (p *Peer) AddICECandidate(cand webrtc.ICECandidateInit) error {
	return p.pc.AddICECandidate(cand)
}

func (p *Peer) Close() {
	_ = p.pc.Close()
}

// ---- mesh wiring on the Client ----

// onPeerJoined opens a connection toward the new participant. Offers
// are only sent once the joined notification fired, so the target is
// guaranteed to exist in the registry by forward time.
func (c *Client) onPeerJoined(userID string) {
	peer, err := c.ensurePeer(userID)
	if err != nil {
		c.logger.Error().Err(err).Str("remote", userID).Msg("peer create")
		return
	}
	offer, err := peer.CreateOffer()
	if err != nil {
		c.logger.Error().Err(err).Str("remote", userID).Msg("create offer")
		return
	}
	c.sendSignal(protocol.KindOffer, userID, offer, nil, nil)
}

func (c *Client) onPeerSignal(kind protocol.Kind, p protocol.SignalRelay) {
	switch kind {
	case protocol.KindOffer:
		var offer webrtc.SessionDescription
		if err := json.Unmarshal(p.Offer, &offer); err != nil {
			c.logger.Error().Err(err).Msg("bad offer payload")
			return
		}
		peer, err := c.ensurePeer(p.FromUserID)
		if err != nil {
			c.logger.Error().Err(err).Str("remote", p.FromUserID).Msg("peer create")
			return
		}
		answer, err := peer.ApplyOfferAndCreateAnswer(offer)
		if err != nil {
			c.logger.Error().Err(err).Str("remote", p.FromUserID).Msg("apply offer")
			return
		}
		c.sendSignal(protocol.KindAnswer, p.FromUserID, nil, answer, nil)
	case protocol.KindAnswer:
		var answer webrtc.SessionDescription
		if err := json.Unmarshal(p.Answer, &answer); err != nil {
			c.logger.Error().Err(err).Msg("bad answer payload")
			return
		}
		if peer := c.peer(p.FromUserID); peer != nil {
			if err := peer.ApplyAnswer(answer); err != nil {
				c.logger.Error().Err(err).Str("remote", p.FromUserID).Msg("apply answer")
			}
		}
	case protocol.KindICECandidate:
		var cand webrtc.ICECandidateInit
		if err := json.Unmarshal(p.Candidate, &cand); err != nil {
			c.logger.Error().Err(err).Msg("bad candidate payload")
			return
		}
		if peer := c.peer(p.FromUserID); peer != nil {
			if err := peer.AddICECandidate(cand); err != nil {
				c.logger.Error().Err(err).Str("remote", p.FromUserID).Msg("add ice candidate")
			}
		}
	}
}

func (c *Client) ensurePeer(userID string) (*Peer, error) {
	c.mu.Lock()
	if peer, ok := c.peers[userID]; ok {
		c.mu.Unlock()
		return peer, nil
	}
	c.mu.Unlock()

	peer, err := NewPeer(DefaultWebRTCConfig(), userID)
	if err != nil {
		return nil, err
	}
	peer.OnICECandidate(func(cand webrtc.ICECandidateInit) {
		c.sendSignal(protocol.KindICECandidate, userID, nil, nil, &cand)
	})
	peer.OnClosed(func() { c.dropPeer(userID) })

	c.mu.Lock()
	c.peers[userID] = peer
	c.mu.Unlock()
	return peer, nil
}

func (c *Client) peer(userID string) *Peer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peers[userID]
}

func (c *Client) dropPeer(userID string) {
	c.mu.Lock()
	peer, ok := c.peers[userID]
	delete(c.peers, userID)
	c.mu.Unlock()
	if ok {
		peer.Close()
	}
}

func (c *Client) sendSignal(kind protocol.Kind, toUserID string, offer, answer *webrtc.SessionDescription, cand *webrtc.ICECandidateInit) {
	msg := protocol.Signal{
		Type:     kind,
		RoomID:   c.cfg.RoomID,
		ToUserID: toUserID,
	}
	marshal := func(v any) json.RawMessage {
		b, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		return b
	}
	if offer != nil {
		msg.Offer = marshal(offer)
	}
	if answer != nil {
		msg.Answer = marshal(answer)
	}
	if cand != nil {
		msg.Candidate = marshal(cand)
	}
	if err := c.send(msg); err != nil {
		c.logger.Warn().Err(err).Str("type", string(kind)).Str("to", toUserID).Msg("signal send failed")
	}
}
