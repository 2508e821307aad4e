package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/podiumlive/podium/internal/core"
	"github.com/podiumlive/podium/internal/domain"
	"github.com/podiumlive/podium/internal/protocol"
)

// handleSignalRelay forwards an offer, answer or ICE candidate to one
// target connection. The three kinds share this path on purpose: the
// payload is opaque here, only the (room, target) lookup matters, and
// the lookup happens at forward time.
func (ctl *SignalWSController) handleSignalRelay(sid core.SessionID, kind protocol.Kind, data []byte) {
	var p protocol.Signal
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("type", string(kind)).Msg("bad signal payload")
		return
	}
	roomID, user, ok := ctl.Orch.Registry.Identity(sid)
	if !ok {
		log.Debug().Str("module", "signal").Str("sid", string(sid)).Msg("signal before join, ignoring")
		return
	}
	if p.RoomID != "" && domain.RoomID(p.RoomID) != roomID {
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Str("claimed", p.RoomID).Msg("signal room mismatch, using bound room")
	}
	if p.ToUserID == "" {
		return
	}

	out := protocol.SignalRelay{
		Type:       kind,
		FromUserID: string(user.ID),
		Offer:      p.Offer,
		Answer:     p.Answer,
		Candidate:  p.Candidate,
	}
	frame, ok := ctl.encode(out)
	if !ok {
		return
	}
	if !ctl.Orch.Relay(roomID, domain.UserID(p.ToUserID), frame) {
		// Target already left or never joined. The sender gets no
		// delivery confirmation.
		log.Warn().Str("module", "signal").Str("type", string(kind)).Str("from", string(user.ID)).Str("to", p.ToUserID).Msg("signal dropped")
	}
}
