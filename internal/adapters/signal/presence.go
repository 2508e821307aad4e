package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/podiumlive/podium/internal/core"
	"github.com/podiumlive/podium/internal/domain"
	"github.com/podiumlive/podium/internal/protocol"
)

// presenceScope resolves the sender's identity and room. Status updates
// arriving before join are dropped silently: no identity, no target.
func (ctl *SignalWSController) presenceScope(sid core.SessionID) (domain.RoomID, core.RoomService, *domain.User, bool) {
	roomID, user, ok := ctl.Orch.Registry.Identity(sid)
	if !ok {
		log.Debug().Str("module", "signal").Str("sid", string(sid)).Msg("status update before join, ignoring")
		return "", nil, nil, false
	}
	room, ok := ctl.Orch.Rooms.Get(roomID)
	if !ok {
		return "", nil, nil, false
	}
	return roomID, room, user, true
}

func (ctl *SignalWSController) handleAudioStatus(sid core.SessionID, data []byte) {
	var p protocol.AudioStatus
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad audio-status payload")
		return
	}
	roomID, room, user, ok := ctl.presenceScope(sid)
	if !ok {
		return
	}
	st, ok := room.UpdatePresence(user.ID, func(ps *domain.PresenceStatus) {
		ps.IsMuted = p.IsMuted
		ps.IsStreaming = p.IsStreaming
	})
	if !ok {
		return
	}
	ctl.fanOutAll(roomID, room, protocol.AudioUpdate{
		Type:        protocol.KindAudioUpdate,
		UserID:      string(user.ID),
		UserName:    user.DisplayName,
		IsMuted:     st.IsMuted,
		IsStreaming: st.IsStreaming,
	})
}

func (ctl *SignalWSController) handleSpeakingStatus(sid core.SessionID, data []byte) {
	var p protocol.SpeakingStatus
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad speaking-status payload")
		return
	}
	roomID, room, user, ok := ctl.presenceScope(sid)
	if !ok {
		return
	}
	st, ok := room.UpdatePresence(user.ID, func(ps *domain.PresenceStatus) {
		ps.IsSpeaking = p.IsSpeaking
		ps.LastVolume = p.Volume
	})
	if !ok {
		return
	}
	ctl.fanOutAll(roomID, room, protocol.SpeakingUpdate{
		Type:       protocol.KindSpeakingUpdate,
		UserID:     string(user.ID),
		UserName:   user.DisplayName,
		IsSpeaking: st.IsSpeaking,
		Volume:     st.LastVolume,
	})
}

func (ctl *SignalWSController) handleHandStatus(sid core.SessionID, data []byte) {
	var p protocol.HandStatus
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad hand-status payload")
		return
	}
	roomID, room, user, ok := ctl.presenceScope(sid)
	if !ok {
		return
	}
	st, ok := room.UpdatePresence(user.ID, func(ps *domain.PresenceStatus) {
		ps.IsRaised = p.IsRaised
	})
	if !ok {
		return
	}
	ctl.fanOutAll(roomID, room, protocol.HandUpdate{
		Type:     protocol.KindHandUpdate,
		UserID:   string(user.ID),
		UserName: user.DisplayName,
		IsRaised: st.IsRaised,
	})
}
