package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/podiumlive/podium/internal/core"
	"github.com/podiumlive/podium/internal/domain"
	"github.com/podiumlive/podium/internal/protocol"
)

func (ctl *SignalWSController) handleJoin(
	sid core.SessionID,
	conn *WsSignalConn,
	data []byte,
) {
	var p protocol.JoinRoom
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad join payload")
		ctl.sendError(conn, "bad_payload")
		return
	}
	if p.RoomID == "" {
		ctl.sendError(conn, "missing room")
		return
	}

	user, err := domain.NewUser(domain.UserID(p.UserID), p.UserName)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("invalid join identity")
		ctl.sendError(conn, "invalid_identity")
		return
	}

	if ctl.JoinLimit != nil && !ctl.JoinLimit.Allow(user.ID) {
		ctl.sendError(conn, "too_many_joins")
		return
	}

	roomID := domain.RoomID(p.RoomID)
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room", p.RoomID).Str("user", p.UserID).Msg("join")

	room, err := ctl.Orch.Join(sid, roomID, user, domain.Role(p.Role))
	if err != nil {
		ctl.sendError(conn, "join_failed")
		return
	}

	// Roster goes to everyone including the actor: snapshot, not diff.
	ctl.broadcastRoster(roomID, room)
	ctl.fanOutOthers(roomID, room, sid, protocol.ParticipantEvent{
		Type:     protocol.KindParticipantJoin,
		UserID:   string(user.ID),
		UserName: user.DisplayName,
	})

	// A late joiner still needs the current debate snapshot to render.
	if st, ok := room.Debate(); ok {
		ctl.sendStateSnapshot(conn, st)
	}
}

func (ctl *SignalWSController) handleLeave(
	sid core.SessionID,
	conn *WsSignalConn,
) {
	roomID, user, ok := ctl.Orch.Registry.Identity(sid)
	// Leave from an unregistered connection is a silent no-op.
	if !ok {
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("leave")
	ctl.Orch.KickBySID(sid)

	if room, stillThere := ctl.Orch.Rooms.Get(roomID); stillThere {
		ctl.fanOutAll(roomID, room, protocol.ParticipantEvent{
			Type:     protocol.KindParticipantLeft,
			UserID:   string(user.ID),
			UserName: user.DisplayName,
		})
		ctl.broadcastRoster(roomID, room)
	}
}

func (ctl *SignalWSController) broadcastRoster(roomID domain.RoomID, room core.RoomService) {
	roster := room.Roster()
	list := make([]string, len(roster))
	for i, id := range roster {
		list[i] = string(id)
	}
	ctl.fanOutAll(roomID, room, protocol.RoomParticipants{
		Type:            protocol.KindRoomParticipants,
		ParticipantList: list,
	})
}
