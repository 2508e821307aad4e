package app

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/podiumlive/podium/internal/core"
	"github.com/podiumlive/podium/internal/domain"
	"github.com/podiumlive/podium/internal/protocol"
)

var (
	ErrNotHost  = errors.New("not the room host")
	ErrNoRoom   = errors.New("room not found")
	ErrNoDebate = errors.New("debate not started")
	ErrNotBound = errors.New("connection has no identity")
)

// Orchestrator coordinates registry, rooms and timers. It is the only
// writer of membership and debate state; adapters call into it and fan
// results back out over their own transports.
type Orchestrator struct {
	Registry *Registry
	Rooms    core.RoomManager
	Policy   Policy
	Timers   *TurnTimers

	// TurnDuration gates a speaker's slot. With ServerTimer set the
	// server advances turns itself; otherwise the host client does.
	TurnDuration time.Duration
	ServerTimer  bool
}

// Join binds identity to the connection and inserts the user into the
// room, creating it lazily. Re-join of the same user reconciles to a
// single membership: the stale session is canceled, never doubled.
func (o *Orchestrator) Join(sid core.SessionID, roomID domain.RoomID, user *domain.User, role domain.Role) (core.RoomService, error) {
	if prev, _, ok := o.Registry.RoomOf(sid); ok && prev != roomID {
		_, prevUser, _ := o.Registry.Identity(sid)
		o.KickBySID(sid)
		// The old room's members must see the departure; the transport
		// adapter only announces disconnects, not switches.
		if old, stillThere := o.Rooms.Get(prev); stillThere && prevUser != nil {
			o.notifyLeft(prev, old, prevUser)
		}
		log.Info().Str("module", "app.orch").Str("sid", string(sid)).Str("from_room", string(prev)).Msg("left previous room on join")
	}

	sess, ok := o.Registry.GetSession(sid)
	if !ok {
		return nil, ErrNotBound
	}
	if role == "" {
		role = domain.RoleDebater
	}
	sess.Meta().User = user
	sess.Meta().Role = role

	room := o.Rooms.GetOrCreate(roomID)
	evicted, _ := room.AddMember(sid, sess)
	if evicted != "" && evicted != sid {
		o.Registry.RemoveRoom(evicted)
		o.Registry.Cancel(evicted)
		log.Warn().Str("module", "app.orch").Str("sid", string(evicted)).Str("user", string(user.ID)).Msg("stale session evicted on rejoin")
	}
	o.Registry.SetIdentity(sid, roomID, user)
	log.Info().Str("module", "app.orch").Str("sid", string(sid)).Str("room", string(roomID)).Str("user", string(user.ID)).Msg("joined room")
	return room, nil
}

// KickBySID removes the connection's membership. The room is dropped
// the instant it empties; a leave for an unbound connection is a no-op.
func (o *Orchestrator) KickBySID(sid core.SessionID) {
	roomID, _, ok := o.Registry.RoomOf(sid)
	if !ok {
		return
	}
	room, ok := o.Rooms.Get(roomID)
	if ok {
		room.RemoveMember(sid)
	}
	o.Registry.RemoveRoom(sid)
	if o.Rooms.DropIfEmpty(roomID) && o.Timers != nil {
		o.Timers.Cancel(roomID)
	}
}

// notifyLeft broadcasts a participant-left event and a fresh roster
// snapshot to a room the user is no longer part of.
func (o *Orchestrator) notifyLeft(roomID domain.RoomID, room core.RoomService, user *domain.User) {
	left, err := json.Marshal(protocol.ParticipantEvent{
		Type:     protocol.KindParticipantLeft,
		UserID:   string(user.ID),
		UserName: user.DisplayName,
	})
	if err == nil {
		o.ApplyPolicy(roomID, room.BroadcastAll(core.Frame(left)))
	}

	roster := room.Roster()
	list := make([]string, len(roster))
	for i, id := range roster {
		list[i] = string(id)
	}
	snap, err := json.Marshal(protocol.RoomParticipants{
		Type:            protocol.KindRoomParticipants,
		ParticipantList: list,
	})
	if err == nil {
		o.ApplyPolicy(roomID, room.BroadcastAll(core.Frame(snap)))
	}
}

func (o *Orchestrator) OnDisconnect(sid core.SessionID) {
	o.KickBySID(sid)
	o.Registry.Unbind(sid)
}

// Relay forwards an opaque signaling frame to exactly the connection
// registered as (roomID, toUserID). The lookup happens at forward time;
// a missing target drops the frame with a local warning, never a queue.
func (o *Orchestrator) Relay(roomID domain.RoomID, toUserID domain.UserID, frame core.Frame) bool {
	room, ok := o.Rooms.Get(roomID)
	if !ok {
		log.Warn().Str("module", "app.orch").Str("room", string(roomID)).Msg("relay: room not found, dropping")
		return false
	}
	target, ok := room.SessionByUser(toUserID)
	if !ok || target.Signal() == nil {
		log.Warn().Str("module", "app.orch").Str("room", string(roomID)).Str("to", string(toUserID)).Msg("relay: target not found, dropping")
		return false
	}
	if err := target.Signal().TrySend(frame); err != nil {
		log.Warn().Err(err).Str("module", "app.orch").Str("to", string(toUserID)).Msg("relay: send failed")
		return false
	}
	return true
}

// ApplyPolicy reacts to slow consumers reported by a fan-out.
func (o *Orchestrator) ApplyPolicy(roomID domain.RoomID, res core.PublishResult) {
	if o.Policy == nil {
		return
	}
	room, ok := o.Rooms.Get(roomID)
	if !ok {
		return
	}
	for _, slow := range res.Dropped {
		switch o.Policy.OnBackPressure(room, slow) {
		case KickMember:
			for _, snap := range o.Registry.MembersOfRoom(roomID) {
				if snap.Session == slow {
					o.KickBySID(snap.SID)
					o.Registry.Cancel(snap.SID)
				}
			}
		case MarkSlow, DropFrame, NoAction:
		}
	}
}

func (o *Orchestrator) EvictRoom(id domain.RoomID) {
	for _, snap := range o.Registry.MembersOfRoom(id) {
		o.KickBySID(snap.SID)
	}
	o.Rooms.StopRoom(id)
	if o.Timers != nil {
		o.Timers.Cancel(id)
	}
}

// Shutdown releases process-wide resources (pending timers).
func (o *Orchestrator) Shutdown() {
	if o.Timers != nil {
		o.Timers.CancelAll()
	}
}
