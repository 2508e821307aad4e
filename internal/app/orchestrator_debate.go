package app

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/podiumlive/podium/internal/core"
	"github.com/podiumlive/podium/internal/domain"
	"github.com/podiumlive/podium/internal/protocol"
)

// requireHost resolves the caller's room and verifies host authority.
// Host identity is an explicit room field, never the caller's claim.
func (o *Orchestrator) requireHost(sid core.SessionID) (domain.RoomID, core.RoomService, error) {
	roomID, user, ok := o.Registry.Identity(sid)
	if !ok {
		return "", nil, ErrNotBound
	}
	room, ok := o.Rooms.Get(roomID)
	if !ok {
		return "", nil, ErrNoRoom
	}
	if room.Room().HostID != user.ID {
		return "", nil, ErrNotHost
	}
	return roomID, room, nil
}

// StartDebate initializes the turn state machine and broadcasts the
// first snapshot. An empty explicit order falls back to the room's
// debater-role members in join order.
func (o *Orchestrator) StartDebate(sid core.SessionID, order []domain.UserID) (domain.DebateState, error) {
	roomID, room, err := o.requireHost(sid)
	if err != nil {
		return domain.DebateState{}, err
	}
	st := room.StartDebate(order, time.Now())
	o.broadcastState(roomID, room, st)
	return st, nil
}

// AdvanceTurn is the host's manual advance.
func (o *Orchestrator) AdvanceTurn(sid core.SessionID) (domain.DebateState, error) {
	_, room, err := o.requireHost(sid)
	if err != nil {
		return domain.DebateState{}, err
	}
	return o.advance(room)
}

// AdvancePhase moves opening→rebuttal→closing→completed; the phase is
// the host's responsibility, the core only stores and broadcasts it.
func (o *Orchestrator) AdvancePhase(sid core.SessionID) (domain.DebateState, error) {
	roomID, room, err := o.requireHost(sid)
	if err != nil {
		return domain.DebateState{}, err
	}
	st, ok := room.AdvancePhase()
	if !ok {
		return domain.DebateState{}, ErrNoDebate
	}
	if st.Phase == domain.PhaseCompleted && o.Timers != nil {
		o.Timers.Cancel(roomID)
	}
	o.broadcastState(roomID, room, st)
	return st, nil
}

// EndMeeting tears the room down after notifying every member.
func (o *Orchestrator) EndMeeting(sid core.SessionID) error {
	roomID, room, err := o.requireHost(sid)
	if err != nil {
		return err
	}
	if frame, err := json.Marshal(protocol.MeetingEnded{Type: protocol.KindMeetingEnded}); err == nil {
		room.BroadcastAll(core.Frame(frame))
	}
	room.EndDebate()
	o.EvictRoom(roomID)
	log.Info().Str("module", "app.orch").Str("room", string(roomID)).Msg("meeting ended by host")
	return nil
}

func (o *Orchestrator) advance(room core.RoomService) (domain.DebateState, error) {
	roomID := room.Room().ID
	st, ok := room.AdvanceTurn(time.Now())
	if !ok {
		// Empty speaking order or completed phase: a no-op by contract.
		if o.Timers != nil {
			o.Timers.Cancel(roomID)
		}
		return st, ErrNoDebate
	}
	log.Info().Str("module", "app.orch").Str("room", string(roomID)).Str("speaker", string(st.CurrentSpeakerID)).Int("round", st.RoundNumber).Msg("turn advanced")
	o.broadcastState(roomID, room, st)
	return st, nil
}

// broadcastState fans the full snapshot to every member, then arms the
// next server-side turn timer when that mode is on.
func (o *Orchestrator) broadcastState(roomID domain.RoomID, room core.RoomService, st domain.DebateState) {
	order := make([]string, len(st.SpeakingOrder))
	for i, id := range st.SpeakingOrder {
		order[i] = string(id)
	}
	msg := protocol.StateChange{
		Type:             protocol.KindStateChange,
		Phase:            string(st.Phase),
		RoundNumber:      st.RoundNumber,
		SpeakingOrder:    order,
		CurrentSpeakerID: string(st.CurrentSpeakerID),
		TurnStartTime:    st.TurnStartTime,
		TurnDuration:     o.TurnDuration.Seconds(),
	}
	frame, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("module", "app.orch").Msg("state_change marshal")
		return
	}
	res := room.BroadcastAll(core.Frame(frame))
	o.ApplyPolicy(roomID, res)

	if o.ServerTimer && o.TurnDuration > 0 && o.Timers != nil &&
		st.CurrentSpeakerID != "" && st.Phase != domain.PhaseCompleted {
		o.Timers.Schedule(roomID, o.TurnDuration, func() { o.autoAdvance(roomID) })
	}
}

func (o *Orchestrator) autoAdvance(roomID domain.RoomID) {
	room, ok := o.Rooms.Get(roomID)
	if !ok {
		return
	}
	if _, err := o.advance(room); err != nil {
		log.Debug().Str("module", "app.orch").Str("room", string(roomID)).Msg("auto advance stopped")
	}
}
