package signal

import (
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/podiumlive/podium/internal/app"
	"github.com/podiumlive/podium/internal/core"
	"github.com/podiumlive/podium/internal/domain"
	"github.com/podiumlive/podium/internal/protocol"
)

func (ctl *SignalWSController) handlePing(conn *WsSignalConn) {
	ctl.sendJSON(conn, struct {
		Type protocol.Kind `json:"type"`
	}{Type: protocol.KindPong})
}

func (ctl *SignalWSController) handleStartDebate(
	sid core.SessionID,
	conn *WsSignalConn,
	data []byte,
) {
	var p protocol.StartDebate
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad start-debate payload")
		ctl.sendError(conn, "bad_payload")
		return
	}
	order := make([]domain.UserID, 0, len(p.SpeakingOrder))
	for _, id := range p.SpeakingOrder {
		order = append(order, domain.UserID(id))
	}
	if _, err := ctl.Orch.StartDebate(sid, order); err != nil {
		ctl.sendHostError(conn, err)
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Int("speakers", len(order)).Msg("debate started")
}

func (ctl *SignalWSController) handleAdvanceTurn(sid core.SessionID, conn *WsSignalConn) {
	if _, err := ctl.Orch.AdvanceTurn(sid); err != nil {
		// An empty speaking order makes advance a no-op, not a fault.
		if errors.Is(err, app.ErrNoDebate) {
			return
		}
		ctl.sendHostError(conn, err)
	}
}

func (ctl *SignalWSController) handleHostEndMeeting(sid core.SessionID, conn *WsSignalConn) {
	if err := ctl.Orch.EndMeeting(sid); err != nil {
		ctl.sendHostError(conn, err)
	}
}

func (ctl *SignalWSController) sendHostError(conn *WsSignalConn, err error) {
	switch {
	case errors.Is(err, app.ErrNotHost):
		ctl.sendError(conn, "not_host")
	case errors.Is(err, app.ErrNotBound):
		// No identity: ignore silently, same as any pre-join message.
	default:
		ctl.sendError(conn, "debate_error")
	}
}

// sendStateSnapshot delivers the current debate state to one
// connection (used for late joiners).
func (ctl *SignalWSController) sendStateSnapshot(conn *WsSignalConn, st domain.DebateState) {
	order := make([]string, len(st.SpeakingOrder))
	for i, id := range st.SpeakingOrder {
		order[i] = string(id)
	}
	ctl.sendJSON(conn, protocol.StateChange{
		Type:             protocol.KindStateChange,
		Phase:            string(st.Phase),
		RoundNumber:      st.RoundNumber,
		SpeakingOrder:    order,
		CurrentSpeakerID: string(st.CurrentSpeakerID),
		TurnStartTime:    st.TurnStartTime,
		TurnDuration:     ctl.Orch.TurnDuration.Seconds(),
	})
}
