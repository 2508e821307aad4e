package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/podiumlive/podium/internal/core"
	"github.com/podiumlive/podium/internal/protocol"
)

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Warn().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, sid core.SessionID, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
		ctl.onClose(sid)
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
				return
			}
			ctl.dispatch(sid, c, data)
		}
	}
}

// onClose revokes membership synchronously; no grace period.
func (ctl *SignalWSController) onClose(sid core.SessionID) {
	roomID, user, hadIdentity := ctl.Orch.Registry.Identity(sid)
	// Cancel before Unbind so the connection context is released even
	// when the socket closed on its own.
	ctl.Orch.Registry.Cancel(sid)
	ctl.Orch.OnDisconnect(sid)
	if !hadIdentity {
		return
	}
	if room, ok := ctl.Orch.Rooms.Get(roomID); ok {
		ctl.fanOutAll(roomID, room, protocol.ParticipantEvent{
			Type:     protocol.KindParticipantLeft,
			UserID:   string(user.ID),
			UserName: user.DisplayName,
		})
		ctl.broadcastRoster(roomID, room)
	}
}

func (ctl *SignalWSController) dispatch(sid core.SessionID, c *WsSignalConn, data []byte) {
	kind, err := protocol.Peek(data)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		return
	}

	switch kind {
	case protocol.KindJoinRoom:
		ctl.handleJoin(sid, c, data)
	case protocol.KindLeaveRoom:
		ctl.handleLeave(sid, c)
	case protocol.KindAudioStatus:
		ctl.handleAudioStatus(sid, data)
	case protocol.KindSpeakingStatus:
		ctl.handleSpeakingStatus(sid, data)
	case protocol.KindHandStatus:
		ctl.handleHandStatus(sid, data)
	case protocol.KindOffer, protocol.KindAnswer, protocol.KindICECandidate:
		ctl.handleSignalRelay(sid, kind, data)
	case protocol.KindStartDebate:
		ctl.handleStartDebate(sid, c, data)
	case protocol.KindAdvanceTurn:
		ctl.handleAdvanceTurn(sid, c)
	case protocol.KindHostEndMeeting:
		ctl.handleHostEndMeeting(sid, c)
	case protocol.KindPing:
		ctl.handlePing(c)
	default:
		log.Warn().Str("module", "signal").Str("type", string(kind)).Msg("unknown signal")
	}
}

func (ctl *SignalWSController) sendJSON(c core.SignalConnection, v any) {
	frame, ok := ctl.encode(v)
	if !ok {
		return
	}
	_ = c.TrySend(frame)
}

func (ctl *SignalWSController) encode(v any) (core.Frame, bool) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("encode marshal")
		return nil, false
	}
	return core.Frame(b), true
}

func (ctl *SignalWSController) sendError(c *WsSignalConn, msg string) {
	ctl.sendJSON(c, protocol.ErrorMessage{Type: protocol.KindError, Error: msg})
}
