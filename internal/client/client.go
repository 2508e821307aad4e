// Package client holds the client-local half of the coordination
// protocol: the signaling connection, reconnect supervision, the audio
// activity detector and the per-peer negotiation mesh.
package client

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/podiumlive/podium/internal/core"
	"github.com/podiumlive/podium/internal/domain"
	"github.com/podiumlive/podium/internal/protocol"
)

const (
	devServerURL = "ws://localhost:8080/api/ws/signal"
	signalPath   = "/api/ws/signal"
)

type Config struct {
	// URL overrides resolution entirely when set.
	URL string
	// Origin is the page/deployment origin, e.g. "https://podium.example".
	Origin string
	// Production selects same-origin resolution; dev falls back to the
	// fixed local default.
	Production bool

	RoomID   string
	UserID   string
	UserName string
	Role     string

	// Host marks the room creator's client; only the host auto-advances
	// turns when the server-side timer is off.
	Host         bool
	TurnDuration time.Duration
}

// ResolveServerURL implements the environment resolution policy: an
// explicit URL wins, then the PODIUM_URL environment, then same-origin
// in production, then the local development default.
func ResolveServerURL(cfg Config) string {
	if cfg.URL != "" {
		return cfg.URL
	}
	if env := os.Getenv("PODIUM_URL"); env != "" {
		return env
	}
	if cfg.Production && cfg.Origin != "" {
		ws := cfg.Origin
		ws = strings.Replace(ws, "https://", "wss://", 1)
		ws = strings.Replace(ws, "http://", "ws://", 1)
		return strings.TrimSuffix(ws, "/") + signalPath
	}
	return devServerURL
}

// Handlers are the application-facing callbacks. Nil entries are skipped.
type Handlers struct {
	OnRoster      func(participants []string)
	OnJoined      func(userID, userName string)
	OnLeft        func(userID, userName string)
	OnAudio       func(userID string, status domain.PresenceStatus)
	OnSpeaking    func(userID string, speaking bool, volume float64)
	OnHand        func(userID string, raised bool)
	OnState       func(st domain.DebateState, turnDuration time.Duration)
	OnTurnExpired func(st domain.DebateState)
	OnMeetingEnd  func()
	OnLocalMode   func()
}

// Client is the signaling endpoint of one participant.
type Client struct {
	cfg      Config
	handlers Handlers
	logger   zerolog.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	turnTimer *time.Timer
	peers     map[string]*Peer
	closed    bool

	supervisor *Supervisor
}

func New(cfg Config, handlers Handlers) *Client {
	c := &Client{
		cfg:      cfg,
		handlers: handlers,
		logger:   log.With().Str("module", "client").Str("user", cfg.UserID).Logger(),
		peers:    make(map[string]*Peer),
	}
	c.supervisor = NewSupervisor(func(ctx context.Context) error {
		return c.connect(ctx)
	})
	c.supervisor.OnExhausted = func() {
		c.logger.Warn().Msg("signaling unavailable, degrading to local-only mode")
		if handlers.OnLocalMode != nil {
			handlers.OnLocalMode()
		}
	}
	return c
}

// Run connects and serves the read loop until ctx is done or the
// reconnect budget is exhausted.
func (c *Client) Run(ctx context.Context) error {
	if err := c.connect(ctx); err != nil {
		return err
	}
	for {
		conn := c.current()
		if conn == nil {
			return ErrChannelUnavailable
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.clearTurnTimer()
			if ctx.Err() != nil || c.isClosed() || isCleanClose(err) {
				return nil
			}
			c.logger.Warn().Err(err).Msg("signaling connection lost")
			if rerr := c.supervisor.Reconnect(ctx); rerr != nil {
				return rerr
			}
			continue
		}
		c.dispatch(data)
	}
}

func (c *Client) connect(ctx context.Context) error {
	url := ResolveServerURL(c.cfg)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.logger.Info().Str("url", url).Msg("signaling connected")

	return c.send(protocol.JoinRoom{
		Type:     protocol.KindJoinRoom,
		RoomID:   c.cfg.RoomID,
		UserID:   c.cfg.UserID,
		UserName: c.cfg.UserName,
		Role:     c.cfg.Role,
	})
}

// Close is a clean, intentional shutdown; the supervisor never retries it.
func (c *Client) Close() {
	c.mu.Lock()
	c.closed = true
	conn := c.conn
	if c.turnTimer != nil {
		c.turnTimer.Stop()
		c.turnTimer = nil
	}
	peers := c.peers
	c.peers = make(map[string]*Peer)
	c.mu.Unlock()

	for _, p := range peers {
		p.Close()
	}
	if conn != nil {
		deadline := time.Now().Add(time.Second)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_ = conn.Close()
	}
}

func (c *Client) current() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func isCleanClose(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}

func (c *Client) send(v any) error {
	conn := c.current()
	if conn == nil {
		return ErrChannelUnavailable
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// ---- typed send helpers ----

func (c *Client) SendAudioStatus(muted, streaming bool) error {
	return c.send(protocol.AudioStatus{Type: protocol.KindAudioStatus, IsMuted: muted, IsStreaming: streaming})
}

func (c *Client) SendSpeakingStatus(speaking bool, volume float64) error {
	return c.send(protocol.SpeakingStatus{Type: protocol.KindSpeakingStatus, IsSpeaking: speaking, Volume: volume})
}

func (c *Client) SendHandStatus(raised bool) error {
	return c.send(protocol.HandStatus{Type: protocol.KindHandStatus, IsRaised: raised})
}

func (c *Client) StartDebate(order []string) error {
	return c.send(protocol.StartDebate{Type: protocol.KindStartDebate, RoomID: c.cfg.RoomID, SpeakingOrder: order})
}

func (c *Client) AdvanceTurn() error {
	return c.send(protocol.AdvanceTurn{Type: protocol.KindAdvanceTurn, RoomID: c.cfg.RoomID})
}

func (c *Client) EndMeeting() error {
	return c.send(protocol.HostEndMeeting{Type: protocol.KindHostEndMeeting, RoomID: c.cfg.RoomID})
}

func (c *Client) Leave() error {
	return c.send(struct {
		Type protocol.Kind `json:"type"`
	}{Type: protocol.KindLeaveRoom})
}

// ---- inbound dispatch ----

func (c *Client) dispatch(data []byte) {
	kind, err := protocol.Peek(data)
	if err != nil {
		c.logger.Error().Err(err).Msg("bad server message")
		return
	}
	switch kind {
	case protocol.KindRoomParticipants:
		var p protocol.RoomParticipants
		if json.Unmarshal(data, &p) == nil && c.handlers.OnRoster != nil {
			c.handlers.OnRoster(p.ParticipantList)
		}
	case protocol.KindParticipantJoin:
		var p protocol.ParticipantEvent
		if json.Unmarshal(data, &p) != nil {
			return
		}
		c.onPeerJoined(p.UserID)
		if c.handlers.OnJoined != nil {
			c.handlers.OnJoined(p.UserID, p.UserName)
		}
	case protocol.KindParticipantLeft:
		var p protocol.ParticipantEvent
		if json.Unmarshal(data, &p) != nil {
			return
		}
		c.dropPeer(p.UserID)
		if c.handlers.OnLeft != nil {
			c.handlers.OnLeft(p.UserID, p.UserName)
		}
	case protocol.KindAudioUpdate:
		var p protocol.AudioUpdate
		if json.Unmarshal(data, &p) == nil && c.handlers.OnAudio != nil {
			c.handlers.OnAudio(p.UserID, domain.PresenceStatus{IsMuted: p.IsMuted, IsStreaming: p.IsStreaming})
		}
	case protocol.KindSpeakingUpdate:
		var p protocol.SpeakingUpdate
		if json.Unmarshal(data, &p) == nil && c.handlers.OnSpeaking != nil {
			c.handlers.OnSpeaking(p.UserID, p.IsSpeaking, p.Volume)
		}
	case protocol.KindHandUpdate:
		var p protocol.HandUpdate
		if json.Unmarshal(data, &p) == nil && c.handlers.OnHand != nil {
			c.handlers.OnHand(p.UserID, p.IsRaised)
		}
	case protocol.KindStateChange:
		var p protocol.StateChange
		if json.Unmarshal(data, &p) != nil {
			return
		}
		c.onStateChange(p)
	case protocol.KindOffer, protocol.KindAnswer, protocol.KindICECandidate:
		var p protocol.SignalRelay
		if json.Unmarshal(data, &p) != nil {
			return
		}
		c.onPeerSignal(kind, p)
	case protocol.KindMeetingEnded:
		c.clearTurnTimer()
		if c.handlers.OnMeetingEnd != nil {
			c.handlers.OnMeetingEnd()
		}
	case protocol.KindPong, protocol.KindError:
		// Nothing to do beyond logging.
		c.logger.Debug().Str("type", string(kind)).Msg("control message")
	default:
		c.logger.Warn().Str("type", string(kind)).Msg("unknown server message")
	}
}

// onStateChange rearms the local countdown from the broadcast snapshot.
// Only the host's timer triggers advancement; everyone else just
// renders, so racing advances cannot happen.
func (c *Client) onStateChange(p protocol.StateChange) {
	st := domain.DebateState{
		Phase:            domain.Phase(p.Phase),
		RoundNumber:      p.RoundNumber,
		CurrentSpeakerID: domain.UserID(p.CurrentSpeakerID),
		TurnStartTime:    p.TurnStartTime,
	}
	for _, id := range p.SpeakingOrder {
		st.SpeakingOrder = append(st.SpeakingOrder, domain.UserID(id))
	}

	turnDuration := c.cfg.TurnDuration
	if p.TurnDuration > 0 {
		turnDuration = time.Duration(p.TurnDuration * float64(time.Second))
	}
	if c.handlers.OnState != nil {
		c.handlers.OnState(st, turnDuration)
	}

	c.clearTurnTimer()
	if st.CurrentSpeakerID == "" || st.Phase == domain.PhaseCompleted || turnDuration <= 0 {
		return
	}
	remaining := core.Remaining(st, turnDuration, time.Now())
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.turnTimer = time.AfterFunc(remaining, func() {
		if c.cfg.Host {
			if err := c.AdvanceTurn(); err != nil {
				c.logger.Warn().Err(err).Msg("auto advance failed")
			}
		}
		if c.handlers.OnTurnExpired != nil {
			c.handlers.OnTurnExpired(st)
		}
	})
	c.mu.Unlock()
}

func (c *Client) clearTurnTimer() {
	c.mu.Lock()
	if c.turnTimer != nil {
		c.turnTimer.Stop()
		c.turnTimer = nil
	}
	c.mu.Unlock()
}
