package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/podiumlive/podium/internal/app"
	"github.com/podiumlive/podium/internal/core"
	"github.com/podiumlive/podium/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

type SignalWSController struct {
	Orch      *app.Orchestrator
	JoinLimit *RoomRateLimiter
	ReadLimit int64
}

func NewSignalWSController(orch *app.Orchestrator, joinLimit *RoomRateLimiter, readLimit int64) *SignalWSController {
	return &SignalWSController{Orch: orch, JoinLimit: joinLimit, ReadLimit: readLimit}
}

type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	sid := core.SessionID(c.GetString("client_token"))
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws upgrade")
		return
	}
	if ctl.ReadLimit > 0 {
		ws.SetReadLimit(ctl.ReadLimit)
	}

	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, 32),
	}

	// Identity stays empty until join-room completes; a connection that
	// never joins is never registered in any room.
	meta := domain.NewMember(&domain.User{}, domain.RoleSpectator)
	sess := core.NewMemberSession(meta).UpdateSignal(conn)
	ctx, cancel := context.WithCancel(ctx)
	ctl.Orch.Registry.BindSignal(sid, sess, cancel)

	// Cancellation must tear the socket down too, or a kicked member's
	// blocked ReadMessage would keep the connection alive.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, sid, conn)
}

// fanOutAll sends to every member including the sender so the client UI
// can reconcile local against server state.
func (ctl *SignalWSController) fanOutAll(roomID domain.RoomID, room core.RoomService, v any) {
	frame, ok := ctl.encode(v)
	if !ok {
		return
	}
	res := room.BroadcastAll(frame)
	ctl.Orch.ApplyPolicy(roomID, res)
}

// fanOutOthers is the sender-exclusive variant kept for the event kinds
// whose consumers rely on not hearing their own echo.
func (ctl *SignalWSController) fanOutOthers(roomID domain.RoomID, room core.RoomService, from core.SessionID, v any) {
	frame, ok := ctl.encode(v)
	if !ok {
		return
	}
	res := room.Broadcast(from, frame)
	ctl.Orch.ApplyPolicy(roomID, res)
}
