package signal

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podiumlive/podium/internal/app"
	"github.com/podiumlive/podium/internal/core"
)

func newTestServer(t *testing.T, sid string) (*app.Orchestrator, *httptest.Server) {
	t.Helper()
	orch := &app.Orchestrator{
		Registry: app.NewRegistry(),
		Rooms:    core.NewRoomManager(),
		Policy:   app.SimplePolicy{},
		Timers:   app.NewTurnTimers(),
	}
	ctl := NewSignalWSController(orch, nil, 0)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	ctx := context.Background()
	r.GET("/ws", func(c *gin.Context) {
		c.Set("client_token", sid)
		ctl.HandleSignal(ctx, c)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return orch, srv
}

func TestCancelClosesConnection(t *testing.T) {
	orch, srv := newTestServer(t, "sid-1")

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return orch.Registry.Count() == 1
	}, time.Second, 5*time.Millisecond)

	// Session eviction (stale rejoin, backpressure kick) cancels the
	// connection context; the socket must die with it, not linger open.
	require.True(t, orch.Registry.Cancel("sid-1"))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err, "server left the socket open after cancellation")

	require.Eventually(t, func() bool {
		return orch.Registry.Count() == 0
	}, time.Second, 5*time.Millisecond, "session must be unbound after the read loop exits")
}
