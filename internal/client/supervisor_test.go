package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastBackOff() backoff.BackOff {
	return backoff.NewConstantBackOff(time.Millisecond)
}

func TestSupervisor_ExhaustsAfterThreeAttempts(t *testing.T) {
	attempts := 0
	s := NewSupervisor(func(ctx context.Context) error {
		attempts++
		return errors.New("refused")
	})
	s.NewBackOff = fastBackOff

	exhausted := 0
	s.OnExhausted = func() { exhausted++ }

	err := s.Reconnect(context.Background())
	assert.ErrorIs(t, err, ErrChannelUnavailable)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 1, exhausted)
	assert.True(t, s.Unavailable())

	// The channel stays down for the rest of the session: no new dials.
	err = s.Reconnect(context.Background())
	assert.ErrorIs(t, err, ErrChannelUnavailable)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 1, exhausted)
}

func TestSupervisor_RecoversMidBudget(t *testing.T) {
	attempts := 0
	s := NewSupervisor(func(ctx context.Context) error {
		attempts++
		if attempts < 2 {
			return errors.New("refused")
		}
		return nil
	})
	s.NewBackOff = fastBackOff

	require.NoError(t, s.Reconnect(context.Background()))
	assert.Equal(t, 2, attempts)
	assert.False(t, s.Unavailable())
}

func TestSupervisor_CancellationStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	s := NewSupervisor(func(ctx context.Context) error {
		attempts++
		return errors.New("refused")
	})
	s.NewBackOff = func() backoff.BackOff {
		return backoff.NewConstantBackOff(time.Hour)
	}

	err := s.Reconnect(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, attempts)
	assert.False(t, s.Unavailable(), "teardown is not exhaustion")
}

func TestIsCleanClose(t *testing.T) {
	assert.True(t, isCleanClose(&websocket.CloseError{Code: websocket.CloseNormalClosure}))
	assert.True(t, isCleanClose(&websocket.CloseError{Code: websocket.CloseGoingAway}))
	assert.False(t, isCleanClose(&websocket.CloseError{Code: websocket.CloseAbnormalClosure}))
	assert.False(t, isCleanClose(errors.New("read tcp: connection reset")))
}

func TestResolveServerURL(t *testing.T) {
	t.Run("explicit_wins", func(t *testing.T) {
		got := ResolveServerURL(Config{URL: "ws://custom:9000/ws", Production: true, Origin: "https://x"})
		assert.Equal(t, "ws://custom:9000/ws", got)
	})
	t.Run("env_beats_defaults", func(t *testing.T) {
		t.Setenv("PODIUM_URL", "wss://env.example/api/ws/signal")
		got := ResolveServerURL(Config{})
		assert.Equal(t, "wss://env.example/api/ws/signal", got)
	})
	t.Run("production_same_origin", func(t *testing.T) {
		t.Setenv("PODIUM_URL", "")
		got := ResolveServerURL(Config{Production: true, Origin: "https://podium.example/"})
		assert.Equal(t, "wss://podium.example/api/ws/signal", got)
	})
	t.Run("dev_fallback", func(t *testing.T) {
		t.Setenv("PODIUM_URL", "")
		got := ResolveServerURL(Config{})
		assert.Equal(t, devServerURL, got)
	})
}
