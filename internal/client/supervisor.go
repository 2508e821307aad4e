package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

// ErrChannelUnavailable marks the signaling channel as permanently down
// for the rest of the session; only a manual restart recovers it.
var ErrChannelUnavailable = errors.New("signaling channel unavailable")

const DefaultMaxAttempts = 3

// Supervisor retries a dropped signaling connection with a bounded,
// backing-off schedule. A clean close never reaches it; exhausting the
// budget latches local-only mode.
type Supervisor struct {
	Dial        func(ctx context.Context) error
	MaxAttempts int
	// NewBackOff builds the per-reconnect delay schedule; swapped in
	// tests to avoid real waits.
	NewBackOff func() backoff.BackOff

	OnExhausted func()

	mu        sync.Mutex
	exhausted bool
}

func NewSupervisor(dial func(ctx context.Context) error) *Supervisor {
	return &Supervisor{
		Dial:        dial,
		MaxAttempts: DefaultMaxAttempts,
		NewBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 5 * time.Second
			return b
		},
	}
}

// Unavailable reports whether the retry budget has been spent.
func (s *Supervisor) Unavailable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exhausted
}

// Reconnect runs the bounded retry loop. It returns nil once a dial
// succeeds, ctx.Err() on cancellation, or ErrChannelUnavailable after
// the final failed attempt.
func (s *Supervisor) Reconnect(ctx context.Context) error {
	s.mu.Lock()
	if s.exhausted {
		s.mu.Unlock()
		return ErrChannelUnavailable
	}
	s.mu.Unlock()

	bo := s.NewBackOff()
	for attempt := 1; attempt <= s.MaxAttempts; attempt++ {
		wait := bo.NextBackOff()
		log.Info().Str("module", "client.supervisor").Int("attempt", attempt).Dur("wait", wait).Msg("reconnecting")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		if err := s.Dial(ctx); err != nil {
			log.Warn().Err(err).Str("module", "client.supervisor").Int("attempt", attempt).Msg("reconnect attempt failed")
			continue
		}
		log.Info().Str("module", "client.supervisor").Int("attempt", attempt).Msg("reconnected")
		return nil
	}

	s.mu.Lock()
	s.exhausted = true
	s.mu.Unlock()
	if s.OnExhausted != nil {
		s.OnExhausted()
	}
	return ErrChannelUnavailable
}
