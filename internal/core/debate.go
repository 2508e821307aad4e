package core

import (
	"time"

	"github.com/podiumlive/podium/internal/domain"
)

// NewDebateState fixes the speaking order at initialization. No speaker
// is selected yet; the first advance starts at index 0.
func NewDebateState(order []domain.UserID, now time.Time) domain.DebateState {
	cp := make([]domain.UserID, len(order))
	copy(cp, order)
	return domain.DebateState{
		Phase:         domain.PhaseOpening,
		RoundNumber:   1,
		SpeakingOrder: cp,
		TurnStartTime: now,
	}
}

// NextTurn rotates the current speaker. An absent speaker counts as
// index -1, so the rotation starts at the head of the order. Wrapping
// past the last speaker begins a new round. Advancing an empty order or
// a completed debate is a no-op and reports false.
func NextTurn(st domain.DebateState, now time.Time) (domain.DebateState, bool) {
	if len(st.SpeakingOrder) == 0 || st.Phase == domain.PhaseCompleted {
		return st, false
	}
	idx := -1
	for i, id := range st.SpeakingOrder {
		if id == st.CurrentSpeakerID {
			idx = i
			break
		}
	}
	next := (idx + 1) % len(st.SpeakingOrder)
	if idx >= 0 && next == 0 {
		st.RoundNumber++
	}
	// turn_start_time moves atomically with the speaker.
	st.CurrentSpeakerID = st.SpeakingOrder[next]
	st.TurnStartTime = now
	return st, true
}

// Remaining computes the client-side countdown from a broadcast
// snapshot. Negative drift clamps to zero.
func Remaining(st domain.DebateState, turnDuration time.Duration, now time.Time) time.Duration {
	if st.CurrentSpeakerID == "" || st.Phase == domain.PhaseCompleted {
		return 0
	}
	left := turnDuration - now.Sub(st.TurnStartTime)
	if left < 0 {
		return 0
	}
	return left
}
