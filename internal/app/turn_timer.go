package app

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/podiumlive/podium/internal/domain"
)

// TurnTimers owns the per-room server-side turn countdowns. Every timer
// started here has a matching cancel on the corresponding terminal
// event (manual advance, debate end, room teardown, shutdown).
type TurnTimers struct {
	mu     sync.Mutex
	timers map[domain.RoomID]*time.Timer
}

func NewTurnTimers() *TurnTimers {
	return &TurnTimers{timers: make(map[domain.RoomID]*time.Timer)}
}

// Schedule arms fn to fire after d, replacing any timer already armed
// for the room.
func (t *TurnTimers) Schedule(id domain.RoomID, d time.Duration, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if old, ok := t.timers[id]; ok {
		old.Stop()
	}
	t.timers[id] = time.AfterFunc(d, fn)
	log.Debug().Str("module", "app.timers").Str("room", string(id)).Dur("after", d).Msg("turn timer armed")
}

func (t *TurnTimers) Cancel(id domain.RoomID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if timer, ok := t.timers[id]; ok {
		timer.Stop()
		delete(t.timers, id)
	}
}

func (t *TurnTimers) CancelAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, timer := range t.timers {
		timer.Stop()
		delete(t.timers, id)
	}
}
