package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRoomRateLimiter(t *testing.T) {
	rl := NewRoomRateLimiter(3, 50*time.Millisecond)

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("alice"), "attempt %d inside limit", i+1)
	}
	assert.False(t, rl.Allow("alice"), "fourth attempt blocked")

	// Independent users don't share a window.
	assert.True(t, rl.Allow("bob"))

	time.Sleep(60 * time.Millisecond)
	assert.True(t, rl.Allow("alice"), "window slid past old attempts")
}
