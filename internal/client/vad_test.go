package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type edge struct {
	speaking bool
	level    float64
}

func newTestDetector() (*ActivityDetector, *[]edge, *time.Time) {
	var edges []edge
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	d := NewActivityDetector(func(speaking bool, level float64) {
		edges = append(edges, edge{speaking, level})
	})
	d.now = func() time.Time { return now }
	return d, &edges, &now
}

func TestDetector_ImmediateRiseDeferredFall(t *testing.T) {
	d, edges, now := newTestDetector()

	// Quiet frames: nothing.
	d.ProcessLevel(0.001)
	assert.Empty(t, *edges)

	// Crossing emits the true edge immediately, once.
	d.ProcessLevel(0.1)
	d.ProcessLevel(0.2)
	require.Len(t, *edges, 1)
	assert.True(t, (*edges)[0].speaking)

	// Silence inside the hold window: still speaking.
	*now = now.Add(200 * time.Millisecond)
	d.ProcessLevel(0.001)
	assert.Len(t, *edges, 1)
	assert.True(t, d.Speaking())

	// Hold expires: exactly one false edge.
	*now = now.Add(300 * time.Millisecond)
	d.ProcessLevel(0.001)
	d.ProcessLevel(0.001)
	require.Len(t, *edges, 2)
	assert.False(t, (*edges)[1].speaking)
	assert.False(t, d.Speaking())
}

func TestDetector_LoudFramesRestartHold(t *testing.T) {
	d, edges, now := newTestDetector()

	d.ProcessLevel(0.1)
	require.Len(t, *edges, 1)

	// Breath pauses shorter than the hold never flap.
	for i := 0; i < 5; i++ {
		*now = now.Add(300 * time.Millisecond)
		d.ProcessLevel(0.001)
		*now = now.Add(50 * time.Millisecond)
		d.ProcessLevel(0.1)
	}
	assert.Len(t, *edges, 1, "no false/true flapping across breath pauses")
	assert.True(t, d.Speaking())
}

func TestRMS(t *testing.T) {
	assert.Equal(t, 0.0, RMS(nil))
	assert.InDelta(t, 0.5, RMS([]float64{0.5, -0.5, 0.5, -0.5}), 1e-9)
}

func TestDetector_FrameInput(t *testing.T) {
	d, edges, _ := newTestDetector()
	frame := make([]float64, 512)
	for i := range frame {
		frame[i] = 0.2
	}
	d.ProcessFrame(frame)
	require.Len(t, *edges, 1)
	assert.True(t, (*edges)[0].speaking)
	assert.InDelta(t, 0.2, (*edges)[0].level, 1e-9)
}
