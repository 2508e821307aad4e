package client

import (
	"math"
	"sync"
	"time"
)

const (
	// DefaultThreshold is a few percent of full scale, calibrated for
	// typical headset input.
	DefaultThreshold = 0.03
	// DefaultHold keeps "speaking" up across breath pauses.
	DefaultHold = 400 * time.Millisecond
)

// ActivityDetector turns a continuous signal level into a debounced
// speaking/not-speaking boolean. The speaking=true edge fires
// immediately on crossing the threshold; the speaking=false edge is
// deferred by the hold window, restarted by every loud frame. Exactly
// one event fires per edge.
type ActivityDetector struct {
	Threshold float64
	Hold      time.Duration

	// now is swapped in tests.
	now func() time.Time

	mu       sync.Mutex
	speaking bool
	lastLoud time.Time
	emit     func(speaking bool, level float64)
}

func NewActivityDetector(emit func(speaking bool, level float64)) *ActivityDetector {
	return &ActivityDetector{
		Threshold: DefaultThreshold,
		Hold:      DefaultHold,
		now:       time.Now,
		emit:      emit,
	}
}

// ProcessFrame consumes one fixed-size frame of samples in [-1, 1].
func (d *ActivityDetector) ProcessFrame(samples []float64) {
	d.ProcessLevel(RMS(samples))
}

// ProcessLevel consumes a precomputed RMS level.
func (d *ActivityDetector) ProcessLevel(level float64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if level >= d.Threshold {
		d.lastLoud = now
		if !d.speaking {
			d.speaking = true
			if d.emit != nil {
				d.emit(true, level)
			}
		}
		return
	}
	if d.speaking && now.Sub(d.lastLoud) >= d.Hold {
		d.speaking = false
		if d.emit != nil {
			d.emit(false, level)
		}
	}
}

// Speaking reports the current debounced state.
func (d *ActivityDetector) Speaking() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.speaking
}

// RMS computes root-mean-square amplitude of one frame.
func RMS(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(samples)))
}
