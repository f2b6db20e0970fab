package main

import (
	"sync"
	"time"

	"knobd/quadrature"
)

// velocityTracker tracks recent encoder activity to detect "fast spinning".
//
// Safe for concurrent use.
type velocityTracker struct {
	cfg VelocityConfig

	mu          sync.Mutex
	recentSteps []recentStep
}

// recentStep records a batch of detents delivered in one read
type recentStep struct {
	at        time.Time
	direction quadrature.Direction
	count     int
}

func newVelocityTracker(cfg VelocityConfig) *velocityTracker {
	return &velocityTracker{
		cfg:         cfg,
		recentSteps: make([]recentStep, 0, 16),
	}
}

// add records an event observed at now and returns the number of steps in the
// same direction within the velocity window, including this one.
func (v *velocityTracker) add(ev quadrature.Event, now time.Time) int {
	v.mu.Lock()
	defer v.mu.Unlock()

	cutoff := now.Add(-time.Duration(v.cfg.WindowMS) * time.Millisecond)

	// Drop steps outside the window, reusing the underlying array.
	filtered := v.recentSteps[:0]
	for _, s := range v.recentSteps {
		if s.at.After(cutoff) {
			filtered = append(filtered, s)
		}
	}
	filtered = append(filtered, recentStep{
		at:        now,
		direction: ev.Direction,
		count:     int(ev.Count),
	})
	v.recentSteps = filtered

	sameDir := 0
	for _, s := range filtered {
		if s.direction == ev.Direction {
			sameDir += s.count
		}
	}
	return sameDir
}

// multiplier maps a windowed step count to the reported step multiplier.
func (v *velocityTracker) multiplier(windowSteps int) (fast bool, mult float64) {
	if v.cfg.Threshold > 0 && windowSteps >= v.cfg.Threshold {
		return true, v.cfg.Multiplier
	}
	return false, 1
}
