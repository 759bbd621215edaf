// Package telemetry holds the shared sampling primitives: the latest-sample
// holder fed by both the notification and explicit-read paths, the
// consecutive-equal-samples debounce, and the cadence wait.
package telemetry

import (
	"context"
	"sync"
	"time"
)

// Sample is one decoded telemetry reading.
type Sample struct {
	HeightMM int
	Velocity int16
}

// Holder stores the most recent sample. Updates can race between the
// notification callback and an explicit read; the pair is guarded by one
// mutex so a reader can never observe a half-updated sample.
type Holder struct {
	mu sync.RWMutex
	s  Sample
}

// Update replaces the stored sample. Both fields are written together.
func (h *Holder) Update(s Sample) {
	h.mu.Lock()
	h.s = s
	h.mu.Unlock()
}

// Latest returns the most recent sample, regardless of which path stored it.
func (h *Holder) Latest() Sample {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.s
}

// StableCounter detects N consecutive identical values. The same debounce
// serves two completion semantics: stall detection while a drive command is
// active, and settlement detection after a preset recall.
type StableCounter struct {
	threshold int
	last      int
	count     int
	seeded    bool
}

// NewStableCounter returns a counter that fires after threshold consecutive
// observations equal to the last distinct value.
func NewStableCounter(threshold int) *StableCounter {
	return &StableCounter{threshold: threshold}
}

// Reset seeds the counter with a reference value and clears the count.
func (c *StableCounter) Reset(v int) {
	c.last = v
	c.count = 0
	c.seeded = true
}

// Observe feeds one value. It returns true once the threshold consecutive
// equal values have been seen; any change resets the count.
func (c *StableCounter) Observe(v int) bool {
	if c.seeded && v == c.last {
		c.count++
	} else {
		c.last = v
		c.count = 0
		c.seeded = true
	}
	return c.count >= c.threshold
}

// Wait suspends the caller for the given duration without blocking the
// host process from servicing cancellation. Returns the context error if
// cancelled before the delay elapses.
func Wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
