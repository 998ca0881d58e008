package sim

import "math"

// Clock is the simulation time source: the running sum of accepted tick
// deltas in milliseconds. It never reads the wall clock.
type Clock struct {
	now        float64
	maxDeltaMs float64
}

// NewClock creates a clock that caps single deltas at maxDeltaMs (0 = no cap).
func NewClock(maxDeltaMs float64) *Clock {
	return &Clock{maxDeltaMs: maxDeltaMs}
}

func (c *Clock) Now() float64 { return c.now }

// Advance adds deltaMs and returns the delta actually applied. Negative,
// NaN and infinite deltas are rejected with ok=false.
func (c *Clock) Advance(deltaMs float64) (applied float64, ok bool) {
	if math.IsNaN(deltaMs) || math.IsInf(deltaMs, 0) || deltaMs < 0 {
		return 0, false
	}
	if c.maxDeltaMs > 0 && deltaMs > c.maxDeltaMs {
		deltaMs = c.maxDeltaMs
	}
	c.now += deltaMs
	return deltaMs, true
}

func (c *Clock) Reset() { c.now = 0 }
