package core

import (
	"sync/atomic"
	"time"
)

// Clock measures elapsed cpu time in abstract cycle units. Only differences
// between readings are meaningful.
type Clock interface {
	Now() int64
}

// MonotonicClock counts wall-clock nanoseconds on the monotonic clock. Since
// only one thread runs at a time, the time between two scheduler
// measurements is the time the running thread held the processor.
type MonotonicClock struct {
	epoch time.Time
}

// NewMonotonicClock returns a clock reading zero now.
func NewMonotonicClock() *MonotonicClock {
	return &MonotonicClock{epoch: time.Now()}
}

func (c *MonotonicClock) Now() int64 {
	return int64(time.Since(c.epoch))
}

// ManualClock is a deterministic clock. Every Now call advances it by Step
// before reading, and Advance moves it forward explicitly.
type ManualClock struct {
	Step int64
	now  atomic.Int64
}

// NewManualClock returns a clock at zero advancing by step on every reading.
func NewManualClock(step int64) *ManualClock {
	return &ManualClock{Step: step}
}

func (c *ManualClock) Now() int64 {
	return c.now.Add(c.Step)
}

// Advance moves the clock forward by d units.
func (c *ManualClock) Advance(d int64) {
	c.now.Add(d)
}
