//go:build !(linux || darwin || freebsd)

package core

// ProcessCPUClock falls back to the monotonic clock on platforms without a
// process cpu time clock.
type ProcessCPUClock struct {
	fallback *MonotonicClock
}

// NewProcessCPUClock returns a clock backed by the monotonic clock.
func NewProcessCPUClock() *ProcessCPUClock {
	return &ProcessCPUClock{fallback: NewMonotonicClock()}
}

func (c *ProcessCPUClock) Now() int64 {
	return c.fallback.Now()
}
