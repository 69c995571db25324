//go:build linux || darwin || freebsd

package core

import (
	"golang.org/x/sys/unix"
)

// ProcessCPUClock reads the cpu time consumed by the whole process, in
// nanoseconds. With a single thread running at a time this is close to the
// cpu time of the running thread, and unlike MonotonicClock it does not count
// time the process spent descheduled by the OS.
type ProcessCPUClock struct {
	fallback *MonotonicClock
}

// NewProcessCPUClock returns a process cpu time clock.
func NewProcessCPUClock() *ProcessCPUClock {
	return &ProcessCPUClock{fallback: NewMonotonicClock()}
}

func (c *ProcessCPUClock) Now() int64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_PROCESS_CPUTIME_ID, &ts); err != nil {
		return c.fallback.Now()
	}
	return ts.Nano()
}
