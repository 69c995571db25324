package core

import "fmt"

// SwitchReason tells why control moved between two threads.
type SwitchReason int

const (
	// SwitchYield: the running thread was re-keyed and another thread had a smaller key.
	SwitchYield SwitchReason = iota
	// SwitchBlocked: the running thread blocked in a join or a lock.
	SwitchBlocked
	// SwitchExited: the running thread terminated.
	SwitchExited
	// SwitchFallback: nothing was runnable and control fell back to the bootstrap thread.
	SwitchFallback
)

func (r SwitchReason) String() string {
	switch r {
	case SwitchYield:
		return "yield"
	case SwitchBlocked:
		return "blocked"
	case SwitchExited:
		return "exited"
	case SwitchFallback:
		return "fallback"
	default:
		return fmt.Sprintf("SwitchReason(%d)", int(r))
	}
}

// SwitchRecord captures one context switch.
type SwitchRecord struct {
	Seq     uint64
	From    ThreadID
	To      ThreadID
	FromKey int64
	ToKey   int64
	Reason  SwitchReason
}

// SchedulerStats is a point-in-time view of a scheduler. It can be read from
// any goroutine.
type SchedulerStats struct {
	Current          ThreadID
	Live             int
	Runnable         int
	Created          uint64
	Exited           uint64
	Switches         uint64
	Yields           uint64
	Rekeys           uint64
	Preemptions      uint64
	PreemptsDeferred uint64
	Closed           bool
}

// ThreadInfo describes one live thread in a Snapshot.
type ThreadInfo struct {
	ID        ThreadID
	Name      string
	Priority  int
	State     ThreadState
	Key       int64
	Scheduled bool
	Current   bool
}

// Snapshot lists live threads: the run queue in dispatch order first, then
// every thread outside it ordered by id.
type Snapshot struct {
	Threads []ThreadInfo
}
