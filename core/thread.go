package core

import (
	"fmt"

	"github.com/Swind/go-greenthread/rbtree"
)

// ThreadID identifies a thread. The bootstrap thread is always BootstrapID.
type ThreadID uint64

// BootstrapID is the id of the thread that created the scheduler.
const BootstrapID ThreadID = 1

// ThreadFunc is the entry point of a thread. Its return value becomes the
// thread's exit value.
type ThreadFunc func(arg any) any

// ThreadState is the lifecycle state of a thread.
type ThreadState int

const (
	// StateReady covers both runnable threads and threads blocked in a join or a lock.
	StateReady ThreadState = iota
	// StateTerminated is final; the thread's resources are reclaimed by its joiner.
	StateTerminated
)

func (s ThreadState) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("ThreadState(%d)", int(s))
	}
}

// priorityWeight is the virtual runtime multiplier per priority. Each step up
// divides the weight by 10^0.1, so ten levels are a factor of ten.
var priorityWeight = [MaxPriority + 1]int64{
	10000000, 7943282, 6309573, 5011872, 3981071, 3162277, 2511886, 1995262, 1584893, 1258925,
	1000000, 794328, 630957, 501187, 398107, 316227, 251188, 199526, 158489, 125892,
	100000, 79432, 63095, 50118, 39810, 31622, 25118, 19952, 15848, 12589,
	10000, 7943, 6309, 5011, 3981, 3162, 2511, 1995, 1584, 1258,
}

// PriorityWeight returns the virtual runtime multiplier of priority p.
func PriorityWeight(p int) (int64, error) {
	if p < MinPriority || p > MaxPriority {
		return 0, fmt.Errorf("%w: %d", ErrPriorityOutOfRange, p)
	}
	return priorityWeight[p], nil
}

// Thread is the control block of a green thread.
//
// Apart from ID, its accessors must only be called from threads of the owning
// scheduler.
type Thread struct {
	id        ThreadID
	name      string
	sched     *Scheduler
	bootstrap bool
	reclaimed bool

	state    ThreadState
	priority int
	ctx      execContext
	stack    *Stack
	stackID  int
	retval   any

	yieldsSinceRekey  int
	cpuTimeSinceRekey int64

	// node holds the virtual runtime key; the thread is runnable iff it is in the tree.
	node rbtree.Handle

	// waiter is the thread blocked joining this one.
	waiter *Thread
	// pending is only used on the bootstrap thread: the last thread that ran
	// before control fell back to the bootstrap with nothing runnable.
	pending *Thread
	// mutexNext links the wait chain of the mutex this thread is blocked on.
	mutexNext *Thread
}

func newThread(s *Scheduler, id ThreadID) *Thread {
	return &Thread{
		id:       id,
		sched:    s,
		state:    StateReady,
		priority: DefaultPriority,
		ctx:      newExecContext(),
		node:     rbtree.Nil,
	}
}

// ID returns the thread id.
func (t *Thread) ID() ThreadID { return t.id }

// Name returns the name of the thread's entry function.
func (t *Thread) Name() string { return t.name }

// State returns the lifecycle state.
func (t *Thread) State() ThreadState { return t.state }

// Priority returns the thread's priority.
func (t *Thread) Priority() int { return t.priority }

// IsBootstrap reports whether t is the scheduler's bootstrap thread.
func (t *Thread) IsBootstrap() bool { return t.bootstrap }

// Key returns the thread's virtual runtime.
func (t *Thread) Key() int64 {
	if t.node == rbtree.Nil {
		return 0
	}
	return t.sched.tree.Key(t.node)
}

// Stack returns the thread's stack memory, nil for the bootstrap thread.
func (t *Thread) Stack() []byte {
	if t.stack == nil {
		return nil
	}
	return t.stack.Bytes()
}

func (t *Thread) String() string {
	return fmt.Sprintf("thread %d", t.id)
}

// scheduled reports whether t is in the run queue.
func (t *Thread) scheduled() bool {
	return t.sched.tree.Contains(t.node)
}
