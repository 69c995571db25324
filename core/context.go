package core

import "runtime"

// wakeSignal tells a parked thread what to do when it is handed the baton.
type wakeSignal uint8

const (
	wakeResume wakeSignal = iota
	// wakeUnwind ends the thread's goroutine, running its deferred calls.
	wakeUnwind
)

// execContext is the saved execution state of a thread: its backing goroutine
// parked on wake. Handing a value to wake is the only way to make a thread run.
type execContext struct {
	wake chan wakeSignal
	// exited is closed once the backing goroutine has ended.
	exited chan struct{}
}

func newExecContext() execContext {
	// One slot: at most one thread is ever told to run before it parks.
	return execContext{
		wake:   make(chan wakeSignal, 1),
		exited: make(chan struct{}),
	}
}

// park blocks the calling goroutine until it is switched to. A thread told to
// unwind ends here instead of returning.
func (c *execContext) park() {
	if <-c.wake == wakeUnwind {
		runtime.Goexit()
	}
}

// unwind hands the baton to a parked thread so that it ends, and takes it back
// once the thread's goroutine is gone.
func (c *execContext) unwind() {
	c.wake <- wakeUnwind
	<-c.exited
}

// switchContext transfers control from the calling thread to to. It returns
// once from is switched back to. A terminated non-bootstrap thread is never
// switched back to, so its goroutine ends here instead of parking.
//
// The caller must already have made to the current thread.
func switchContext(from, to *Thread) {
	// Decide before waking to: from may be reclaimed as soon as to runs.
	finished := from.state == StateTerminated && !from.bootstrap
	to.ctx.wake <- wakeResume
	if finished {
		runtime.Goexit()
	}
	from.ctx.park()
}
