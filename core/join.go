package core

import (
	"fmt"
	"runtime"
)

// Join blocks until t terminates and returns its return value. A joined
// thread other than the bootstrap thread is reclaimed, after which its
// handle is invalid.
//
// Join fails with ErrDeadlock if t is the caller or is itself waiting, through
// a chain of joins, for the caller; with ErrAlreadyJoined if another thread
// already waits for t.
func (s *Scheduler) Join(t *Thread) (any, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	if err := s.lookup(t); err != nil {
		s.metrics.RecordSyncError("invalid_handle")
		return nil, err
	}

	restore := s.guard.suppress()
	defer restore()

	cur := s.current
	for w := cur; w != nil; w = w.waiter {
		if w == t {
			s.metrics.RecordSyncError("deadlock")
			s.logger.Warn("join would deadlock", F("caller", cur.id), F("target", t.id))
			return nil, fmt.Errorf("%w: thread %d joining thread %d", ErrDeadlock, cur.id, t.id)
		}
	}

	if t.state != StateTerminated {
		if t.waiter != nil {
			s.metrics.RecordSyncError("already_joined")
			return nil, fmt.Errorf("%w: thread %d is joined by thread %d", ErrAlreadyJoined, t.id, t.waiter.id)
		}

		t.waiter = cur
		s.dequeue(cur)
		s.reschedule()

		if t.state != StateTerminated {
			// Resumed by the fallback: nothing runnable is left to finish t.
			if t.waiter == cur {
				t.waiter = nil
			}
			s.enqueue(cur)
			s.metrics.RecordSyncError("deadlock")
			s.logger.Warn("join can never complete", F("caller", cur.id), F("target", t.id))
			return nil, fmt.Errorf("%w: thread %d can never terminate", ErrDeadlock, t.id)
		}
	}

	ret := t.retval
	if !t.bootstrap {
		s.reclaim(t)
	}
	s.logger.Debug("thread joined", F("caller", cur.id), F("target", t.id))
	return ret, nil
}

// Exit terminates the calling thread with value as its return value. Deferred
// calls of a created thread run before it terminates. Exit does not return.
//
// When the bootstrap thread exits, the remaining threads run to completion
// and then the process ends through Config.Terminate.
func (s *Scheduler) Exit(value any) {
	if s.closed.Load() {
		runtime.Goexit()
	}
	if t := s.current; t.bootstrap {
		s.finishExit(t, value)
	}
	panic(exitSignal{value: value})
}

// finishExit terminates t, which must be the running thread, and hands
// control away for good.
func (s *Scheduler) finishExit(t *Thread, value any) {
	s.guard.hold()

	t.retval = value
	t.state = StateTerminated
	s.dequeue(t)
	if w := t.waiter; w != nil {
		t.waiter = nil
		s.enqueue(w)
	}
	s.stats.exited.Add(1)
	s.metrics.RecordThreadExited(t.id)
	s.logger.Debug("thread exited", F("thread", t.id))

	s.reschedule()

	// Only the fallback comes back here.
	if t.bootstrap {
		s.logger.Info("bootstrap thread exited with nothing left to run")
		s.cfg.Terminate(0)
	} else {
		s.logger.Error("terminated thread was resumed", F("thread", t.id))
		s.cfg.Terminate(1)
	}
	runtime.Goexit()
}

// GetPriority returns t's priority.
func (s *Scheduler) GetPriority(t *Thread) (int, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	if err := s.lookup(t); err != nil {
		return 0, err
	}
	return t.priority, nil
}

// SetPriority changes t's priority. It takes effect at t's next re-key.
func (s *Scheduler) SetPriority(t *Thread, priority int) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if err := s.lookup(t); err != nil {
		return err
	}
	if priority < MinPriority || priority > MaxPriority {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrPriorityOutOfRange, priority, MinPriority, MaxPriority)
	}
	t.priority = priority
	return nil
}
