package core

import "fmt"

// Mutex is a green-thread mutex. Blocked threads wait in a chain ordered by
// descending virtual runtime at the time they blocked; Unlock hands the mutex
// to the head of the chain.
//
// A Mutex must be initialized with NewMutex or Init before use.
type Mutex struct {
	sched *Scheduler
	owner *Thread
	// head of the wait chain, linked through Thread.mutexNext.
	head *Thread
}

// NewMutex returns an unlocked mutex bound to s. With a nil s the mutex is
// left uninitialized: Lock, Unlock and Destroy fail with ErrInvalidHandle and
// TryLock reports false. Use Init to get the error up front.
func NewMutex(s *Scheduler) *Mutex {
	m := &Mutex{}
	_ = m.Init(s)
	return m
}

// Init binds m to s and leaves it unlocked.
func (m *Mutex) Init(s *Scheduler) error {
	if s == nil {
		return fmt.Errorf("%w: nil scheduler", ErrInvalidHandle)
	}
	m.sched = s
	m.owner = nil
	m.head = nil
	return nil
}

// Destroy releases m. It fails with ErrMutexBusy while m is locked.
func (m *Mutex) Destroy() error {
	if _, err := m.scheduler(); err != nil {
		return err
	}
	if m.owner != nil {
		return fmt.Errorf("%w: owned by thread %d", ErrMutexBusy, m.owner.id)
	}
	m.sched = nil
	return nil
}

func (m *Mutex) scheduler() (*Scheduler, error) {
	switch {
	case m == nil:
		return nil, fmt.Errorf("%w: nil mutex", ErrInvalidHandle)
	case m.sched == nil:
		return nil, fmt.Errorf("%w: mutex not initialized", ErrInvalidHandle)
	case m.sched.closed.Load():
		return nil, ErrClosed
	}
	return m.sched, nil
}

// Lock acquires m, blocking the calling thread while another thread owns it.
// Locking a mutex the caller already owns fails with ErrDeadlock, as does a
// lock that can never be granted because nothing else is runnable.
func (m *Mutex) Lock() error {
	s, err := m.scheduler()
	if err != nil {
		return err
	}

	restore := s.guard.suppress()
	defer restore()

	cur := s.current
	switch m.owner {
	case nil:
		m.owner = cur
		return nil
	case cur:
		s.metrics.RecordSyncError("deadlock")
		return fmt.Errorf("%w: thread %d already owns the mutex", ErrDeadlock, cur.id)
	}

	m.addWaiter(cur)
	s.dequeue(cur)
	s.reschedule()

	if m.owner != cur {
		// Resumed by the fallback: the owner can never unlock.
		m.removeWaiter(cur)
		s.enqueue(cur)
		s.metrics.RecordSyncError("deadlock")
		s.logger.Warn("lock can never be granted", F("thread", cur.id), F("owner", m.owner.id))
		return fmt.Errorf("%w: thread %d waits on a mutex owned by thread %d", ErrDeadlock, cur.id, m.owner.id)
	}
	return nil
}

// TryLock acquires m if it is free and reports whether it did.
func (m *Mutex) TryLock() bool {
	s, err := m.scheduler()
	if err != nil {
		return false
	}

	restore := s.guard.suppress()
	defer restore()

	if m.owner != nil {
		return false
	}
	m.owner = s.current
	return true
}

// Unlock releases m. If threads are waiting, ownership passes directly to the
// head of the wait chain, which becomes runnable; the caller keeps running.
func (m *Mutex) Unlock() error {
	s, err := m.scheduler()
	if err != nil {
		return err
	}

	restore := s.guard.suppress()
	defer restore()

	cur := s.current
	if m.owner != cur {
		s.metrics.RecordSyncError("not_owner")
		s.logger.Warn("unlock by non-owner", F("thread", cur.id))
		return fmt.Errorf("%w: thread %d", ErrNotOwner, cur.id)
	}

	next := m.head
	if next == nil {
		m.owner = nil
		return nil
	}
	m.head = next.mutexNext
	next.mutexNext = nil
	m.owner = next
	s.enqueue(next)
	return nil
}

// Owner returns the owning thread, nil when m is unlocked.
func (m *Mutex) Owner() *Thread {
	return m.owner
}

// Waiters returns the number of threads blocked on m.
func (m *Mutex) Waiters() int {
	n := 0
	for t := m.head; t != nil; t = t.mutexNext {
		n++
	}
	return n
}

// addWaiter links t in before the first waiter with a strictly smaller key.
func (m *Mutex) addWaiter(t *Thread) {
	key := t.Key()
	link := &m.head
	for *link != nil && (*link).Key() >= key {
		link = &(*link).mutexNext
	}
	t.mutexNext = *link
	*link = t
}

func (m *Mutex) removeWaiter(t *Thread) {
	for link := &m.head; *link != nil; link = &(*link).mutexNext {
		if *link == t {
			*link = t.mutexNext
			t.mutexNext = nil
			return
		}
	}
}
