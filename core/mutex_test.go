package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMutex_MutualExclusion verifies exclusive ownership across yields
// Given: Three threads incrementing a shared counter inside a critical section that yields
// When: Each performs 50 increments
// Then: No two threads are ever inside together and no increment is lost
func TestMutex_MutualExclusion(t *testing.T) {
	env := newTestEnv()

	runScheduler(t, env.cfg, func(s *Scheduler) {
		m := NewMutex(s)
		counter := 0
		inside := false

		entry := func(any) any {
			for range 50 {
				if err := m.Lock(); err != nil {
					return err
				}
				if inside {
					t.Error("two threads inside the critical section")
				}
				inside = true
				v := counter
				spin(s, 3)
				counter = v + 1
				inside = false
				if err := m.Unlock(); err != nil {
					return err
				}
				spin(s, 1)
			}
			return nil
		}

		var threads []*Thread
		for range 3 {
			th, err := s.Create(entry, nil)
			require.NoError(t, err)
			threads = append(threads, th)
		}
		for _, th := range threads {
			ret, err := s.Join(th)
			assert.NoError(t, err)
			assert.Nil(t, ret)
		}

		assert.Equal(t, 150, counter)
		assert.Nil(t, m.Owner())
		assert.Zero(t, m.Waiters())
		assert.NoError(t, s.tree.Verify())
	})
}

// TestMutex_WaitChainOrder verifies the wait chain ordering and promotion
// Given: Waiters added with keys 300, 100, 200 and 300
// When: The owner unlocks
// Then: The chain is sorted by descending key, equal keys in arrival order,
// and the head is promoted and made runnable
func TestMutex_WaitChainOrder(t *testing.T) {
	env := newTestEnv()

	runScheduler(t, env.cfg, func(s *Scheduler) {
		m := NewMutex(s)
		require.NoError(t, m.Lock())

		keys := []int64{300, 100, 200, 300}
		var waiters []*Thread
		for _, k := range keys {
			th, err := s.Create(func(any) any { return nil }, nil)
			require.NoError(t, err)
			s.tree.SetKey(th.node, k)
			s.dequeue(th)
			m.addWaiter(th)
			waiters = append(waiters, th)
		}

		var order []ThreadID
		for w := m.head; w != nil; w = w.mutexNext {
			order = append(order, w.ID())
		}
		assert.Equal(t, []ThreadID{
			waiters[0].ID(), waiters[3].ID(), waiters[2].ID(), waiters[1].ID(),
		}, order)

		require.NoError(t, m.Unlock())
		assert.Same(t, waiters[0], m.Owner())
		assert.True(t, waiters[0].scheduled())
		assert.Nil(t, waiters[0].mutexNext)
		assert.Equal(t, 3, m.Waiters())
		assert.False(t, waiters[3].scheduled())
	})
}

// TestMutex_UnlockByNonOwner verifies ownership checks
// Given: A mutex owned by the bootstrap thread
// When: Another thread unlocks it
// Then: ErrNotOwner is returned and the mutex is unchanged
func TestMutex_UnlockByNonOwner(t *testing.T) {
	env := newTestEnv()

	runScheduler(t, env.cfg, func(s *Scheduler) {
		m := NewMutex(s)
		require.NoError(t, m.Lock())

		th, err := s.Create(func(any) any {
			return m.Unlock()
		}, nil)
		require.NoError(t, err)

		ret, err := s.Join(th)
		require.NoError(t, err)
		unlockErr, _ := ret.(error)
		assert.ErrorIs(t, unlockErr, ErrNotOwner)
		assert.Same(t, s.Self(), m.Owner())
		assert.Equal(t, 1, env.metrics.SyncErrors("not_owner"))

		assert.NoError(t, m.Unlock())
		assert.ErrorIs(t, m.Unlock(), ErrNotOwner)
	})
}

// TestMutex_RecursiveLock verifies a thread cannot lock a mutex it owns
func TestMutex_RecursiveLock(t *testing.T) {
	env := newTestEnv()

	runScheduler(t, env.cfg, func(s *Scheduler) {
		m := NewMutex(s)
		require.NoError(t, m.Lock())

		assert.ErrorIs(t, m.Lock(), ErrDeadlock)
		assert.Same(t, s.Self(), m.Owner())
		assert.True(t, s.Self().scheduled())
		assert.NoError(t, m.Unlock())
	})
}

// TestMutex_OwnerExited verifies the fallback path of lock
// Given: A thread that locked a mutex and exited without unlocking
// When: The bootstrap thread locks it
// Then: Nothing is runnable, so Lock fails with ErrDeadlock instead of hanging
func TestMutex_OwnerExited(t *testing.T) {
	env := newTestEnv()

	runScheduler(t, env.cfg, func(s *Scheduler) {
		m := NewMutex(s)
		th, err := s.Create(func(any) any {
			return m.Lock()
		}, nil)
		require.NoError(t, err)
		spin(s, 2)
		require.Same(t, th, m.Owner())

		assert.ErrorIs(t, m.Lock(), ErrDeadlock)
		assert.Zero(t, m.Waiters())
		assert.True(t, s.Self().scheduled())

		_, err = s.Join(th)
		assert.NoError(t, err)
	})
}

// TestMutex_TryLock verifies the non-blocking acquire
func TestMutex_TryLock(t *testing.T) {
	env := newTestEnv()

	runScheduler(t, env.cfg, func(s *Scheduler) {
		m := NewMutex(s)
		assert.True(t, m.TryLock())
		assert.False(t, m.TryLock())

		th, err := s.Create(func(any) any {
			return m.TryLock()
		}, nil)
		require.NoError(t, err)
		ret, err := s.Join(th)
		require.NoError(t, err)
		assert.Equal(t, false, ret)

		assert.NoError(t, m.Unlock())
	})
}

// TestMutex_TryLockRestoresGuard verifies TryLock runs as a critical section
// Given: A scheduler with the reentrancy guard clear, then held by an outer section
// When: TryLock acquires and fails to acquire the mutex
// Then: The guard is back to the value it had before each call
func TestMutex_TryLockRestoresGuard(t *testing.T) {
	env := newTestEnv()

	runScheduler(t, env.cfg, func(s *Scheduler) {
		m := NewMutex(s)
		require.False(t, s.guard.Held())

		assert.True(t, m.TryLock())
		assert.False(t, s.guard.Held())
		assert.False(t, m.TryLock())
		assert.False(t, s.guard.Held())

		restore := s.guard.suppress()
		assert.False(t, m.TryLock())
		assert.True(t, s.guard.Held())
		restore()

		assert.Equal(t, s.Self(), m.Owner())
		assert.NoError(t, m.Unlock())
		assert.False(t, s.guard.Held())
	})
}

// TestMutex_NewWithNilScheduler verifies a mutex built without a scheduler
// Given: NewMutex called with a nil scheduler
// When: Any mutex operation is attempted
// Then: It fails with ErrInvalidHandle until Init binds a scheduler
func TestMutex_NewWithNilScheduler(t *testing.T) {
	env := newTestEnv()

	m := NewMutex(nil)
	require.NotNil(t, m)
	assert.ErrorIs(t, m.Lock(), ErrInvalidHandle)
	assert.ErrorIs(t, m.Unlock(), ErrInvalidHandle)
	assert.ErrorIs(t, m.Destroy(), ErrInvalidHandle)
	assert.False(t, m.TryLock())
	assert.Nil(t, m.Owner())

	runScheduler(t, env.cfg, func(s *Scheduler) {
		require.NoError(t, m.Init(s))
		assert.NoError(t, m.Lock())
		assert.NoError(t, m.Unlock())
	})
}

// TestMutex_Lifecycle verifies init and destroy rules
func TestMutex_Lifecycle(t *testing.T) {
	env := newTestEnv()

	runScheduler(t, env.cfg, func(s *Scheduler) {
		var m Mutex
		assert.ErrorIs(t, m.Lock(), ErrInvalidHandle)
		assert.ErrorIs(t, m.Unlock(), ErrInvalidHandle)
		assert.ErrorIs(t, m.Destroy(), ErrInvalidHandle)
		assert.False(t, m.TryLock())
		assert.ErrorIs(t, m.Init(nil), ErrInvalidHandle)

		require.NoError(t, m.Init(s))
		require.NoError(t, m.Lock())
		assert.ErrorIs(t, m.Destroy(), ErrMutexBusy)

		require.NoError(t, m.Unlock())
		assert.NoError(t, m.Destroy())
		assert.ErrorIs(t, m.Lock(), ErrInvalidHandle)
	})
}

// TestMutex_AfterClose verifies mutex operations fail once the scheduler is closed
func TestMutex_AfterClose(t *testing.T) {
	env := newTestEnv()

	var m *Mutex
	runScheduler(t, env.cfg, func(s *Scheduler) {
		m = NewMutex(s)
	})

	assert.ErrorIs(t, m.Lock(), ErrClosed)
	assert.ErrorIs(t, m.Unlock(), ErrClosed)
}
