package core

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// assertResidency checks that every thread is in the run queue exactly when it
// is ready and not blocked in a join or a lock, and that the tree is balanced.
func assertResidency(t *testing.T, s *Scheduler, mutexes []*Mutex) bool {
	blocked := make(map[*Thread]bool)
	for _, m := range mutexes {
		for w := m.head; w != nil; w = w.mutexNext {
			blocked[w] = true
		}
	}
	for _, th := range s.threads {
		if th.state != StateTerminated && th.waiter != nil {
			blocked[th.waiter] = true
		}
	}

	ok := assert.NoError(t, s.tree.Verify())
	for _, th := range s.threads {
		want := th.state == StateReady && !blocked[th]
		ok = assert.Equalf(t, want, th.scheduled(), "run queue residency of %s (%s, blocked=%v)", th, th.state, blocked[th]) && ok
	}
	return ok
}

// TestScheduler_RandomOperationsKeepResidency verifies run queue bookkeeping
// Given: Workers performing a seeded random mix of yields, locks, joins of
// spawned children, priority changes and early exits
// When: The bootstrap thread randomly creates, yields to and joins them
// Then: After every step a thread is queued iff it is ready and not blocked,
// the tree stays valid, and every worker is joined with its own id
func TestScheduler_RandomOperationsKeepResidency(t *testing.T) {
	for _, seed := range []uint64{1, 7, 42, 1234, 99991} {
		t.Run(fmt.Sprintf("seed=%d", seed), func(t *testing.T) {
			env := newTestEnv()
			runScheduler(t, env.cfg, func(s *Scheduler) {
				runRandomWorkload(t, s, rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
			})

			st := env.alloc.Stats()
			assert.Equal(t, st.Allocations, st.Frees)
			assert.Zero(t, st.DoubleFrees)
		})
	}
}

func runRandomWorkload(t *testing.T, s *Scheduler, rng *rand.Rand) {
	mutexes := []*Mutex{NewMutex(s), NewMutex(s)}
	check := func() { assertResidency(t, s, mutexes) }

	worker := func(arg any) any {
		id := arg.(int)
		for range 30 {
			switch rng.IntN(6) {
			case 0:
				assert.NoError(t, s.Yield())
			case 1:
				m := mutexes[rng.IntN(len(mutexes))]
				assert.NoError(t, m.Lock())
				check()
				spin(s, rng.IntN(3))
				check()
				assert.NoError(t, m.Unlock())
			case 2:
				if m := mutexes[rng.IntN(len(mutexes))]; m.TryLock() {
					check()
					assert.NoError(t, s.Yield())
					assert.NoError(t, m.Unlock())
				}
			case 3:
				n := rng.IntN(4)
				child, err := s.Create(func(any) any {
					spin(s, n)
					check()
					return n
				}, nil)
				if !assert.NoError(t, err) {
					break
				}
				check()
				ret, err := s.Join(child)
				assert.NoError(t, err)
				assert.Equal(t, n, ret)
			case 4:
				assert.NoError(t, s.SetPriority(s.Self(), rng.IntN(MaxPriority+1)))
			case 5:
				if rng.IntN(4) == 0 {
					s.Exit(id)
				}
				assert.NoError(t, s.Yield())
			}
			check()
		}
		return id
	}

	type liveWorker struct {
		th *Thread
		id int
	}
	var live []liveWorker
	next := 0
	pick := func() int { return rng.IntN(len(live)) }
	join := func(i int) {
		w := live[i]
		live = append(live[:i], live[i+1:]...)
		ret, err := s.Join(w.th)
		assert.NoError(t, err)
		assert.Equal(t, w.id, ret)
	}

	for range 60 {
		switch op := rng.IntN(4); {
		case op == 0 && len(live) < 6:
			th, err := s.Create(worker, next)
			require.NoError(t, err)
			live = append(live, liveWorker{th: th, id: next})
			next++
		case op == 2 && len(live) > 0:
			join(pick())
		case op == 3 && len(live) > 0:
			assert.NoError(t, s.SetPriority(live[pick()].th, rng.IntN(MaxPriority+1)))
		default:
			spin(s, 1+rng.IntN(3))
		}
		check()
	}

	for len(live) > 0 {
		join(pick())
		check()
	}
	assert.Equal(t, 1, s.Threads())
	for _, m := range mutexes {
		assert.Nil(t, m.Owner())
		assert.Nil(t, m.head)
	}
}
