package bench

import (
	"fmt"

	"github.com/Swind/go-greenthread/core"
)

// MutexOptions configures the mutex contention workload.
type MutexOptions struct {
	Threads    int
	Iterations int
	// HoldYields is the number of yields made while holding the mutex.
	HoldYields int
}

// DefaultMutexOptions returns 4 threads doing 100 iterations each.
func DefaultMutexOptions() MutexOptions {
	return MutexOptions{Threads: 4, Iterations: 100, HoldYields: 2}
}

// MutexResult is the outcome of RunMutex.
type MutexResult struct {
	Counter    int
	Expected   int
	MaxWaiters int
	Stats      core.SchedulerStats
}

// RunMutex runs threads that increment a shared counter under a mutex,
// yielding while they hold it. It must be called from the bootstrap thread of s.
func RunMutex(s *core.Scheduler, opts MutexOptions) (MutexResult, error) {
	res := MutexResult{Expected: opts.Threads * opts.Iterations}
	if opts.Threads <= 0 || opts.Iterations < 0 || opts.HoldYields < 0 {
		return res, fmt.Errorf("invalid mutex workload %+v", opts)
	}

	m := core.NewMutex(s)
	entry := func(any) any {
		for range opts.Iterations {
			if err := m.Lock(); err != nil {
				return err
			}
			v := res.Counter
			for range opts.HoldYields {
				if err := s.Yield(); err != nil {
					return err
				}
			}
			res.Counter = v + 1
			res.MaxWaiters = max(res.MaxWaiters, m.Waiters())
			if err := m.Unlock(); err != nil {
				return err
			}
			if err := s.Yield(); err != nil {
				return err
			}
		}
		return nil
	}

	threads := make([]*core.Thread, 0, opts.Threads)
	for range opts.Threads {
		th, err := s.Create(entry, nil)
		if err != nil {
			return res, err
		}
		threads = append(threads, th)
	}

	for i, th := range threads {
		ret, err := s.Join(th)
		if err != nil {
			return res, fmt.Errorf("join worker %d: %w", i, err)
		}
		if err, ok := ret.(error); ok && err != nil {
			return res, fmt.Errorf("worker %d: %w", i, err)
		}
	}

	if err := m.Destroy(); err != nil {
		return res, err
	}
	res.Stats = s.Stats()
	return res, nil
}
