// Package greenthread provides user-space green threads multiplexed onto a
// single logical execution stream, scheduled by priority-weighted virtual
// runtime.
//
// Exactly one green thread runs at a time. A thread keeps running until it
// yields, blocks in a join or a lock, or exits; the scheduler then dispatches
// the runnable thread with the smallest virtual runtime. Threads of higher
// priority accumulate virtual runtime more slowly and so get more turns.
//
// # Quick Start
//
// The goroutine that creates a Scheduler becomes its bootstrap thread:
//
//	err := greenthread.Run(nil, func(s *greenthread.Scheduler) error {
//		th, err := s.Create(func(arg any) any {
//			for i := 0; i < 3; i++ {
//				fmt.Println("worker", i)
//				s.Yield()
//			}
//			return "done"
//		}, nil)
//		if err != nil {
//			return err
//		}
//		ret, err := s.Join(th)
//		fmt.Println(ret)
//		return err
//	})
//
// # Key Concepts
//
// Scheduler: owns the run queue, a red-black tree ordered by virtual runtime.
// All of its methods except Stats and RecentSwitches must be called from one
// of its threads.
//
// Yield: charges the running thread for the cpu time it used, scaled by its
// priority weight. Yields are batched: a thread keeps the processor for a few
// yields before it is re-keyed and another thread is dispatched.
//
// Join and Mutex: block the running thread by taking it out of the run queue
// until the joined thread exits or the mutex is handed over.
//
// Preemption: with Config.PreemptionEnabled a monitor requests a yield every
// PreemptInterval. A goroutine cannot be interrupted from outside, so the
// request is served at the next Scheduler.Checkpoint call.
//
// For more details, see https://github.com/Swind/go-greenthread
package greenthread
