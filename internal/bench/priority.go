// Package bench holds the workloads run by the greenbench command.
package bench

import (
	"fmt"

	"github.com/Swind/go-greenthread/core"
)

// PriorityOptions configures the weighted fairness workload. Index 0 and 1
// are created threads, index 2 is the bootstrap thread.
type PriorityOptions struct {
	Priorities [3]int
	Caps       [3]int
}

// DefaultPriorityOptions returns priorities 23, 17 and 20 with caps 2000, 500
// and 1000: caps proportional to the priority weights, so a fair scheduler
// brings every participant close to its cap at the same time.
func DefaultPriorityOptions() PriorityOptions {
	return PriorityOptions{
		Priorities: [3]int{23, 17, core.DefaultPriority},
		Caps:       [3]int{2000, 500, 1000},
	}
}

// PriorityResult is the outcome of RunPriority.
type PriorityResult struct {
	// Counts are the final iteration counts.
	Counts [3]int
	// AtFinish are the counts when the first participant reached its cap.
	AtFinish [3]int
	// Finisher is the participant that reached its cap first, -1 if none did.
	Finisher int
	// Score is the mean progress towards the caps at finish, in [0, 1].
	Score float64
	Stats core.SchedulerStats
}

// RunPriority runs the fairness workload. It must be called from the
// bootstrap thread of s. Every participant loops on Yield until one of them
// reaches its cap.
func RunPriority(s *core.Scheduler, opts PriorityOptions) (PriorityResult, error) {
	res := PriorityResult{Finisher: -1}
	for i, c := range opts.Caps {
		if c <= 0 {
			return res, fmt.Errorf("cap %d must be positive, got %d", i, c)
		}
	}

	finished := false
	var yieldErr error
	work := func(id int) {
		for i := 0; i < opts.Caps[id] && !finished; i++ {
			if err := s.Yield(); err != nil {
				yieldErr = err
				return
			}
			res.Counts[id]++
			if res.Counts[id] == opts.Caps[id] && !finished {
				finished = true
				res.Finisher = id
				res.AtFinish = res.Counts
			}
		}
	}
	entry := func(arg any) any {
		work(arg.(int))
		return nil
	}

	if err := s.SetPriority(s.Self(), opts.Priorities[2]); err != nil {
		return res, err
	}
	var threads [2]*core.Thread
	for i := range threads {
		th, err := s.Create(entry, i)
		if err != nil {
			return res, err
		}
		if err := s.SetPriority(th, opts.Priorities[i]); err != nil {
			return res, err
		}
		threads[i] = th
	}

	work(2)

	for i := len(threads) - 1; i >= 0; i-- {
		if _, err := s.Join(threads[i]); err != nil {
			return res, fmt.Errorf("join participant %d: %w", i, err)
		}
	}
	if yieldErr != nil {
		return res, yieldErr
	}

	res.Score = score(res.AtFinish, opts.Caps)
	res.Stats = s.Stats()
	return res, nil
}

// score weighs every count by the largest cap over its own cap, so that each
// participant at its cap contributes equally.
func score(counts, caps [3]int) float64 {
	largest := 0
	for _, c := range caps {
		largest = max(largest, c)
	}
	total := 0.0
	for i, v := range counts {
		total += float64(v) * float64(largest) / float64(caps[i])
	}
	return total / float64(len(caps)*largest)
}
