package greenthread

import (
	"errors"
	"fmt"
)

// Run creates a scheduler with cfg, runs main on its bootstrap thread, the
// calling goroutine, and closes the scheduler when main returns. Threads main
// did not join are unwound, running only their deferred calls, and reclaimed.
//
// A nil cfg means DefaultConfig.
func Run(cfg *Config, main func(s *Scheduler) error) error {
	s, err := New(cfg)
	if err != nil {
		return err
	}

	mainErr := main(s)
	if closeErr := s.Close(); closeErr != nil {
		return errors.Join(mainErr, fmt.Errorf("close scheduler: %w", closeErr))
	}
	return mainErr
}

// JoinAll joins threads in order and returns their return values. It stops
// at the first failing join.
func JoinAll(s *Scheduler, threads ...*Thread) ([]any, error) {
	results := make([]any, 0, len(threads))
	for i, th := range threads {
		ret, err := s.Join(th)
		if err != nil {
			return results, fmt.Errorf("join thread #%d: %w", i, err)
		}
		results = append(results, ret)
	}
	return results, nil
}
