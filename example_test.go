package greenthread_test

import (
	"fmt"

	greenthread "github.com/Swind/go-greenthread"
)

// ExampleRun demonstrates creating and joining a thread with only one import.
func ExampleRun() {
	err := greenthread.Run(nil, func(s *greenthread.Scheduler) error {
		th, err := s.Create(func(arg any) any {
			return fmt.Sprintf("hello, %s", arg)
		}, "green thread")
		if err != nil {
			return err
		}

		ret, err := s.Join(th)
		if err != nil {
			return err
		}
		fmt.Println(ret)
		return nil
	})
	fmt.Println(err)

	// Output:
	// hello, green thread
	// <nil>
}

// ExampleMutex demonstrates a critical section that spans yields.
func ExampleMutex() {
	_ = greenthread.Run(nil, func(s *greenthread.Scheduler) error {
		m := greenthread.NewMutex(s)
		balance := 0

		deposit := func(arg any) any {
			for range 10 {
				if err := m.Lock(); err != nil {
					return err
				}
				v := balance
				_ = s.Yield()
				balance = v + arg.(int)
				if err := m.Unlock(); err != nil {
					return err
				}
			}
			return nil
		}

		var threads []*greenthread.Thread
		for _, amount := range []int{1, 10, 100} {
			th, err := s.Create(deposit, amount)
			if err != nil {
				return err
			}
			threads = append(threads, th)
		}

		results, err := greenthread.JoinAll(s, threads...)
		if err != nil {
			return err
		}
		fmt.Println("results:", results)
		fmt.Println("balance:", balance)
		return nil
	})

	// Output:
	// results: [<nil> <nil> <nil>]
	// balance: 1110
}

// ExampleScheduler_SetPriority demonstrates reading and changing priorities.
func ExampleScheduler_SetPriority() {
	_ = greenthread.Run(nil, func(s *greenthread.Scheduler) error {
		th, err := s.Create(func(any) any { return nil }, nil)
		if err != nil {
			return err
		}

		p, _ := s.GetPriority(th)
		fmt.Println("default:", p)

		_ = s.SetPriority(th, greenthread.MaxPriority)
		p, _ = s.GetPriority(th)
		fmt.Println("raised:", p)

		err = s.SetPriority(th, 100)
		fmt.Println(err)

		_, err = s.Join(th)
		return err
	})

	// Output:
	// default: 20
	// raised: 39
	// greenthread: priority out of range: 100 not in [0, 39]
}
