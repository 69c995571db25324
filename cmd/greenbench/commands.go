package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/Swind/go-greenthread/core"
	"github.com/Swind/go-greenthread/internal/bench"
)

func priorityCommand() *cli.Command {
	defaults := bench.DefaultPriorityOptions()
	return &cli.Command{
		Name:    "priority",
		Aliases: []string{"p"},
		Usage:   "Three participants at different priorities yield until one reaches its cap",

		Flags: []cli.Flag{
			&cli.IntSliceFlag{
				Name:  "priorities",
				Value: cli.NewIntSlice(defaults.Priorities[:]...),
				Usage: "Priorities of thread 1, thread 2 and the bootstrap thread",
			},
			&cli.IntSliceFlag{
				Name:  "caps",
				Value: cli.NewIntSlice(defaults.Caps[:]...),
				Usage: "Iteration caps of thread 1, thread 2 and the bootstrap thread",
			},
			&cli.Float64Flag{
				Name:  "min-score",
				Value: 0.5,
				Usage: "Fail when the fairness score is below this value",
			},
		},

		Action: priorityAction,
	}
}

func priorityAction(c *cli.Context) error {
	// 1. Get flags
	var opts bench.PriorityOptions
	priorities := c.IntSlice("priorities")
	caps := c.IntSlice("caps")

	// 2. Validate (format only)
	if len(priorities) != 3 || len(caps) != 3 {
		return cli.Exit("priorities and caps take exactly three values", 1)
	}
	copy(opts.Priorities[:], priorities)
	copy(opts.Caps[:], caps)

	cfg, logger, err := configFromFlags(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	// 3. Run the workload
	var res bench.PriorityResult
	err = runWorkload(c, cfg, logger, func(s *core.Scheduler) error {
		var err error
		res, err = bench.RunPriority(s, opts)
		return err
	})
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}

	// 4. Format output
	out := c.App.Writer
	fmt.Fprintf(out, "participant %d reached its cap first\n", res.Finisher)
	fmt.Fprintf(out, "yields at finish: %d %d %d\n", res.AtFinish[0], res.AtFinish[1], res.AtFinish[2])
	fmt.Fprintf(out, "score: %f\n", res.Score)
	fmt.Fprintf(out, "switches: %d, re-keys: %d, preemptions: %d\n",
		res.Stats.Switches, res.Stats.Rekeys, res.Stats.Preemptions)

	if res.Score < c.Float64("min-score") {
		return cli.Exit(fmt.Sprintf("score %f below %f", res.Score, c.Float64("min-score")), 2)
	}
	return nil
}

func mutexCommand() *cli.Command {
	defaults := bench.DefaultMutexOptions()
	return &cli.Command{
		Name:    "mutex",
		Aliases: []string{"m"},
		Usage:   "Threads increment a shared counter under one mutex",

		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "threads",
				Value: defaults.Threads,
				Usage: "Number of contending threads",
			},
			&cli.IntFlag{
				Name:  "iterations",
				Value: defaults.Iterations,
				Usage: "Increments per thread",
			},
			&cli.IntFlag{
				Name:  "hold-yields",
				Value: defaults.HoldYields,
				Usage: "Yields made while holding the mutex",
			},
		},

		Action: mutexAction,
	}
}

func mutexAction(c *cli.Context) error {
	opts := bench.MutexOptions{
		Threads:    c.Int("threads"),
		Iterations: c.Int("iterations"),
		HoldYields: c.Int("hold-yields"),
	}
	if opts.Threads <= 0 {
		return cli.Exit("threads must be positive", 1)
	}

	cfg, logger, err := configFromFlags(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	var res bench.MutexResult
	err = runWorkload(c, cfg, logger, func(s *core.Scheduler) error {
		var err error
		res, err = bench.RunMutex(s, opts)
		return err
	})
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}

	out := c.App.Writer
	fmt.Fprintf(out, "counter: %d (expected %d)\n", res.Counter, res.Expected)
	fmt.Fprintf(out, "max waiters: %d\n", res.MaxWaiters)
	fmt.Fprintf(out, "switches: %d, re-keys: %d\n", res.Stats.Switches, res.Stats.Rekeys)

	if res.Counter != res.Expected {
		return cli.Exit("lost updates under the mutex", 2)
	}
	return nil
}
