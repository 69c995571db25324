package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/Swind/go-greenthread/core"
)

func newApp() *cli.App {
	return &cli.App{
		Name:  "greenbench",
		Usage: "Run green-thread scheduling workloads",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				EnvVars: []string{"GREENBENCH_LOG_LEVEL"},
				Usage:   "Scheduler log level (trace, debug, info, warn, error)",
			},
			&cli.BoolFlag{
				Name:    "preempt",
				EnvVars: []string{"GREENBENCH_PREEMPT"},
				Usage:   "Enable the preemption monitor",
			},
			&cli.DurationFlag{
				Name:  "preempt-interval",
				Value: core.DefaultPreemptInterval,
				Usage: "Period of the preemption monitor",
			},
			&cli.IntFlag{
				Name:  "max-yields",
				Value: core.DefaultMaxYieldsBeforeRekey,
				Usage: "Cap on yields batched before a re-key (0 = no cap beyond threads created)",
			},
			&cli.Int64Flag{
				Name:  "max-cpu",
				Value: core.DefaultMaxCPUTimeBeforeRekey,
				Usage: "Cpu time in clock units after which a yield always re-keys",
			},
			&cli.StringFlag{
				Name:  "clock",
				Value: "monotonic",
				Usage: "Cpu time source: monotonic, cpu or manual",
			},
			&cli.StringFlag{
				Name:    "metrics-addr",
				EnvVars: []string{"GREENBENCH_METRICS_ADDR"},
				Usage:   "Serve Prometheus metrics on this address, e.g. :2112",
			},
			&cli.DurationFlag{
				Name:  "linger",
				Value: 0,
				Usage: "Keep serving metrics this long after the workload finished",
			},
		},
		Commands: []*cli.Command{
			priorityCommand(),
			mutexCommand(),
		},
	}
}

func newLogger(w io.Writer, level string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}).
		Level(lvl).
		With().Timestamp().Str("component", "greenbench").
		Logger(), nil
}

// configFromFlags builds the scheduler configuration from the global flags.
func configFromFlags(c *cli.Context) (*core.Config, zerolog.Logger, error) {
	logger, err := newLogger(os.Stderr, c.String("log-level"))
	if err != nil {
		return nil, logger, err
	}

	cfg := core.DefaultConfig()
	if c.Bool("preempt") {
		cfg = core.PreemptiveConfig()
	}
	cfg.PreemptInterval = c.Duration("preempt-interval")
	cfg.MaxYieldsBeforeRekey = c.Int("max-yields")
	cfg.MaxCPUTimeBeforeRekey = c.Int64("max-cpu")
	cfg.Logger = core.NewZerologLogger(logger)

	switch clock := c.String("clock"); clock {
	case "monotonic":
		cfg.Clock = core.NewMonotonicClock()
	case "cpu":
		cfg.Clock = core.NewProcessCPUClock()
	case "manual":
		cfg.Clock = core.NewManualClock(1000)
	default:
		return nil, logger, fmt.Errorf("unknown clock %q", clock)
	}

	if err := cfg.Validate(); err != nil {
		return nil, logger, err
	}
	return cfg, logger, nil
}
