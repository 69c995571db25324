package core

import (
	"fmt"
	"os"
	"time"
)

const (
	// MinPriority is the least urgent priority.
	MinPriority = 0
	// MaxPriority is the most urgent priority.
	MaxPriority = 39
	// DefaultPriority is given to every new thread.
	DefaultPriority = 20

	// DefaultStackSize is the per-thread stack size when preemption is disabled.
	DefaultStackSize = 1024 * 1024
	// PreemptiveStackSize is the per-thread stack size when preemption is enabled.
	PreemptiveStackSize = 16 * 1024

	// DefaultPreemptInterval is the period of the preemption monitor.
	DefaultPreemptInterval = 2100 * time.Microsecond

	// DefaultMaxYieldsBeforeRekey is zero: the number of batched yields is only
	// bounded by the number of threads created.
	DefaultMaxYieldsBeforeRekey = 0
	// DefaultMaxCPUTimeBeforeRekey is the cpu time, in clock units, after which a yield
	// always re-keys and dispatches.
	DefaultMaxCPUTimeBeforeRekey int64 = 2000 * 1000
)

// Config holds the tunables of a Scheduler.
// All handlers are optional; if not provided, default implementations will be used.
type Config struct {
	// StackSize is the size in bytes of the stack allocated for each created thread.
	StackSize int

	// PreemptInterval is the period of the preemption monitor.
	PreemptInterval time.Duration

	// PreemptionEnabled starts the preemption monitor.
	PreemptionEnabled bool

	// MaxYieldsBeforeRekey caps the amortization gate's yield count. The gate
	// otherwise allows as many batched yields as threads were ever created.
	// Zero means no cap.
	MaxYieldsBeforeRekey int

	// MaxCPUTimeBeforeRekey is the cpu time after which the amortization gate opens.
	MaxCPUTimeBeforeRekey int64

	// HistoryCapacity bounds the context switch history. Defaults to 100.
	HistoryCapacity int

	// Clock measures cpu time. Defaults to a MonotonicClock.
	Clock Clock

	// StackAllocator provides thread stacks. Defaults to an unbounded HeapStackAllocator.
	StackAllocator StackAllocator

	// StackRegistrar is told about every stack for debug instrumentation. Defaults to a no-op.
	StackRegistrar StackRegistrar

	// Logger receives scheduler lifecycle logs. Defaults to NoOpLogger.
	Logger Logger

	// Metrics records scheduler metrics. Defaults to NilMetrics.
	Metrics Metrics

	// PanicHandler is called when a thread's entry function panics. Defaults to DefaultPanicHandler.
	PanicHandler PanicHandler

	// Terminate ends the process. It is called once the bootstrap thread exited and
	// nothing is left to run, or with a non-zero code if a terminated thread is ever
	// resumed. Defaults to os.Exit.
	Terminate func(code int)
}

// DefaultConfig returns a cooperative configuration with default handlers.
func DefaultConfig() *Config {
	return &Config{
		StackSize:             DefaultStackSize,
		PreemptInterval:       DefaultPreemptInterval,
		PreemptionEnabled:     false,
		MaxYieldsBeforeRekey:  DefaultMaxYieldsBeforeRekey,
		MaxCPUTimeBeforeRekey: DefaultMaxCPUTimeBeforeRekey,
		HistoryCapacity:       defaultHistoryCapacity,
		Clock:                 NewMonotonicClock(),
		StackAllocator:        NewHeapStackAllocator(0),
		StackRegistrar:        NopStackRegistrar{},
		Logger:                NewNoOpLogger(),
		Metrics:               &NilMetrics{},
		PanicHandler:          &DefaultPanicHandler{},
		Terminate:             os.Exit,
	}
}

// PreemptiveConfig returns DefaultConfig with the preemption monitor enabled
// and the smaller preemptive stack size.
func PreemptiveConfig() *Config {
	c := DefaultConfig()
	c.PreemptionEnabled = true
	c.StackSize = PreemptiveStackSize
	return c
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	if c.StackSize <= 0 {
		return fmt.Errorf("stack size must be positive, got %d", c.StackSize)
	}
	if c.PreemptionEnabled && c.PreemptInterval <= 0 {
		return fmt.Errorf("preempt interval must be positive, got %v", c.PreemptInterval)
	}
	if c.MaxYieldsBeforeRekey < 0 {
		return fmt.Errorf("max yields before rekey must not be negative, got %d", c.MaxYieldsBeforeRekey)
	}
	if c.MaxCPUTimeBeforeRekey <= 0 {
		return fmt.Errorf("max cpu time before rekey must be positive, got %d", c.MaxCPUTimeBeforeRekey)
	}
	return nil
}

// withDefaults returns a copy of c with every unset handler replaced by its default.
func (c *Config) withDefaults() *Config {
	d := DefaultConfig()
	if c == nil {
		return d
	}
	out := *c
	if out.StackSize == 0 {
		out.StackSize = d.StackSize
		if out.PreemptionEnabled {
			out.StackSize = PreemptiveStackSize
		}
	}
	if out.PreemptInterval == 0 {
		out.PreemptInterval = d.PreemptInterval
	}
	if out.MaxCPUTimeBeforeRekey == 0 {
		out.MaxCPUTimeBeforeRekey = d.MaxCPUTimeBeforeRekey
	}
	if out.HistoryCapacity <= 0 {
		out.HistoryCapacity = d.HistoryCapacity
	}
	if out.Clock == nil {
		out.Clock = d.Clock
	}
	if out.StackAllocator == nil {
		out.StackAllocator = d.StackAllocator
	}
	if out.StackRegistrar == nil {
		out.StackRegistrar = d.StackRegistrar
	}
	if out.Logger == nil {
		out.Logger = d.Logger
	}
	if out.Metrics == nil {
		out.Metrics = d.Metrics
	}
	if out.PanicHandler == nil {
		out.PanicHandler = d.PanicHandler
	}
	if out.Terminate == nil {
		out.Terminate = d.Terminate
	}
	return &out
}
