package core

import (
	"fmt"
)

// =============================================================================
// PanicHandler: Interface for handling thread panics
// =============================================================================

// PanicHandler is called when a thread's entry function panics.
// The panicking thread still holds the scheduler when the handler runs, so the
// handler must not yield, join or lock.
type PanicHandler interface {
	// HandlePanic is called when a thread panics.
	//
	// Parameters:
	// - threadID: The id of the panicking thread
	// - panicInfo: The panic value recovered from the entry function
	// - stackTrace: The stack trace at the time of panic
	HandlePanic(threadID ThreadID, panicInfo any, stackTrace []byte)
}

// DefaultPanicHandler provides a basic panic handler that logs to stdout.
type DefaultPanicHandler struct{}

// HandlePanic prints panic information to stdout.
func (h *DefaultPanicHandler) HandlePanic(threadID ThreadID, panicInfo any, stackTrace []byte) {
	fmt.Printf("[Thread %d] Panic: %v\nStack trace:\n%s", threadID, panicInfo, stackTrace)
}

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Metrics defines the interface for collecting scheduler metrics.
// Implementations can send metrics to monitoring systems (Prometheus, StatsD, etc.).
//
// Methods are called while the scheduler is in a critical section: they must
// be non-blocking and must not call back into the scheduler.
type Metrics interface {
	// RecordContextSwitch records a transfer of control between two threads.
	RecordContextSwitch(from, to ThreadID, reason SwitchReason)

	// RecordYield records a pass through the yield path. rekeyed is false when the
	// amortization gate returned early.
	RecordYield(rekeyed bool)

	// RecordThreadCreated records a successful Create.
	RecordThreadCreated(id ThreadID)

	// RecordThreadExited records a thread reaching the terminated state.
	RecordThreadExited(id ThreadID)

	// RecordRunQueueDepth records the number of runnable threads.
	RecordRunQueueDepth(depth int)

	// RecordPreemption records a yield delivered by the preemption monitor.
	RecordPreemption()

	// RecordSyncError records an error returned by join or a mutex operation.
	// kind is a short label such as "deadlock" or "not_owner".
	RecordSyncError(kind string)
}

// NilMetrics provides a no-op metrics implementation that does nothing.
// This is the default when no metrics interface is provided.
type NilMetrics struct{}

func (m *NilMetrics) RecordContextSwitch(from, to ThreadID, reason SwitchReason) {}
func (m *NilMetrics) RecordYield(rekeyed bool)                                   {}
func (m *NilMetrics) RecordThreadCreated(id ThreadID)                            {}
func (m *NilMetrics) RecordThreadExited(id ThreadID)                             {}
func (m *NilMetrics) RecordRunQueueDepth(depth int)                              {}
func (m *NilMetrics) RecordPreemption()                                          {}
func (m *NilMetrics) RecordSyncError(kind string)                                {}

// =============================================================================
// StackRegistrar: debug instrumentation hook for thread stacks
// =============================================================================

// StackRegistrar is notified when a thread stack comes into and goes out of use,
// for memory checkers that need to know about foreign stacks.
type StackRegistrar interface {
	// RegisterStack returns an id later passed to DeregisterStack.
	RegisterStack(stack *Stack) int
	DeregisterStack(id int)
}

// NopStackRegistrar ignores every stack.
type NopStackRegistrar struct{}

func (NopStackRegistrar) RegisterStack(*Stack) int { return 0 }
func (NopStackRegistrar) DeregisterStack(int)      {}
