package greenthread

import "github.com/Swind/go-greenthread/core"

// Re-export commonly used types from core package for convenience.
// This allows users to import only the greenthread package for most use cases.

// Scheduler multiplexes green threads onto one execution stream
type Scheduler = core.Scheduler

// Thread is the control block of a green thread
type Thread = core.Thread

// ThreadID identifies a thread
type ThreadID = core.ThreadID

// ThreadFunc is the entry function of a thread
type ThreadFunc = core.ThreadFunc

// Mutex is a green-thread mutex
type Mutex = core.Mutex

// Config holds the scheduler tunables
type Config = core.Config

// SchedulerStats is a point-in-time view of a scheduler
type SchedulerStats = core.SchedulerStats

// PanicError is the return value of a thread that panicked
type PanicError = core.PanicError

// Priority constants
const (
	MinPriority     = core.MinPriority
	MaxPriority     = core.MaxPriority
	DefaultPriority = core.DefaultPriority
)

// Errors
var (
	ErrAllocation         = core.ErrAllocation
	ErrInvalidHandle      = core.ErrInvalidHandle
	ErrPriorityOutOfRange = core.ErrPriorityOutOfRange
	ErrDeadlock           = core.ErrDeadlock
	ErrNotOwner           = core.ErrNotOwner
	ErrAlreadyJoined      = core.ErrAlreadyJoined
	ErrMutexBusy          = core.ErrMutexBusy
	ErrClosed             = core.ErrClosed
	ErrNotBootstrap       = core.ErrNotBootstrap
)

// Constructors
var (
	New              = core.New
	NewMutex         = core.NewMutex
	DefaultConfig    = core.DefaultConfig
	PreemptiveConfig = core.PreemptiveConfig
)
