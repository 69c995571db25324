package core

import (
	"errors"
	"fmt"
)

var (
	// ErrAllocation is returned by Create when the thread or its stack cannot be allocated.
	ErrAllocation = errors.New("greenthread: allocation failed")

	// ErrInvalidHandle is returned for nil, foreign or already reclaimed thread handles
	// and for mutexes that were never initialized.
	ErrInvalidHandle = errors.New("greenthread: invalid handle")

	// ErrPriorityOutOfRange is returned by SetPriority for values outside [MinPriority, MaxPriority].
	ErrPriorityOutOfRange = errors.New("greenthread: priority out of range")

	// ErrDeadlock is returned when a join or lock can never complete.
	ErrDeadlock = errors.New("greenthread: deadlock")

	// ErrNotOwner is returned by Unlock when the caller does not own the mutex.
	ErrNotOwner = errors.New("greenthread: mutex not owned by caller")

	// ErrAlreadyJoined is returned when a second thread joins a target that already has a waiter.
	ErrAlreadyJoined = errors.New("greenthread: thread already has a joiner")

	// ErrMutexBusy is returned by Destroy on a locked mutex.
	ErrMutexBusy = errors.New("greenthread: mutex is locked")

	// ErrClosed is returned by every operation after the scheduler was closed.
	ErrClosed = errors.New("greenthread: scheduler closed")

	// ErrNotBootstrap is returned by Close when called from a thread other than the bootstrap thread.
	ErrNotBootstrap = errors.New("greenthread: not called from the bootstrap thread")
)

// PanicError is the return value of a thread whose entry function panicked.
type PanicError struct {
	ThreadID ThreadID
	Value    any
	Stack    []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("greenthread: thread %d panicked: %v", e.ThreadID, e.Value)
}
