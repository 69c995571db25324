package core

import (
	"fmt"
	"sync"
)

// Stack is the memory region exclusively owned by one thread. The Go runtime
// runs the thread on its own goroutine stack; this region is the thread's
// private scratch memory and the unit of allocation accounting.
type Stack struct {
	mem   []byte
	freed bool
}

// Bytes returns the stack memory. It must not be used after the owning thread was joined.
func (s *Stack) Bytes() []byte { return s.mem }

// Size returns the stack size in bytes.
func (s *Stack) Size() int { return len(s.mem) }

// StackAllocator provides and reclaims thread stacks. It is only called by the
// thread holding the scheduler, but may be shared between schedulers.
type StackAllocator interface {
	Allocate(size int) (*Stack, error)
	Free(stack *Stack)
}

// StackAllocatorStats is a snapshot of a HeapStackAllocator.
type StackAllocatorStats struct {
	Allocations uint64
	Frees       uint64
	DoubleFrees uint64
	InUseBytes  int64
	LimitBytes  int64
}

// HeapStackAllocator allocates stacks on the Go heap, optionally within a byte budget.
type HeapStackAllocator struct {
	mu    sync.Mutex
	stats StackAllocatorStats
}

// NewHeapStackAllocator returns an allocator refusing to hold more than limit
// bytes at once. A limit of zero means unbounded.
func NewHeapStackAllocator(limit int64) *HeapStackAllocator {
	return &HeapStackAllocator{stats: StackAllocatorStats{LimitBytes: limit}}
}

func (a *HeapStackAllocator) Allocate(size int) (*Stack, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: invalid stack size %d", ErrAllocation, size)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stats.LimitBytes > 0 && a.stats.InUseBytes+int64(size) > a.stats.LimitBytes {
		return nil, fmt.Errorf("%w: stack of %d bytes exceeds budget (%d of %d in use)",
			ErrAllocation, size, a.stats.InUseBytes, a.stats.LimitBytes)
	}
	a.stats.Allocations++
	a.stats.InUseBytes += int64(size)
	return &Stack{mem: make([]byte, size)}, nil
}

// Free releases stack. Freeing nil is a no-op; freeing twice is counted and ignored.
func (a *HeapStackAllocator) Free(stack *Stack) {
	if stack == nil {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if stack.freed {
		a.stats.DoubleFrees++
		return
	}
	stack.freed = true
	a.stats.Frees++
	a.stats.InUseBytes -= int64(len(stack.mem))
	stack.mem = nil
}

// Stats returns a snapshot of the allocator counters.
func (a *HeapStackAllocator) Stats() StackAllocatorStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}
