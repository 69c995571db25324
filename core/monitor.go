package core

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// tickSource starts a periodic tick and returns its channel and a stop function.
type tickSource func(interval time.Duration) (<-chan time.Time, func())

func newTimeTicker(interval time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(interval)
	return t.C, t.Stop
}

// preemptMonitor requests a yield every interval. A goroutine cannot be
// interrupted from outside, so a request only raises a flag that the running
// thread acts on at its next Checkpoint. Ticks arriving while the guard is
// held are dropped and counted.
type preemptMonitor struct {
	interval time.Duration
	guard    *reentrancyGuard
	ticks    tickSource

	pending  atomic.Bool
	requests atomic.Uint64
	deferred atomic.Uint64

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func newPreemptMonitor(interval time.Duration, guard *reentrancyGuard, ticks tickSource) *preemptMonitor {
	if ticks == nil {
		ticks = newTimeTicker
	}
	return &preemptMonitor{
		interval: interval,
		guard:    guard,
		ticks:    ticks,
	}
}

// Start begins ticking; repeated calls are no-ops.
func (m *preemptMonitor) Start(ctx context.Context) {
	m.stateMu.Lock()
	if m.running {
		m.stateMu.Unlock()
		return
	}
	monitorCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	m.running = true
	m.stateMu.Unlock()

	go m.loop(monitorCtx)
}

// Stop stops ticking and waits for the loop to end; repeated calls are safe.
func (m *preemptMonitor) Stop() {
	m.stateMu.Lock()
	if !m.running {
		m.stateMu.Unlock()
		return
	}
	cancel := m.cancel
	done := m.done
	m.stateMu.Unlock()

	cancel()
	<-done

	m.stateMu.Lock()
	m.running = false
	m.cancel = nil
	m.done = nil
	m.stateMu.Unlock()
}

func (m *preemptMonitor) loop(ctx context.Context) {
	defer close(m.done)

	c, stop := m.ticks(m.interval)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c:
			m.tick()
		}
	}
}

func (m *preemptMonitor) tick() {
	if m.guard.Held() {
		m.deferred.Add(1)
		return
	}
	m.requests.Add(1)
	m.pending.Store(true)
}

// take consumes a pending request.
func (m *preemptMonitor) take() bool {
	return m.pending.CompareAndSwap(true, false)
}

// Deferred returns the number of ticks dropped inside critical sections.
func (m *preemptMonitor) Deferred() uint64 {
	return m.deferred.Load()
}

// Checkpoint is a preemption safe point. If the monitor requested a yield
// since the last checkpoint, the running thread yields as if it had called
// Yield. Without preemption enabled Checkpoint does nothing.
func (s *Scheduler) Checkpoint() error {
	m := s.monitor
	if m == nil || s.closed.Load() {
		return nil
	}
	if s.guard.Held() || !m.take() {
		return nil
	}
	s.stats.preemptions.Add(1)
	s.metrics.RecordPreemption()
	return s.Yield()
}
