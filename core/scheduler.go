package core

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"maps"
	"math"
	"runtime/debug"
	"slices"
	"sync/atomic"

	"github.com/Swind/go-greenthread/rbtree"
)

// Scheduler multiplexes green threads onto a single logical execution stream.
//
// The goroutine calling New becomes the bootstrap thread. Every other method
// must be called from a thread of this scheduler, that is from the bootstrap
// goroutine or from inside a ThreadFunc; Stats and RecentSwitches are the
// exceptions and may be called from anywhere.
//
// Runnable threads live in a red-black tree keyed by virtual runtime. A
// thread is in the tree iff it is ready and not blocked in a join or a lock.
type Scheduler struct {
	cfg     *Config
	logger  Logger
	metrics Metrics

	// Owned by whichever thread is running.
	tree      *rbtree.Tree[int64, *Thread]
	threads   map[ThreadID]*Thread
	bootstrap *Thread
	current   *Thread
	nextID    ThreadID
	mark      int64

	guard   reentrancyGuard
	monitor *preemptMonitor
	history *switchHistory
	stats   schedulerCounters

	closed atomic.Bool
}

type schedulerCounters struct {
	current     atomic.Uint64
	live        atomic.Int64
	runnable    atomic.Int64
	created     atomic.Uint64
	exited      atomic.Uint64
	switches    atomic.Uint64
	yields      atomic.Uint64
	rekeys      atomic.Uint64
	preemptions atomic.Uint64
}

// exitSignal unwinds a thread's entry function on Exit so that its deferred
// calls run while it still holds the scheduler.
type exitSignal struct {
	value any
}

// New creates a scheduler and binds the calling goroutine as its bootstrap
// thread. A nil cfg means DefaultConfig.
func New(cfg *Config) (*Scheduler, error) {
	c := cfg.withDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scheduler config: %w", err)
	}

	s := &Scheduler{
		cfg:     c,
		logger:  c.Logger,
		metrics: c.Metrics,
		tree:    rbtree.New[int64, *Thread](),
		threads: make(map[ThreadID]*Thread),
		nextID:  BootstrapID,
		history: newSwitchHistory(c.HistoryCapacity),
	}

	boot := newThread(s, s.nextID)
	s.nextID++
	boot.name = "bootstrap"
	boot.bootstrap = true
	boot.node = s.tree.Alloc(0, boot)
	s.threads[boot.id] = boot
	s.bootstrap = boot
	s.current = boot
	s.stats.current.Store(uint64(boot.id))
	s.stats.live.Store(1)
	s.enqueue(boot)
	s.mark = c.Clock.Now()

	if c.PreemptionEnabled {
		s.monitor = newPreemptMonitor(c.PreemptInterval, &s.guard, nil)
		s.monitor.Start(context.Background())
	}

	s.logger.Debug("scheduler started",
		F("preemption", c.PreemptionEnabled),
		F("stack_size", c.StackSize))
	return s, nil
}

// Close stops the preemption monitor and reclaims every thread other than the
// bootstrap thread. Threads that never finished are unwound one at a time in
// id order: each gets the processor back only to run its deferred calls, in
// which every scheduler operation returns ErrClosed, and Close waits for it
// to end before moving on. A deferred call that blocks forever blocks Close.
// Close must be called from the bootstrap thread.
func (s *Scheduler) Close() error {
	if s.closed.Load() {
		return nil
	}
	if s.current != s.bootstrap {
		return ErrNotBootstrap
	}

	restore := s.guard.suppress()
	defer restore()

	if s.monitor != nil {
		s.monitor.Stop()
	}
	s.closed.Store(true)

	abandoned := 0
	for _, id := range slices.Sorted(maps.Keys(s.threads)) {
		t := s.threads[id]
		if t.bootstrap {
			continue
		}
		if t.state == StateTerminated {
			<-t.ctx.exited
		} else {
			abandoned++
			s.setCurrent(t)
			t.ctx.unwind()
			s.setCurrent(s.bootstrap)
		}
		s.reclaim(t)
	}

	s.logger.Debug("scheduler closed", F("abandoned_threads", abandoned))
	return nil
}

// Create starts a new thread running fn(arg) and makes it runnable with
// virtual runtime 0. The new thread first runs when the caller next yields.
func (s *Scheduler) Create(fn ThreadFunc, arg any) (*Thread, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	if fn == nil {
		return nil, fmt.Errorf("%w: nil entry function", ErrInvalidHandle)
	}

	stack, err := s.cfg.StackAllocator.Allocate(s.cfg.StackSize)
	if err != nil {
		s.logger.Warn("thread stack allocation failed", F("size", s.cfg.StackSize), F("error", err))
		return nil, allocationError(err)
	}

	restore := s.guard.suppress()
	defer restore()

	t := newThread(s, s.nextID)
	s.nextID++
	t.name = resolveEntryName(fn)
	t.stack = stack
	t.stackID = s.cfg.StackRegistrar.RegisterStack(stack)
	t.node = s.tree.Alloc(0, t)
	s.threads[t.id] = t

	go s.trampoline(t, fn, arg)

	s.enqueue(t)
	s.stats.live.Add(1)
	s.stats.created.Add(1)
	s.metrics.RecordThreadCreated(t.id)
	s.logger.Debug("thread created", F("thread", t.id), F("entry", t.name))
	return t, nil
}

func allocationError(err error) error {
	if err == nil {
		return ErrAllocation
	}
	if errors.Is(err, ErrAllocation) {
		return fmt.Errorf("create thread: %w", err)
	}
	return fmt.Errorf("create thread: %w: %w", ErrAllocation, err)
}

// Self returns the running thread.
func (s *Scheduler) Self() *Thread {
	return s.current
}

// Bootstrap returns the bootstrap thread.
func (s *Scheduler) Bootstrap() *Thread {
	return s.bootstrap
}

// Yield offers the processor to other threads. The running thread keeps it
// until it has yielded as many times as threads were created or has used up
// MaxCPUTimeBeforeRekey; then its virtual runtime grows by the cpu time it
// used, scaled by its priority weight, and the thread with the smallest
// virtual runtime runs next.
func (s *Scheduler) Yield() error {
	if s.closed.Load() {
		return ErrClosed
	}
	restore := s.guard.suppress()
	defer restore()

	s.reschedule()
	return nil
}

// reschedule is the body of Yield. The guard must be held.
func (s *Scheduler) reschedule() {
	cur := s.current

	now := s.cfg.Clock.Now()
	elapsed := max(now-s.mark, 0)
	if cur.Key() == 0 && cur.cpuTimeSinceRekey == 0 {
		// A thread that never ran to a re-key is charged a single unit.
		elapsed = 1
	}
	s.mark = now
	cur.cpuTimeSinceRekey += elapsed
	cur.yieldsSinceRekey++
	s.stats.yields.Add(1)

	scheduled := cur.scheduled()
	if scheduled &&
		cur.yieldsSinceRekey < s.yieldBudget() &&
		cur.cpuTimeSinceRekey < s.cfg.MaxCPUTimeBeforeRekey {
		s.metrics.RecordYield(false)
		return
	}

	increment := saturatingMul(cur.cpuTimeSinceRekey, priorityWeight[cur.priority])
	cur.yieldsSinceRekey = 0
	cur.cpuTimeSinceRekey = 0
	s.tree.SetKey(cur.node, saturatingAdd(cur.Key(), increment))
	s.stats.rekeys.Add(1)
	s.metrics.RecordYield(true)

	if s.tree.Empty() {
		s.fallback(cur)
	} else if next := s.tree.Value(s.tree.Min()); next != cur {
		s.switchTo(cur, next, switchReason(cur))
	}

	s.mark = s.cfg.Clock.Now()
}

// yieldBudget is the number of yields the amortization gate lets through.
func (s *Scheduler) yieldBudget() int {
	budget := int(s.nextID - 1)
	if limit := s.cfg.MaxYieldsBeforeRekey; limit > 0 && budget > limit {
		budget = limit
	}
	return budget
}

// fallback hands control to the bootstrap thread when nothing is runnable.
func (s *Scheduler) fallback(cur *Thread) {
	boot := s.bootstrap
	if cur == boot {
		return
	}
	boot.pending = cur
	s.logger.Debug("run queue empty, falling back to bootstrap thread", F("from", cur.id))
	s.switchTo(cur, boot, SwitchFallback)
}

func (s *Scheduler) switchTo(from, to *Thread, reason SwitchReason) {
	seq := s.stats.switches.Add(1)
	s.history.Add(SwitchRecord{
		Seq:     seq,
		From:    from.id,
		To:      to.id,
		FromKey: from.Key(),
		ToKey:   to.Key(),
		Reason:  reason,
	})
	s.metrics.RecordContextSwitch(from.id, to.id, reason)

	s.setCurrent(to)
	switchContext(from, to)
}

func (s *Scheduler) setCurrent(t *Thread) {
	s.current = t
	s.stats.current.Store(uint64(t.id))
}

func switchReason(t *Thread) SwitchReason {
	switch {
	case t.state == StateTerminated:
		return SwitchExited
	case !t.scheduled():
		return SwitchBlocked
	default:
		return SwitchYield
	}
}

// trampoline is the body of every created thread's goroutine.
func (s *Scheduler) trampoline(t *Thread, fn ThreadFunc, arg any) {
	defer close(t.ctx.exited)
	t.ctx.park()

	s.mark = s.cfg.Clock.Now()
	s.guard.reset()

	s.finishExit(t, s.runEntry(t, fn, arg))
}

func (s *Scheduler) runEntry(t *Thread, fn ThreadFunc, arg any) (ret any) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if sig, ok := r.(exitSignal); ok {
			ret = sig.value
			return
		}
		stack := debug.Stack()
		s.cfg.PanicHandler.HandlePanic(t.id, r, stack)
		s.logger.Error("thread panicked", F("thread", t.id), F("panic", r))
		ret = &PanicError{ThreadID: t.id, Value: r, Stack: stack}
	}()
	return fn(arg)
}

func (s *Scheduler) enqueue(t *Thread) {
	s.tree.Insert(t.node)
	s.queueChanged()
}

func (s *Scheduler) dequeue(t *Thread) {
	s.tree.Remove(t.node)
	s.queueChanged()
}

func (s *Scheduler) queueChanged() {
	n := s.tree.Len()
	s.stats.runnable.Store(int64(n))
	s.metrics.RecordRunQueueDepth(n)
}

// reclaim frees everything t owns. t must not be the bootstrap thread.
func (s *Scheduler) reclaim(t *Thread) {
	s.cfg.StackRegistrar.DeregisterStack(t.stackID)
	s.cfg.StackAllocator.Free(t.stack)
	t.stack = nil

	s.dequeue(t)
	s.tree.Release(t.node)
	t.node = rbtree.Nil
	t.reclaimed = true

	delete(s.threads, t.id)
	if s.bootstrap.pending == t {
		s.bootstrap.pending = nil
	}
	s.stats.live.Add(-1)
}

// lookup validates a handle passed in by a caller.
func (s *Scheduler) lookup(t *Thread) error {
	switch {
	case t == nil:
		return fmt.Errorf("%w: nil thread", ErrInvalidHandle)
	case t.sched != s:
		return fmt.Errorf("%w: thread %d belongs to another scheduler", ErrInvalidHandle, t.id)
	case t.reclaimed:
		return fmt.Errorf("%w: thread %d was already joined", ErrInvalidHandle, t.id)
	}
	return nil
}

// Threads returns the number of live threads, bootstrap included.
func (s *Scheduler) Threads() int {
	return int(s.stats.live.Load())
}

// Stats returns a snapshot of the scheduler counters. Safe from any goroutine.
func (s *Scheduler) Stats() SchedulerStats {
	st := SchedulerStats{
		Current:     ThreadID(s.stats.current.Load()),
		Live:        int(s.stats.live.Load()),
		Runnable:    int(s.stats.runnable.Load()),
		Created:     s.stats.created.Load(),
		Exited:      s.stats.exited.Load(),
		Switches:    s.stats.switches.Load(),
		Yields:      s.stats.yields.Load(),
		Rekeys:      s.stats.rekeys.Load(),
		Preemptions: s.stats.preemptions.Load(),
		Closed:      s.closed.Load(),
	}
	if s.monitor != nil {
		st.PreemptsDeferred = s.monitor.Deferred()
	}
	return st
}

// RecentSwitches returns up to limit context switches, newest first. Safe from any goroutine.
func (s *Scheduler) RecentSwitches(limit int) []SwitchRecord {
	return s.history.Recent(limit)
}

// Snapshot describes every live thread.
func (s *Scheduler) Snapshot() Snapshot {
	var snap Snapshot
	if s.closed.Load() {
		return snap
	}
	restore := s.guard.suppress()
	defer restore()

	s.tree.Ascend(func(h rbtree.Handle) bool {
		snap.Threads = append(snap.Threads, s.describe(s.tree.Value(h)))
		return true
	})

	var blocked []ThreadInfo
	for _, t := range s.threads {
		if !t.scheduled() {
			blocked = append(blocked, s.describe(t))
		}
	}
	slices.SortFunc(blocked, func(a, b ThreadInfo) int {
		return cmp.Compare(a.ID, b.ID)
	})
	snap.Threads = append(snap.Threads, blocked...)
	return snap
}

func (s *Scheduler) describe(t *Thread) ThreadInfo {
	return ThreadInfo{
		ID:        t.id,
		Name:      t.name,
		Priority:  t.priority,
		State:     t.state,
		Key:       t.Key(),
		Scheduled: t.scheduled(),
		Current:   t == s.current,
	}
}

func saturatingMul(a, b int64) int64 {
	if a == 0 || b == 0 {
		return 0
	}
	if a > math.MaxInt64/b {
		return math.MaxInt64
	}
	return a * b
}

func saturatingAdd(a, b int64) int64 {
	if a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}
