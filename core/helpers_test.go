package core

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// recordingPanicHandler collects every reported panic.
type recordingPanicHandler struct {
	mu    sync.Mutex
	calls []panicCall
}

type panicCall struct {
	ThreadID  ThreadID
	PanicInfo any
}

func (h *recordingPanicHandler) HandlePanic(threadID ThreadID, panicInfo any, stackTrace []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, panicCall{ThreadID: threadID, PanicInfo: panicInfo})
}

func (h *recordingPanicHandler) Calls() []panicCall {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]panicCall(nil), h.calls...)
}

// recordingMetrics counts metric callbacks.
type recordingMetrics struct {
	mu          sync.Mutex
	switches    map[SwitchReason]int
	yields      int
	rekeys      int
	created     int
	exited      int
	preemptions int
	syncErrors  map[string]int
	lastDepth   int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		switches:   make(map[SwitchReason]int),
		syncErrors: make(map[string]int),
	}
}

func (m *recordingMetrics) RecordContextSwitch(from, to ThreadID, reason SwitchReason) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.switches[reason]++
}

func (m *recordingMetrics) RecordYield(rekeyed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.yields++
	if rekeyed {
		m.rekeys++
	}
}

func (m *recordingMetrics) RecordThreadCreated(id ThreadID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created++
}

func (m *recordingMetrics) RecordThreadExited(id ThreadID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exited++
}

func (m *recordingMetrics) RecordRunQueueDepth(depth int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastDepth = depth
}

func (m *recordingMetrics) RecordPreemption() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.preemptions++
}

func (m *recordingMetrics) RecordSyncError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncErrors[kind]++
}

func (m *recordingMetrics) SyncErrors(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.syncErrors[kind]
}

// testEnv is a deterministic scheduler configuration.
type testEnv struct {
	cfg        *Config
	clock      *ManualClock
	alloc      *HeapStackAllocator
	panics     *recordingPanicHandler
	metrics    *recordingMetrics
	terminated chan int
}

func newTestEnv() *testEnv {
	env := &testEnv{
		clock:      NewManualClock(1000),
		alloc:      NewHeapStackAllocator(0),
		panics:     &recordingPanicHandler{},
		metrics:    newRecordingMetrics(),
		terminated: make(chan int, 4),
	}
	cfg := DefaultConfig()
	cfg.StackSize = 4096
	cfg.Clock = env.clock
	cfg.StackAllocator = env.alloc
	cfg.PanicHandler = env.panics
	cfg.Metrics = env.metrics
	cfg.Terminate = func(code int) { env.terminated <- code }
	env.cfg = cfg
	return env
}

// runScheduler runs body on the bootstrap thread of a new scheduler in its own
// goroutine, so that a bootstrap Exit cannot end the test goroutine. The
// scheduler is closed when body returns.
func runScheduler(t *testing.T, cfg *Config, body func(s *Scheduler)) {
	t.Helper()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s, err := New(cfg)
		if !assert.NoError(t, err) {
			return
		}
		body(s)
		assert.NoError(t, s.Close())
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("bootstrap thread did not finish")
	}
}

// spin yields n times.
func spin(s *Scheduler, n int) {
	for range n {
		_ = s.Yield()
	}
}
