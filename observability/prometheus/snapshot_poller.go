package prometheus

import (
	"context"
	"sync"
	"time"

	"github.com/Swind/go-greenthread/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// SchedulerSnapshotProvider provides current scheduler stats snapshots.
// *core.Scheduler implements it and may be polled from any goroutine.
type SchedulerSnapshotProvider interface {
	Stats() core.SchedulerStats
}

// SnapshotPoller periodically exports scheduler Stats() snapshots into Prometheus gauges.
type SnapshotPoller struct {
	interval time.Duration

	schedulersMu sync.RWMutex
	schedulers   map[string]SchedulerSnapshotProvider

	liveThreads      *prom.GaugeVec
	runnableThreads  *prom.GaugeVec
	currentThread    *prom.GaugeVec
	switches         *prom.GaugeVec
	rekeys           *prom.GaugeVec
	preemptions      *prom.GaugeVec
	preemptsDeferred *prom.GaugeVec
	closed           *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	gauge := func(name, help string) *prom.GaugeVec {
		return prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: "greenthread",
			Name:      name,
			Help:      help,
		}, []string{"scheduler"})
	}

	p := &SnapshotPoller{
		interval:         interval,
		schedulers:       make(map[string]SchedulerSnapshotProvider),
		liveThreads:      gauge("scheduler_live_threads", "Threads created and not yet joined, bootstrap included."),
		runnableThreads:  gauge("scheduler_runnable_threads", "Threads in the run queue."),
		currentThread:    gauge("scheduler_current_thread", "Id of the running thread."),
		switches:         gauge("scheduler_switches", "Context switch count snapshot."),
		rekeys:           gauge("scheduler_rekeys", "Virtual runtime re-key count snapshot."),
		preemptions:      gauge("scheduler_preemptions", "Delivered preemption count snapshot."),
		preemptsDeferred: gauge("scheduler_preempts_deferred", "Preemption ticks dropped inside critical sections."),
		closed:           gauge("scheduler_closed", "Scheduler closed state (1=closed, 0=open)."),
	}

	for _, g := range []**prom.GaugeVec{
		&p.liveThreads, &p.runnableThreads, &p.currentThread, &p.switches,
		&p.rekeys, &p.preemptions, &p.preemptsDeferred, &p.closed,
	} {
		registered, err := registerCollector(reg, *g)
		if err != nil {
			return nil, err
		}
		*g = registered
	}
	return p, nil
}

// AddScheduler adds or replaces a scheduler snapshot provider by name.
func (p *SnapshotPoller) AddScheduler(name string, provider SchedulerSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "scheduler")
	p.schedulersMu.Lock()
	p.schedulers[name] = provider
	p.schedulersMu.Unlock()
}

// RemoveScheduler stops exporting a scheduler and deletes its series.
func (p *SnapshotPoller) RemoveScheduler(name string) {
	if p == nil {
		return
	}
	name = normalizeLabel(name, "scheduler")
	p.schedulersMu.Lock()
	delete(p.schedulers, name)
	p.schedulersMu.Unlock()

	for _, g := range p.gauges() {
		g.DeleteLabelValues(name)
	}
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.stateMu.Unlock()

	go p.loop(pollCtx)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collectOnce()

	for {
		select {
		case <-ctx.Done():
			p.collectOnce()
			return
		case <-ticker.C:
			p.collectOnce()
		}
	}
}

func (p *SnapshotPoller) collectOnce() {
	p.schedulersMu.RLock()
	defer p.schedulersMu.RUnlock()

	for name, provider := range p.schedulers {
		stats := provider.Stats()
		p.liveThreads.WithLabelValues(name).Set(float64(stats.Live))
		p.runnableThreads.WithLabelValues(name).Set(float64(stats.Runnable))
		p.currentThread.WithLabelValues(name).Set(float64(stats.Current))
		p.switches.WithLabelValues(name).Set(float64(stats.Switches))
		p.rekeys.WithLabelValues(name).Set(float64(stats.Rekeys))
		p.preemptions.WithLabelValues(name).Set(float64(stats.Preemptions))
		p.preemptsDeferred.WithLabelValues(name).Set(float64(stats.PreemptsDeferred))
		if stats.Closed {
			p.closed.WithLabelValues(name).Set(1)
		} else {
			p.closed.WithLabelValues(name).Set(0)
		}
	}
}

func (p *SnapshotPoller) gauges() []*prom.GaugeVec {
	return []*prom.GaugeVec{
		p.liveThreads, p.runnableThreads, p.currentThread, p.switches,
		p.rekeys, p.preemptions, p.preemptsDeferred, p.closed,
	}
}
