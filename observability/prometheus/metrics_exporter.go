package prometheus

import (
	"errors"
	"fmt"

	"github.com/Swind/go-greenthread/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	// DepthBuckets are the histogram buckets for run queue depth samples.
	DepthBuckets []float64
	// ConstLabels are attached to every collector, e.g. to tell schedulers apart.
	ConstLabels prom.Labels
}

// MetricsExporter adapts core.Metrics to Prometheus collectors.
type MetricsExporter struct {
	contextSwitchTotal *prom.CounterVec
	yieldTotal         *prom.CounterVec
	threadsCreated     prom.Counter
	threadsExited      prom.Counter
	preemptionTotal    prom.Counter
	syncErrorTotal     *prom.CounterVec
	runQueueDepth      prom.Gauge
	runQueueDepthDist  prom.Histogram
}

var _ core.Metrics = (*MetricsExporter)(nil)

// NewMetricsExporter creates and registers Prometheus collectors for core.Metrics.
func NewMetricsExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*MetricsExporter, error) {
	if namespace == "" {
		namespace = "greenthread"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	buckets := opts.DepthBuckets
	if len(buckets) == 0 {
		buckets = prom.ExponentialBuckets(1, 2, 8)
	}

	switchVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace:   namespace,
		Name:        "context_switches_total",
		Help:        "Total number of context switches by reason.",
		ConstLabels: opts.ConstLabels,
	}, []string{"reason"})
	yieldVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace:   namespace,
		Name:        "yields_total",
		Help:        "Total number of yields, split by whether the thread was re-keyed.",
		ConstLabels: opts.ConstLabels,
	}, []string{"outcome"})
	created := prom.NewCounter(prom.CounterOpts{
		Namespace:   namespace,
		Name:        "threads_created_total",
		Help:        "Total number of threads created.",
		ConstLabels: opts.ConstLabels,
	})
	exited := prom.NewCounter(prom.CounterOpts{
		Namespace:   namespace,
		Name:        "threads_exited_total",
		Help:        "Total number of threads that terminated.",
		ConstLabels: opts.ConstLabels,
	})
	preemptions := prom.NewCounter(prom.CounterOpts{
		Namespace:   namespace,
		Name:        "preemptions_total",
		Help:        "Total number of yields delivered by the preemption monitor.",
		ConstLabels: opts.ConstLabels,
	})
	syncErrVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace:   namespace,
		Name:        "sync_errors_total",
		Help:        "Total number of join and mutex errors by kind.",
		ConstLabels: opts.ConstLabels,
	}, []string{"kind"})
	depth := prom.NewGauge(prom.GaugeOpts{
		Namespace:   namespace,
		Name:        "run_queue_depth",
		Help:        "Current number of runnable threads.",
		ConstLabels: opts.ConstLabels,
	})
	depthDist := prom.NewHistogram(prom.HistogramOpts{
		Namespace:   namespace,
		Name:        "run_queue_depth_samples",
		Help:        "Distribution of the run queue depth over run queue changes.",
		Buckets:     buckets,
		ConstLabels: opts.ConstLabels,
	})

	var err error
	if switchVec, err = registerCollector(reg, switchVec); err != nil {
		return nil, err
	}
	if yieldVec, err = registerCollector(reg, yieldVec); err != nil {
		return nil, err
	}
	if created, err = registerCollector(reg, created); err != nil {
		return nil, err
	}
	if exited, err = registerCollector(reg, exited); err != nil {
		return nil, err
	}
	if preemptions, err = registerCollector(reg, preemptions); err != nil {
		return nil, err
	}
	if syncErrVec, err = registerCollector(reg, syncErrVec); err != nil {
		return nil, err
	}
	if depth, err = registerCollector(reg, depth); err != nil {
		return nil, err
	}
	if depthDist, err = registerCollector(reg, depthDist); err != nil {
		return nil, err
	}

	return &MetricsExporter{
		contextSwitchTotal: switchVec,
		yieldTotal:         yieldVec,
		threadsCreated:     created,
		threadsExited:      exited,
		preemptionTotal:    preemptions,
		syncErrorTotal:     syncErrVec,
		runQueueDepth:      depth,
		runQueueDepthDist:  depthDist,
	}, nil
}

// RecordContextSwitch counts a context switch under its reason.
func (m *MetricsExporter) RecordContextSwitch(from, to core.ThreadID, reason core.SwitchReason) {
	if m == nil {
		return
	}
	m.contextSwitchTotal.WithLabelValues(reason.String()).Inc()
}

// RecordYield counts a yield as "batched" or "rekeyed".
func (m *MetricsExporter) RecordYield(rekeyed bool) {
	if m == nil {
		return
	}
	outcome := "batched"
	if rekeyed {
		outcome = "rekeyed"
	}
	m.yieldTotal.WithLabelValues(outcome).Inc()
}

// RecordThreadCreated counts a created thread.
func (m *MetricsExporter) RecordThreadCreated(id core.ThreadID) {
	if m == nil {
		return
	}
	m.threadsCreated.Inc()
}

// RecordThreadExited counts a terminated thread.
func (m *MetricsExporter) RecordThreadExited(id core.ThreadID) {
	if m == nil {
		return
	}
	m.threadsExited.Inc()
}

// RecordRunQueueDepth sets the run queue gauge and samples the depth histogram.
func (m *MetricsExporter) RecordRunQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.runQueueDepth.Set(float64(depth))
	m.runQueueDepthDist.Observe(float64(depth))
}

// RecordPreemption counts a delivered preemption.
func (m *MetricsExporter) RecordPreemption() {
	if m == nil {
		return
	}
	m.preemptionTotal.Inc()
}

// RecordSyncError counts a join or mutex error.
func (m *MetricsExporter) RecordSyncError(kind string) {
	if m == nil {
		return
	}
	m.syncErrorTotal.WithLabelValues(normalizeLabel(kind, "unknown")).Inc()
}

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
