package prometheus

import (
	"context"
	"testing"
	"time"

	"github.com/Swind/go-greenthread/core"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type schedulerStub struct {
	stats core.SchedulerStats
}

func (s schedulerStub) Stats() core.SchedulerStats { return s.stats }

func TestSnapshotPoller_CollectsSchedulerStats(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller(reg, 10*time.Millisecond)
	require.NoError(t, err)

	poller.AddScheduler("sched-a", schedulerStub{stats: core.SchedulerStats{
		Current:          3,
		Live:             4,
		Runnable:         2,
		Switches:         17,
		Rekeys:           9,
		Preemptions:      5,
		PreemptsDeferred: 1,
		Closed:           true,
	}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	poller.Start(ctx)
	defer poller.Stop()

	assert.Eventually(t, func() bool {
		live := testutil.ToFloat64(poller.liveThreads.WithLabelValues("sched-a"))
		runnable := testutil.ToFloat64(poller.runnableThreads.WithLabelValues("sched-a"))
		return live == 4 && runnable == 2
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, 3.0, testutil.ToFloat64(poller.currentThread.WithLabelValues("sched-a")))
	assert.Equal(t, 17.0, testutil.ToFloat64(poller.switches.WithLabelValues("sched-a")))
	assert.Equal(t, 9.0, testutil.ToFloat64(poller.rekeys.WithLabelValues("sched-a")))
	assert.Equal(t, 5.0, testutil.ToFloat64(poller.preemptions.WithLabelValues("sched-a")))
	assert.Equal(t, 1.0, testutil.ToFloat64(poller.preemptsDeferred.WithLabelValues("sched-a")))
	assert.Equal(t, 1.0, testutil.ToFloat64(poller.closed.WithLabelValues("sched-a")))
}

func TestSnapshotPoller_RemoveScheduler(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller(reg, time.Hour)
	require.NoError(t, err)

	poller.AddScheduler("", schedulerStub{stats: core.SchedulerStats{Live: 1}})
	poller.collectOnce()
	assert.Equal(t, 1, testutil.CollectAndCount(poller.liveThreads))

	poller.RemoveScheduler("")
	assert.Zero(t, testutil.CollectAndCount(poller.liveThreads))
}

// TestSnapshotPoller_PollsLiveScheduler verifies polling a running scheduler
// Given: A poller watching a scheduler whose bootstrap thread keeps yielding
// When: The poller samples it from its own goroutine
// Then: The live thread gauge reflects the created threads
func TestSnapshotPoller_PollsLiveScheduler(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller(reg, 5*time.Millisecond)
	require.NoError(t, err)

	ready := make(chan *core.Scheduler)
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		s, err := core.New(nil)
		if !assert.NoError(t, err) {
			close(ready)
			return
		}
		for range 3 {
			if _, err := s.Create(func(any) any { return nil }, nil); !assert.NoError(t, err) {
				break
			}
		}
		ready <- s
		<-release
		assert.NoError(t, s.Close())
	}()

	s := <-ready
	require.NotNil(t, s)
	poller.AddScheduler("live", s)
	poller.Start(context.Background())

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(poller.liveThreads.WithLabelValues("live")) == 4
	}, 2*time.Second, 5*time.Millisecond)

	poller.Stop()
	close(release)
	<-done
}

func TestSnapshotPoller_StartStop_Idempotent(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller(reg, 20*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	poller.Start(ctx)
	poller.Start(ctx)
	poller.Stop()
	poller.Stop()
}
