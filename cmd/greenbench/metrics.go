package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	greenthread "github.com/Swind/go-greenthread"
	"github.com/Swind/go-greenthread/core"
	obs "github.com/Swind/go-greenthread/observability/prometheus"
)

// runWorkload runs workload on the bootstrap thread of a new scheduler. With
// --metrics-addr the scheduler reports to a Prometheus endpoint served
// alongside the workload.
func runWorkload(c *cli.Context, cfg *core.Config, logger zerolog.Logger, workload func(s *core.Scheduler) error) error {
	addr := c.String("metrics-addr")
	if addr == "" {
		return greenthread.Run(cfg, workload)
	}

	reg := prom.NewRegistry()
	exporter, err := obs.NewMetricsExporter("", reg, obs.ExporterOptions{})
	if err != nil {
		return err
	}
	cfg.Metrics = exporter

	poller, err := obs.NewSnapshotPoller(reg, 100*time.Millisecond)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	g, ctx := errgroup.WithContext(c.Context)
	g.Go(func() error {
		logger.Info().Str("addr", addr).Msg("serving metrics")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()

		err := greenthread.Run(cfg, func(s *core.Scheduler) error {
			poller.AddScheduler(c.Command.Name, s)
			poller.Start(ctx)
			defer poller.Stop()
			return workload(s)
		})
		if err != nil {
			return err
		}

		if linger := c.Duration("linger"); linger > 0 {
			select {
			case <-time.After(linger):
			case <-ctx.Done():
			}
		}
		return nil
	})
	return g.Wait()
}
