package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/kiranshivaraju/consentscan/internal/analyzer"
	"github.com/kiranshivaraju/consentscan/internal/config"
	"github.com/kiranshivaraju/consentscan/internal/metrics"
	"github.com/kiranshivaraju/consentscan/internal/sweeper"
	"github.com/kiranshivaraju/consentscan/internal/worker"
	"github.com/kiranshivaraju/consentscan/pkg/models"
)

const metricsShutdownTimeout = 5 * time.Second

// readinessChecker is implemented by analyzers backed by a remote service.
type readinessChecker interface {
	Ready(ctx context.Context) error
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var (
		queues      string
		name        string
		concurrency int
		drain       bool
		sweep       bool
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Claim and analyze queued jobs until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.config
			wcfg := cfg.Worker
			if cmd.Flags().Changed("queues") {
				tiers, err := models.ParsePriorities(queues)
				if err != nil {
					return fmt.Errorf("--queues: %w", err)
				}
				wcfg.Queues = tiers
			}
			if cmd.Flags().Changed("name") {
				wcfg.Name = name
			}
			if cmd.Flags().Changed("concurrency") {
				if concurrency < 0 {
					return fmt.Errorf("--concurrency must not be negative")
				}
				wcfg.Concurrency = concurrency
			}
			if cmd.Flags().Changed("metrics-addr") {
				wcfg.MetricsAddr = metricsAddr
			}

			a, err := analyzer.New(cfg.Analyzer)
			if err != nil {
				return err
			}
			if r, ok := a.(readinessChecker); ok {
				if err := r.Ready(cmd.Context()); err != nil {
					return fmt.Errorf("analyzer %s not ready: %w", a.Name(), err)
				}
			}

			registry := metrics.NewRegistry()
			return ctx.withBackends(cmd.Context(), func(b *backends) error {
				pool, err := worker.NewPool(worker.Config{
					Name:            wcfg.Name,
					Lanes:           worker.LanesFromConfig(wcfg),
					PollTimeout:     cfg.Queue.PollTimeout,
					AnalyzerTimeout: cfg.Analyzer.Timeout,
					Metrics:         metrics.New(registry),
				}, b.store, b.queue, a)
				if err != nil {
					return err
				}

				if drain {
					return drainQueues(cmd, pool, drainTiers(wcfg))
				}
				var metricsSrv *http.Server
				if wcfg.MetricsAddr != "" {
					metricsSrv = newMetricsServer(wcfg.MetricsAddr, registry)
				}
				return runUntilSignal(cmd.Context(), cfg, b, pool, sweep, metricsSrv)
			})
		},
	}

	cmd.Flags().StringVar(&queues, "queues", "", "Comma-separated tiers the shared lane services in strict order (default from WORKER_QUEUES)")
	cmd.Flags().StringVar(&name, "name", "", "Worker name recorded on claimed jobs (default from WORKER_NAME)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Claim loops in the shared lane (default from WORKER_CONCURRENCY)")
	cmd.Flags().BoolVar(&drain, "drain", false, "Process queued references until every tier is empty, then exit")
	cmd.Flags().BoolVar(&sweep, "sweep", false, "Also run the retention sweeper on SWEEP_SCHEDULE")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (default from WORKER_METRICS_ADDR)")

	return cmd
}

func newMetricsServer(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func runUntilSignal(parent context.Context, cfg *config.Config, b *backends, pool *worker.Pool, sweep bool, metricsSrv *http.Server) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sw *sweeper.Sweeper
	if sweep {
		var err error
		if sw, err = sweeper.New(b.store, cfg.Retention.Window, cfg.Retention.Schedule); err != nil {
			return err
		}
	}

	var wg sync.WaitGroup
	if sw != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sw.Run(ctx); err != nil {
				slog.Error("sweeper failed", "error", err)
			}
		}()
	}
	if metricsSrv != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			slog.Info("metrics listening", "addr", metricsSrv.Addr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", "error", err)
			}
		}()
	}

	err := pool.Run(ctx)
	stop()
	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		_ = metricsSrv.Shutdown(shutdownCtx)
		cancel()
	}
	wg.Wait()
	return err
}

// drainTiers is every tier some lane of wcfg services, in strict order.
func drainTiers(wcfg config.WorkerConfig) []models.Priority {
	seen := make(map[models.Priority]bool)
	for _, lane := range worker.LanesFromConfig(wcfg) {
		for _, t := range lane.Tiers {
			seen[t] = true
		}
	}
	var tiers []models.Priority
	for _, t := range models.Priorities {
		if seen[t] {
			tiers = append(tiers, t)
		}
	}
	return tiers
}

func drainQueues(cmd *cobra.Command, pool *worker.Pool, tiers []models.Priority) error {
	processed := 0
	for {
		if err := cmd.Context().Err(); err != nil {
			return err
		}
		ok, err := pool.ProcessNext(cmd.Context(), tiers)
		if err != nil {
			return fmt.Errorf("draining queues: %w", err)
		}
		if !ok {
			break
		}
		processed++
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Processed %d queued references\n", processed)
	return nil
}
