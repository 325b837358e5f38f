package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/Swind/taskcore/config"
	"github.com/Swind/taskcore/engine"
	promexport "github.com/Swind/taskcore/observability/prometheus"
)

var runCmd = &cobra.Command{
	Use:   "run <config.toml>",
	Short: "Start a task processor and serve its metrics until terminated",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskProcd,
}

func init() {
	runCmd.Flags().Int("demo-tasks-per-second", 0, "schedule this many trivial tasks per second, for demonstration purposes")
}

func runTaskProcd(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(args[0])
	if err != nil {
		return err
	}

	overloadAction, err := cfg.Engine.OverloadAction.ToEngineOverloadAction()
	if err != nil {
		return err
	}

	processor, err := engine.NewTaskProcessor(cfg.Engine.ProcessorConfig())
	if err != nil {
		return fmt.Errorf("taskprocd: starting processor: %w", err)
	}
	processor.SetMaxTaskQueueWaitTime(cfg.Engine.MaxTaskQueueWaitTime)
	processor.SetMaxTaskQueueWaitLength(cfg.Engine.MaxTaskQueueWaitLength)
	processor.SetOverloadAction(overloadAction)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var srv *http.Server
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		exporter, err := promexport.NewMetricsExporter(reg, promexport.ExporterOptions{})
		if err != nil {
			return fmt.Errorf("taskprocd: metrics exporter: %w", err)
		}
		poller := promexport.NewSnapshotPoller(exporter, cfg.Metrics.PollInterval)
		poller.AddProcessor(cfg.Engine.Name, processor)
		poller.Start(ctx)
		defer poller.Stop()

		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.MetricsPath, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv = &http.Server{Addr: cfg.Metrics.ListenAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				fmt.Fprintf(cmd.ErrOrStderr(), "taskprocd: metrics server: %v\n", err)
			}
		}()
	}

	demoRate, _ := cmd.Flags().GetInt("demo-tasks-per-second")
	if demoRate > 0 {
		go runDemoWorkload(ctx, processor, demoRate)
	}

	<-ctx.Done()

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}

	processor.Shutdown()
	return nil
}

// runDemoWorkload schedules trivial one-step tasks at a fixed rate so the
// /metrics endpoint has something to show. It is demonstration only, not
// part of the processor's contract.
func runDemoWorkload(ctx context.Context, processor *engine.TaskProcessor, perSecond int) {
	ticker := time.NewTicker(time.Second / time.Duration(perSecond))
	defer ticker.Stop()

	var nextID uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			nextID++
			id := nextID
			task := engine.NewStepTaskContext(id, false, processor.Counter(), processor, func(*engine.StepTaskContext) (bool, error) {
				return true, nil
			})
			processor.Schedule(task)
		}
	}
}
