package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/arbiter"
	httpAdapter "github.com/aretw0/arbiter/pkg/adapters/http"
	"github.com/aretw0/arbiter/pkg/definition"
	"github.com/aretw0/arbiter/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP control server",
	Long: `Exposes workflow status, pause, resume and cancel over HTTP together with Prometheus metrics.
Each --file workflow is created and started in the background when the server comes up.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("http-addr")
		files, _ := cmd.Flags().GetStringSlice("file")
		logger := app.logger

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics := observability.NewMetrics(reg)

		arb, cleanup, err := app.newArbiter(metrics.Hooks())
		if err != nil {
			return err
		}
		defer cleanup()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		for _, path := range files {
			if err := startWorkflow(ctx, arb, path, logger); err != nil {
				return err
			}
		}

		srv := &http.Server{
			Addr: addr,
			Handler: httpAdapter.NewHandler(arb,
				httpAdapter.WithMetrics(metrics.Handler()),
				httpAdapter.WithLogger(logger.Named("http")),
			),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("starting arbiter server", zap.String("addr", srv.Addr))
			serverErrors <- srv.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			return err
		case <-ctx.Done():
			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("graceful shutdown did not complete", zap.Duration("timeout", shutdownTimeout), zap.Error(err))
				if err := srv.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
			}
			logger.Info("server stopped")
			return nil
		}
	},
}

// startWorkflow creates and defines the workflow in path and executes it in the background.
func startWorkflow(ctx context.Context, arb *arbiter.Arbiter, path string, logger *zap.Logger) error {
	def, err := definition.Load(path)
	if err != nil {
		return err
	}
	if def.Workflow == nil {
		logger.Warn("definition has no workflow section", zap.String("file", path))
		return nil
	}
	wf, err := arb.CreateWorkflow(ctx, def.Workflow.Agent(), def.Workflow.Type, def.Workflow.Config())
	if err != nil {
		return err
	}
	if err := arb.DefineSteps(ctx, wf.ID, def.Workflow.Steps); err != nil {
		return err
	}
	go func() {
		res, err := arb.ExecuteWorkflow(ctx, wf.ID)
		if err != nil && res == nil {
			logger.Error("workflow not executed", zap.String("workflow_id", wf.ID), zap.Error(err))
			return
		}
		logger.Info("workflow stopped",
			zap.String("workflow_id", wf.ID),
			zap.String("status", string(res.Status)),
			zap.Int("steps_executed", res.StepsExecuted),
		)
	}()
	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("http-addr", ":8080", "Address to listen on")
	serveCmd.Flags().StringSliceP("file", "f", nil, "Workflow definitions to start on boot")
}
