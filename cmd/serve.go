package cmd

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"docenhance/internal/config"
	"docenhance/internal/logger"
	"docenhance/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the enhancement pipeline as an HTTP service",
	Long: `Start an HTTP server that accepts enhancement jobs, reports their
status, and exposes Prometheus metrics.

Endpoints:
  POST   /jobs        submit a job ({"location": ..., "content_id": ..., "wait": ...})
  GET    /jobs        list all jobs
  GET    /jobs/{key}  job status and result
  DELETE /jobs/{key}  cancel a job
  GET    /healthz     liveness
  GET    /metrics     Prometheus metrics`,
	Example: `  # Serve on the configured address (LISTEN_ADDR, default :8080)
  docenhance serve

  # Serve with a durable job store
  docenhance serve --store jobs.db`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Listen address (overrides LISTEN_ADDR)")
	serveCmd.Flags().String("store", "", "SQLite job store path (default: in-memory)")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("serve")

	addr, _ := cmd.Flags().GetString("addr")
	storePath, _ := cmd.Flags().GetString("store")

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if addr == "" {
		addr = cfg.ListenAddr
	}
	if storePath == "" {
		storePath = cfg.StorePath
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	orch, cleanup, err := buildOrchestrator(ctx, cfg, storePath)
	if err != nil {
		return err
	}
	defer cleanup()

	srv := server.New(addr, orch)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
