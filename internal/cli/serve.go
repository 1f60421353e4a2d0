package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/ppiankov/credence/internal/server"
	"github.com/ppiankov/credence/internal/store"
	"github.com/ppiankov/credence/internal/worker"
)

var serveAddr string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP service",
	Long: `Serve exposes the pipeline over HTTP:

  POST /v1/runs             start a run, returns 202 with its id
  POST /v1/check            run synchronously, returns the final run
  GET  /v1/runs/:id         latest snapshot of a run
  GET  /v1/runs/:id/stream  websocket of snapshots until the run finishes
  GET  /v1/runs?limit=5     recent runs (MongoDB when configured)
  GET  /metrics             Prometheus metrics
  GET  /healthz             liveness

Example:
  credence serve --addr :8080 --docs-dir ./docs
  CREDENCE_STORE_MONGO_URI=mongodb://localhost:27017 credence serve`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	serveCmd.Flags().StringArrayVar(&docSources, "doc", nil, "reference document: file path or http(s) URL (repeatable)")
	serveCmd.Flags().StringVar(&docsDir, "docs-dir", "", "directory of reference documents")
	serveCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the capability response cache")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := commandConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	if !cfg.Output.Verbose {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			a.logger.Warn("Cleanup failed", "error", closeErr)
		}
	}()

	memory := store.NewMemory(0)
	var history store.Store = memory
	if a.mongo != nil {
		history = a.mongo
	}

	var admission *worker.Limiter
	if cfg.Server.RequestsPerSecond > 0 {
		admission = worker.NewLimiter(cfg.Server.RequestsPerSecond, cfg.Server.Burst)
	}

	srv := server.New(server.Config{
		Pipeline:  a.pipeline,
		Memory:    memory,
		History:   history,
		Admission: admission,
		Gatherer:  a.registry,
		Logger:    a.logger,
	})

	fmt.Fprintf(os.Stderr, "Credence listening on %s (%d documents)\n", cfg.Server.Addr, len(a.pipeline.Corpus()))
	return srv.ListenAndServe(ctx, cfg.Server.Addr, cfg.Server.ReadTimeout, cfg.Server.WriteTimeout)
}
