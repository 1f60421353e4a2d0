// Package server exposes the pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ppiankov/credence/internal/pipeline"
	"github.com/ppiankov/credence/internal/store"
	"github.com/ppiankov/credence/internal/worker"
)

const shutdownTimeout = 30 * time.Second

// Config wires the server to its collaborators
type Config struct {
	// Pipeline executes runs; the server adds Memory as a sink
	Pipeline *pipeline.Pipeline

	// Memory serves live snapshots and streams
	Memory *store.Memory

	// History serves GET /v1/runs; nil falls back to Memory
	History store.Store

	// Admission limits run submissions per client IP; nil admits everything
	Admission *worker.Limiter

	// Gatherer backs /metrics; nil uses the default registry
	Gatherer prometheus.Gatherer

	Logger *slog.Logger
}

// Server is the HTTP front end of the pipeline
type Server struct {
	pipeline  *pipeline.Pipeline
	memory    *store.Memory
	history   store.Store
	renderer  *pipeline.Renderer
	admission *worker.Limiter
	logger    *slog.Logger
	engine    *gin.Engine

	// runCtx outlives requests so async runs finish after the 202
	runCtx    context.Context
	cancelRun context.CancelFunc
	runs      sync.WaitGroup
}

// New creates a server and registers its routes
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	memory := cfg.Memory
	if memory == nil {
		memory = store.NewMemory(0)
	}
	history := cfg.History
	if history == nil {
		history = memory
	}
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	runCtx, cancel := context.WithCancel(context.Background())

	s := &Server{
		pipeline:  cfg.Pipeline.WithSink(memory),
		memory:    memory,
		history:   history,
		renderer:  pipeline.NewRenderer(false),
		admission: cfg.Admission,
		logger:    logger,
		runCtx:    runCtx,
		cancelRun: cancel,
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(logger))

	engine.GET("/healthz", s.handleHealth)
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	v1 := engine.Group("/v1")
	v1.POST("/runs", s.admit, s.handleStartRun)
	v1.POST("/check", s.admit, s.handleCheck)
	v1.GET("/runs", s.handleHistory)
	v1.GET("/runs/:id", s.handleGetRun)
	v1.GET("/runs/:id/stream", s.handleStream)

	s.engine = engine
	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully and waits for in-flight runs
func (s *Server) ListenAndServe(ctx context.Context, addr string, readTimeout, writeTimeout time.Duration) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen on %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := srv.Shutdown(shutdownCtx)
	s.Close()
	return err
}

// Close cancels in-flight async runs and waits for them to record their
// final state
func (s *Server) Close() {
	s.cancelRun()
	s.runs.Wait()
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

// admit rejects submissions from clients that exhausted their bucket
func (s *Server) admit(c *gin.Context) {
	if s.admission == nil || s.admission.Allow(c.ClientIP()) {
		c.Next()
		return
	}
	c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{Error: "too many runs, retry later", Code: "RATE_LIMITED"})
}
