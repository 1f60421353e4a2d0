package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/ppiankov/credence/internal/cache"
	"github.com/ppiankov/credence/internal/capability"
	"github.com/ppiankov/credence/internal/corpus"
	"github.com/ppiankov/credence/internal/llm"
	"github.com/ppiankov/credence/internal/model"
	"github.com/ppiankov/credence/internal/pipeline"
	"github.com/ppiankov/credence/internal/store"
	"github.com/ppiankov/credence/internal/telemetry"
	"github.com/ppiankov/credence/internal/worker"
)

// Flags shared by the commands that build a pipeline
var (
	docSources []string
	docsDir    string
	noCache    bool
)

// app holds everything a command needs to execute runs
type app struct {
	cfg      *model.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *telemetry.Metrics
	pipeline *pipeline.Pipeline
	mongo    *store.Mongo
	closers  []func() error
}

// newApp loads the corpus, selects the capability provider and assembles
// the pipeline with its middleware and sinks
func newApp(ctx context.Context, cfg *model.Config, sinks ...pipeline.Sink) (*app, error) {
	a := &app{
		cfg:      cfg,
		logger:   slog.Default(),
		registry: prometheus.NewRegistry(),
	}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = telemetry.New(a.registry)

	limiter := worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)

	docs, err := loadCorpus(ctx, cfg, limiter)
	if err != nil {
		return nil, err
	}

	set, providerName, err := buildCapabilities(ctx, cfg, docs)
	if err != nil {
		return nil, err
	}
	applyProviderRate(limiter, cfg.LLM, providerName)

	opts := capability.Options{
		Provider: providerName,
		Model:    cfg.LLM.Model,
		Retry: capability.RetryPolicy{
			MaxAttempts: cfg.Pipeline.MaxAttempts,
			Initial:     cfg.Pipeline.RetryInitial,
			Max:         cfg.Pipeline.RetryMax,
		},
		Metrics: a.metrics,
		Logger:  a.logger,
	}
	if providerName != "mock" {
		// Offline heuristics need neither throttling nor caching
		opts.Limiter = limiter
		if cfg.Cache.Enabled && !noCache {
			c, err := cache.NewLayeredCache(cfg.Cache.MemoryTTL, cfg.Cache.Dir, cfg.Cache.DiskTTL)
			if err != nil {
				a.logger.Warn("Response cache disabled", "dir", cfg.Cache.Dir, "error", err)
			} else {
				opts.Cache = c
				opts.CacheTTL = cfg.Cache.DiskTTL
				a.closers = append(a.closers, c.Close)
			}
		}
	}
	set = capability.Wrap(set, opts)

	all := pipeline.MultiSink{}
	if cfg.Store.MongoURI != "" {
		m, err := store.NewMongo(ctx, cfg.Store.MongoURI, cfg.Store.Database, cfg.Store.Collection)
		if err != nil {
			// Persistence is optional; runs still complete without it
			a.logger.Warn("MongoDB unavailable, runs will not be persisted", "error", err)
		} else {
			a.mongo = m
			all = append(all, m)
			a.closers = append(a.closers, func() error { return m.Close(context.Background()) })
		}
	}
	if cfg.Output.Verbose {
		all = append(all, pipeline.LogSink{Logger: a.logger})
	}
	all = append(all, sinks...)

	a.pipeline = pipeline.New(set, docs, pipeline.Options{
		Workers:    cfg.Pipeline.Workers,
		RunTimeout: cfg.Pipeline.RunTimeout,
		Sink:       all,
		Metrics:    a.metrics,
		Logger:     a.logger,
	})
	return a, nil
}

// Close releases the cache and store connections
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// loadCorpus reads --doc and --docs-dir sources, or returns the sample corpus
func loadCorpus(ctx context.Context, cfg *model.Config, limiter *worker.Limiter) (model.Corpus, error) {
	sources := append([]string(nil), docSources...)
	if docsDir != "" {
		sources = append(sources, docsDir)
	}
	if len(sources) == 0 {
		if cfg.Output.Verbose {
			fmt.Fprintf(os.Stderr, "Using the built-in sample corpus (pass --doc or --docs-dir to use your own)\n")
		}
		return corpus.Sample(), nil
	}

	fetcher := corpus.NewFetcher(corpus.FetcherConfig{
		Timeout:       cfg.HTTP.Timeout,
		UserAgent:     cfg.HTTP.UserAgent,
		MaxBytes:      cfg.HTTP.MaxBodyBytes,
		RespectRobots: cfg.HTTP.RespectRobots,
		HTTPProxy:     cfg.HTTP.HTTPProxy,
		HTTPSProxy:    cfg.HTTP.HTTPSProxy,
		NoProxy:       cfg.HTTP.NoProxy,
		MaxAttempts:   cfg.Pipeline.MaxAttempts,
		RetryInitial:  cfg.Pipeline.RetryInitial,
	}, limiter)

	docs, err := corpus.NewLoader(fetcher, cfg.Pipeline.Workers).Load(ctx, sources)
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("load documents: no text found in %d source(s)", len(sources))
	}
	if cfg.Output.Verbose {
		fmt.Fprintf(os.Stderr, "✓ Loaded %d documents\n", len(docs))
	}
	return docs, nil
}

// buildCapabilities returns the LLM-backed capabilities for the configured
// provider, or the offline heuristics when none is configured
func buildCapabilities(ctx context.Context, cfg *model.Config, docs model.Corpus) (capability.Set, string, error) {
	provider, err := llm.NewProvider(ctx, llm.ConfigFromModel(cfg.LLM, cfg.HTTP))
	if err != nil {
		return capability.Set{}, "", fmt.Errorf("initialize LLM provider: %w", err)
	}
	if provider == nil {
		return capability.NewHeuristic(docs).Set(), "mock", nil
	}
	if cfg.Output.Verbose {
		fmt.Fprintf(os.Stderr, "LLM: %s/%s\n", provider.Name(), cfg.LLM.Model)
	}
	return capability.NewLLM(provider).Set(), provider.Name(), nil
}

// applyProviderRate gives the provider its own bucket when llm.requests_per_second
// is set, so model calls and corpus fetches are throttled independently
func applyProviderRate(limiter *worker.Limiter, cfg model.LLMConfig, provider string) {
	if cfg.RequestsPerSecond > 0 {
		limiter.SetRate(provider, cfg.RequestsPerSecond, cfg.Burst)
	}
}
