package capability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/ppiankov/credence/internal/cache"
	"github.com/ppiankov/credence/internal/llm"
	"github.com/ppiankov/credence/internal/telemetry"
	"github.com/ppiankov/credence/internal/validate"
	"github.com/ppiankov/credence/internal/worker"
)

// RetryPolicy bounds retries at the capability-call boundary
type RetryPolicy struct {
	MaxAttempts uint
	Initial     time.Duration
	Max         time.Duration
}

// Options configures the middleware stack applied by Wrap.
// Zero values disable the corresponding layer.
type Options struct {
	// Provider keys rate limiting and cache entries (e.g. "openai")
	Provider string

	// Model is folded into cache keys so switching models misses the cache
	Model string

	Retry   RetryPolicy
	Limiter *worker.Limiter
	Cache   cache.Cache
	// CacheTTL of zero uses the cache's default
	CacheTTL time.Duration
	Metrics  *telemetry.Metrics
	Logger   *slog.Logger
}

// Wrap applies cache, metrics, retry and rate limiting to every capability
// in set. Decompose and Check results are cached only when they would be
// accepted downstream; Generate is never cached.
func Wrap(set Set, opts Options) Set {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	m := &middleware{opts: opts}

	var wrapped Set
	if set.Generator != nil {
		wrapped.Generator = &generator{next: set.Generator, m: m}
	}
	if set.Decomposer != nil {
		wrapped.Decomposer = &decomposer{next: set.Decomposer, m: m}
	}
	if set.FactChecker != nil {
		wrapped.FactChecker = &factChecker{next: set.FactChecker, m: m}
	}
	return wrapped
}

type middleware struct {
	opts Options
}

type generator struct {
	next Generator
	m    *middleware
}

func (g *generator) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, error) {
	return invoke(ctx, g.m, NameGenerate, "", func(ctx context.Context) (GenerateResponse, error) {
		return g.next.Generate(ctx, req)
	}, nil)
}

type decomposer struct {
	next Decomposer
	m    *middleware
}

func (d *decomposer) Decompose(ctx context.Context, req DecomposeRequest) (DecomposeResponse, error) {
	key := d.m.cacheKey(NameDecompose, req.Answer)
	return invoke(ctx, d.m, NameDecompose, key, func(ctx context.Context) (DecomposeResponse, error) {
		return d.next.Decompose(ctx, req)
	}, AcceptDecompose)
}

type factChecker struct {
	next FactChecker
	m    *middleware
}

func (f *factChecker) Check(ctx context.Context, req CheckRequest) (CheckResponse, error) {
	parts := append([]string{req.Claim}, req.Documents...)
	key := f.m.cacheKey(NameCheck, parts...)
	return invoke(ctx, f.m, NameCheck, key, func(ctx context.Context) (CheckResponse, error) {
		return f.next.Check(ctx, req)
	}, func(resp CheckResponse) error {
		return AcceptCheck(req, resp)
	})
}

// AcceptDecompose reports whether a decomposition is usable as-is: it
// passes the schema and every claim has text
func AcceptDecompose(resp DecomposeResponse) error {
	if err := Validate(resp); err != nil {
		return err
	}
	for i, c := range resp.Claims {
		if strings.TrimSpace(c.ClaimText) == "" {
			return fmt.Errorf("%w: claim %d has no text", ErrInvalidResponse, i+1)
		}
	}
	return nil
}

// AcceptCheck reports whether a verdict is usable for req: a known status,
// an in-range confidence and evidence quoted from req.Documents
func AcceptCheck(req CheckRequest, resp CheckResponse) error {
	resp.Status = NormalizeStatus(resp.Status)
	if err := Validate(resp); err != nil {
		return err
	}
	_, err := validate.NewEvidenceValidator(req.Documents).Validate(resp.Evidence)
	return err
}

func (m *middleware) cacheKey(name string, parts ...string) string {
	if m.opts.Cache == nil {
		return ""
	}
	return cache.Key(name, append([]string{m.opts.Provider, m.opts.Model}, parts...)...)
}

// invoke runs fn through the cache, metrics, retry and rate-limit layers.
// An empty key bypasses the cache. Results rejected by accept are returned
// but not stored, so the next call asks the capability again.
func invoke[T any](ctx context.Context, m *middleware, name, key string, fn func(context.Context) (T, error), accept func(T) error) (T, error) {
	log := m.opts.Logger.With("capability", name, "provider", m.opts.Provider)

	if key != "" {
		if data, ok := m.opts.Cache.Get(key); ok {
			var cached T
			if err := json.Unmarshal(data, &cached); err == nil {
				m.opts.Metrics.ObserveCacheHit(name)
				log.Debug("Capability cache hit")
				return cached, nil
			}
		}
	}

	start := time.Now()
	result, err := retry(ctx, m.opts.Retry, log, func() (T, error) {
		if m.opts.Limiter != nil {
			if err := m.opts.Limiter.Wait(ctx, m.opts.Provider); err != nil {
				return *new(T), backoff.Permanent(err)
			}
		}
		res, err := fn(ctx)
		if err != nil && (ctx.Err() != nil || !retryable(err)) {
			return res, backoff.Permanent(err)
		}
		return res, err
	})
	m.opts.Metrics.ObserveCall(name, err, time.Since(start))
	if err != nil {
		return result, err
	}

	if key != "" && accept != nil {
		if err := accept(result); err != nil {
			log.Debug("Capability result not cached", "error", err)
			return result, nil
		}
	}
	if key != "" {
		if data, err := json.Marshal(result); err == nil {
			if err := m.opts.Cache.Set(key, data, m.opts.CacheTTL); err != nil {
				log.Warn("Capability cache write failed", "error", err)
			}
		}
	}
	return result, nil
}

func retry[T any](ctx context.Context, policy RetryPolicy, log *slog.Logger, op backoff.Operation[T]) (T, error) {
	attempts := policy.MaxAttempts
	if attempts <= 1 {
		res, err := op()
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Err
		}
		return res, err
	}

	b := backoff.NewExponentialBackOff()
	if policy.Initial > 0 {
		b.InitialInterval = policy.Initial
	}
	if policy.Max > 0 {
		b.MaxInterval = policy.Max
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(attempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Warn("Capability call failed, retrying", "error", err, "backoff", next)
		}),
	)
}

// retryable reports whether a capability error is transient.
// Schema violations are permanent.
func retryable(err error) bool {
	if errors.Is(err, ErrInvalidResponse) {
		return false
	}
	return llm.Retryable(err)
}
