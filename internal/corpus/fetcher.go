package corpus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/ppiankov/credence/internal/util"
	"github.com/ppiankov/credence/internal/worker"
)

// ErrDisallowed is returned when robots.txt forbids fetching a URL
var ErrDisallowed = errors.New("disallowed by robots.txt")

// StatusError is returned for non-2xx responses
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %s", e.Status)
}

// FetcherConfig configures HTTP document fetching
type FetcherConfig struct {
	Timeout       time.Duration
	UserAgent     string
	MaxBytes      int64
	RespectRobots bool
	HTTPProxy     string
	HTTPSProxy    string
	NoProxy       string

	// MaxAttempts and RetryInitial bound retries of transient failures
	MaxAttempts  uint
	RetryInitial time.Duration
}

// Fetcher downloads remote documents
type Fetcher struct {
	httpClient *http.Client
	robots     *RobotsChecker
	limiter    *worker.Limiter
	config     FetcherConfig
}

// FetchResult contains the fetched body and metadata
type FetchResult struct {
	Body        []byte
	ContentType string
	FinalURL    string
}

// NewFetcher creates a new Fetcher. limiter may be nil.
func NewFetcher(config FetcherConfig, limiter *worker.Limiter) *Fetcher {
	if config.MaxBytes <= 0 {
		config.MaxBytes = 2_000_000
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	client := &http.Client{
		Timeout: config.Timeout,
		Transport: &http.Transport{
			Proxy: util.NewProxyFunc(config.HTTPProxy, config.HTTPSProxy, config.NoProxy),
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 3 {
				return fmt.Errorf("stopped after 3 redirects")
			}
			return nil
		},
	}

	f := &Fetcher{
		httpClient: client,
		limiter:    limiter,
		config:     config,
	}
	if config.RespectRobots {
		f.robots = NewRobotsChecker(client, config.UserAgent)
	}
	return f
}

// Fetch retrieves a document, retrying 429 and 5xx responses with backoff
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	if f.robots != nil {
		allowed, delay, err := f.robots.CanFetch(ctx, rawURL)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, fmt.Errorf("%s: %w", rawURL, ErrDisallowed)
		}
		if delay > 0 && f.limiter != nil {
			if parsed, err := url.Parse(rawURL); err == nil {
				if err := f.limiter.WaitWithDelay(ctx, parsed.Host, delay); err != nil {
					return nil, err
				}
			}
		}
	}

	attempts := f.config.MaxAttempts
	if attempts == 0 {
		attempts = 3
	}
	b := backoff.NewExponentialBackOff()
	if f.config.RetryInitial > 0 {
		b.InitialInterval = f.config.RetryInitial
	}

	return backoff.Retry(ctx, func() (*FetchResult, error) {
		if f.limiter != nil {
			if err := f.limiter.WaitURL(ctx, rawURL); err != nil {
				return nil, backoff.Permanent(err)
			}
		}

		res, err := f.fetchOnce(ctx, rawURL)
		if err == nil {
			return res, nil
		}

		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			if statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= 500 {
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		if ctx.Err() != nil {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(attempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			slog.Warn("Fetch failed, retrying", "url", rawURL, "error", err, "backoff", next)
		}),
	)
}

func (f *Fetcher) fetchOnce(ctx context.Context, rawURL string) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain,text/markdown;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return &FetchResult{
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		FinalURL:    resp.Request.URL.String(),
	}, nil
}
