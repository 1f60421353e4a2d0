package corpus

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/credence/internal/model"
)

// Loader builds a corpus from files, directories and URLs
type Loader struct {
	fetcher     *Fetcher
	formats     *Registry
	concurrency int
}

// NewLoader creates a loader. fetcher may be nil, in which case URL
// sources are rejected.
func NewLoader(fetcher *Fetcher, concurrency int) *Loader {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Loader{
		fetcher:     fetcher,
		formats:     NewRegistry(),
		concurrency: concurrency,
	}
}

// IsURL reports whether a source is fetched over HTTP
func IsURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// Load reads every source and returns the documents in source order.
// Directories expand to their supported files in lexical order. Documents
// with no text are skipped; any read or fetch failure fails the load.
func (l *Loader) Load(ctx context.Context, sources []string) (model.Corpus, error) {
	expanded, err := expand(sources)
	if err != nil {
		return nil, err
	}

	docs := make([]string, len(expanded))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)

	for i, src := range expanded {
		g.Go(func() error {
			text, err := l.loadOne(ctx, src)
			if err != nil {
				return fmt.Errorf("load %s: %w", src, err)
			}
			docs[i] = text
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	corpus := make(model.Corpus, 0, len(docs))
	for i, doc := range docs {
		if doc == "" {
			slog.Warn("Skipping empty document", "source", expanded[i])
			continue
		}
		corpus = append(corpus, doc)
	}
	return corpus, nil
}

func (l *Loader) loadOne(ctx context.Context, src string) (string, error) {
	if IsURL(src) {
		if l.fetcher == nil {
			return "", fmt.Errorf("URL sources are not enabled")
		}
		res, err := l.fetcher.Fetch(ctx, src)
		if err != nil {
			return "", err
		}
		format := l.formats.Find(res.FinalURL, res.ContentType)
		slog.Debug("Fetched document", "url", src, "format", format.Name(), "bytes", len(res.Body))
		return format.Text(res.Body)
	}

	data, err := os.ReadFile(src)
	if err != nil {
		return "", err
	}
	return l.formats.Find(src, "").Text(data)
}

func expand(sources []string) ([]string, error) {
	var out []string
	for _, src := range sources {
		src = strings.TrimSpace(src)
		if src == "" {
			continue
		}
		if IsURL(src) {
			out = append(out, src)
			continue
		}

		info, err := os.Stat(src)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", src, err)
		}
		if !info.IsDir() {
			out = append(out, src)
			continue
		}

		var files []string
		err = filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && Supported(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", src, err)
		}
		sort.Strings(files)
		out = append(out, files...)
	}
	return out, nil
}
