package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ppiankov/credence/internal/model"
)

// Sink receives a snapshot of a run after every status transition.
// Reporting is best-effort: a failing sink never fails the run.
type Sink interface {
	Report(ctx context.Context, run model.Run) error
}

// SinkFunc adapts a function to the Sink interface
type SinkFunc func(ctx context.Context, run model.Run) error

// Report calls f
func (f SinkFunc) Report(ctx context.Context, run model.Run) error {
	return f(ctx, run)
}

// MultiSink fans a snapshot out to several sinks.
// Every sink is called even if an earlier one fails.
type MultiSink []Sink

// Report forwards run to each sink and joins their errors
func (m MultiSink) Report(ctx context.Context, run model.Run) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Report(ctx, run); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSink writes one structured line per transition
type LogSink struct {
	Logger *slog.Logger
}

// Report logs the run status
func (s LogSink) Report(ctx context.Context, run model.Run) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	attrs := []any{
		"run_id", run.ID,
		"status", run.Status,
		"claims", len(run.Claims),
		"results", len(run.Results),
		"dropped", len(run.Dropped),
	}
	if run.Metrics != nil {
		attrs = append(attrs, "score", run.Metrics.Score, "risk", run.Metrics.RiskLevel)
	}

	if run.Status == model.StatusError {
		logger.WarnContext(ctx, "Run failed", append(attrs, "error", run.Error)...)
		return nil
	}
	logger.InfoContext(ctx, "Run progress", attrs...)
	return nil
}
