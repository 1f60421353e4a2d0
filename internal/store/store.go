// Package store keeps run snapshots outside the pipeline. Both stores
// implement pipeline.Sink, so they receive every transition of a run.
package store

import (
	"context"
	"errors"

	"github.com/ppiankov/credence/internal/model"
)

// ErrNotFound is returned for an unknown run ID
var ErrNotFound = errors.New("run not found")

// DefaultHistoryLimit mirrors the history view of the web client
const DefaultHistoryLimit = 5

// Store persists run snapshots and serves them back
type Store interface {
	Report(ctx context.Context, run model.Run) error
	Get(ctx context.Context, id string) (*model.Run, error)
	History(ctx context.Context, limit int) ([]model.Run, error)
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	return limit
}
