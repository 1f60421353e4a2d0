package store

import (
	"context"
	"sort"
	"sync"

	"github.com/ppiankov/credence/internal/model"
)

const (
	defaultMaxRuns   = 1000
	subscriberBuffer = 16
)

// Memory is an in-process store with per-run subscriptions.
// Subscribers receive every snapshot reported after they subscribe; the
// channel is closed once the run reaches a terminal state.
type Memory struct {
	mu      sync.RWMutex
	runs    map[string]model.Run
	subs    map[string]map[chan model.Run]struct{}
	maxRuns int
}

// NewMemory creates a memory store holding at most maxRuns runs.
// The oldest finished runs are evicted first.
func NewMemory(maxRuns int) *Memory {
	if maxRuns <= 0 {
		maxRuns = defaultMaxRuns
	}
	return &Memory{
		runs:    make(map[string]model.Run),
		subs:    make(map[string]map[chan model.Run]struct{}),
		maxRuns: maxRuns,
	}
}

// Report stores the snapshot and forwards it to subscribers
func (m *Memory) Report(ctx context.Context, run model.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.runs[run.ID] = run.Clone()

	for ch := range m.subs[run.ID] {
		send(ch, run.Clone())
		if run.Status.Terminal() {
			close(ch)
		}
	}
	if run.Status.Terminal() {
		delete(m.subs, run.ID)
	}

	m.evict()
	return nil
}

// send delivers run without blocking the reporter. A slow subscriber loses
// the oldest queued snapshot rather than the newest.
func send(ch chan model.Run, run model.Run) {
	select {
	case ch <- run:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- run:
	default:
	}
}

func (m *Memory) evict() {
	if len(m.runs) <= m.maxRuns {
		return
	}

	finished := make([]model.Run, 0, len(m.runs))
	for _, r := range m.runs {
		if r.Status.Terminal() {
			finished = append(finished, r)
		}
	}
	sort.Slice(finished, func(i, j int) bool {
		return finished[i].CreatedAt.Before(finished[j].CreatedAt)
	})

	for _, r := range finished {
		if len(m.runs) <= m.maxRuns {
			return
		}
		delete(m.runs, r.ID)
	}
}

// Get returns the latest snapshot of a run
func (m *Memory) Get(ctx context.Context, id string) (*model.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	run, ok := m.runs[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := run.Clone()
	return &out, nil
}

// History returns up to limit runs, newest first
func (m *Memory) History(ctx context.Context, limit int) ([]model.Run, error) {
	limit = normalizeLimit(limit)

	m.mu.RLock()
	runs := make([]model.Run, 0, len(m.runs))
	for _, r := range m.runs {
		runs = append(runs, r.Clone())
	}
	m.mu.RUnlock()

	sort.Slice(runs, func(i, j int) bool {
		if runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].ID > runs[j].ID
		}
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	if len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// Subscribe returns a channel of snapshots for run id, starting with the
// current one. Call cancel to stop receiving before the run finishes.
func (m *Memory) Subscribe(id string) (<-chan model.Run, func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, ok := m.runs[id]
	if !ok {
		return nil, nil, ErrNotFound
	}

	ch := make(chan model.Run, subscriberBuffer)
	ch <- run.Clone()

	if run.Status.Terminal() {
		close(ch)
		return ch, func() {}, nil
	}

	if m.subs[id] == nil {
		m.subs[id] = make(map[chan model.Run]struct{})
	}
	m.subs[id][ch] = struct{}{}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if subs, ok := m.subs[id]; ok {
				if _, ok := subs[ch]; ok {
					delete(subs, ch)
					close(ch)
				}
				if len(subs) == 0 {
					delete(m.subs, id)
				}
			}
		})
	}
	return ch, cancel, nil
}
