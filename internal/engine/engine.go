// Package engine owns the recommender lifecycle: catalog acquisition, index
// warm-up and serving.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Pranabbh09/SHL-Recommendation-Engine-Backend/internal/catalog"
	"github.com/Pranabbh09/SHL-Recommendation-Engine-Backend/internal/index"
	"github.com/Pranabbh09/SHL-Recommendation-Engine-Backend/internal/recommend"
)

type State string

const (
	StateUninitialized State = "uninitialized"
	StateWarming       State = "warming"
	StateReady         State = "ready"
	StateFailed        State = "failed"
)

var (
	// ErrNotReady is returned by Recommend until Warm has succeeded.
	ErrNotReady = errors.New("engine is not ready")
	// ErrReindexRunning is returned when a rebuild is already in progress.
	ErrReindexRunning = errors.New("reindex already running")
)

// CatalogSource provides the catalog snapshot.
type CatalogSource interface {
	EnsureCatalog(ctx context.Context) (*catalog.Records, error)
	LastRun() catalog.Stats
}

type Deps struct {
	Catalog  CatalogSource
	Store    *index.Store
	Indexer  *index.Indexer
	Pipeline *recommend.Pipeline
	Logger   *zap.Logger
}

// Status is a point-in-time view of the engine.
type Status struct {
	State            State          `json:"state"`
	Error            string         `json:"error,omitempty"`
	CatalogRecords   int            `json:"catalog_records"`
	IndexEntries     int            `json:"index_entries"`
	IndexModel       string         `json:"index_model,omitempty"`
	IndexUpdatedAt   time.Time      `json:"index_updated_at"`
	Reindexing       bool           `json:"reindexing"`
	TypeDistribution map[string]int `json:"type_distribution"`
	LastCrawl        catalog.Stats  `json:"last_crawl"`
}

// Engine is constructed once at start and shared by all request handlers.
type Engine struct {
	deps Deps

	mu      sync.RWMutex
	state   State
	err     error
	records *catalog.Records

	reindexMu  sync.Mutex
	reindexing bool
}

func New(deps Deps) *Engine {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Engine{deps: deps, state: StateUninitialized}
}

func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Err returns the error that moved the engine to StateFailed.
func (e *Engine) Err() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.err
}

// Warm acquires the catalog and makes sure the index matches it. The index
// is rebuilt when it is missing, unreadable, built with another embedding
// model or holds a different number of entries than the catalog.
func (e *Engine) Warm(ctx context.Context) error {
	e.mu.Lock()
	if e.state == StateWarming {
		e.mu.Unlock()
		return errors.New("engine is already warming")
	}
	e.state = StateWarming
	e.err = nil
	e.mu.Unlock()

	records, err := e.warm(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()

	if err != nil {
		e.state = StateFailed
		e.err = err
		e.deps.Logger.Error("Engine warm-up failed", zap.Error(err))
		return err
	}

	e.records = records
	e.state = StateReady
	e.deps.Logger.Info("Engine ready",
		zap.Int("catalog_records", records.Len()),
		zap.Int("index_entries", e.deps.Store.Count()),
	)

	return nil
}

func (e *Engine) warm(ctx context.Context) (*catalog.Records, error) {
	records, err := e.deps.Catalog.EnsureCatalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("ensure catalog: %w", err)
	}

	if err := e.deps.Store.LoadFromDisk(); err != nil {
		e.deps.Logger.Warn("Persisted index is unreadable, rebuilding", zap.Error(err))
	}

	if reason := e.staleReason(records); reason != "" {
		e.deps.Logger.Info("Building index", zap.String("reason", reason))
		if err := e.rebuild(ctx, records); err != nil {
			return nil, err
		}
	} else {
		e.deps.Logger.Info("Index is warm", zap.Int("entries", e.deps.Store.Count()))
	}

	return records, nil
}

func (e *Engine) staleReason(records *catalog.Records) string {
	store := e.deps.Store
	switch {
	case store.Count() == 0:
		return "empty"
	case store.Count() != records.Len():
		return "size differs from catalog"
	case store.Model() != e.deps.Indexer.Model():
		return "embedding model changed"
	case store.CatalogDigest() != records.Digest():
		return "catalog contents changed"
	default:
		return ""
	}
}

func (e *Engine) rebuild(ctx context.Context, records *catalog.Records) error {
	if err := e.deps.Indexer.Build(ctx, records); err != nil {
		return fmt.Errorf("build index: %w", err)
	}
	if err := e.deps.Store.SaveToDisk(); err != nil {
		return fmt.Errorf("save index: %w", err)
	}
	return nil
}

// Reindex rebuilds the index from the current catalog. Requests keep being
// served from the previous index until the new one is published.
func (e *Engine) Reindex(ctx context.Context) error {
	if !e.reindexMu.TryLock() {
		return ErrReindexRunning
	}
	defer e.reindexMu.Unlock()

	e.mu.Lock()
	records := e.records
	if e.state != StateReady || records == nil {
		e.mu.Unlock()
		return ErrNotReady
	}
	e.reindexing = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.reindexing = false
		e.mu.Unlock()
	}()

	started := time.Now()
	if err := e.rebuild(ctx, records); err != nil {
		e.deps.Logger.Error("Reindex failed, keeping previous index", zap.Error(err))
		return err
	}

	e.deps.Logger.Info("Reindex finished",
		zap.Int("entries", e.deps.Store.Count()),
		zap.Duration("took", time.Since(started)),
	)
	return nil
}

// Recommend serves one request once the engine is ready.
func (e *Engine) Recommend(ctx context.Context, query string) (*recommend.Result, error) {
	if state := e.State(); state != StateReady {
		return nil, fmt.Errorf("%w: %s", ErrNotReady, state)
	}
	return e.deps.Pipeline.Recommend(ctx, query)
}

func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()

	status := Status{
		State:            e.state,
		CatalogRecords:   e.records.Len(),
		IndexEntries:     e.deps.Store.Count(),
		IndexModel:       e.deps.Store.Model(),
		IndexUpdatedAt:   e.deps.Store.UpdatedAt(),
		Reindexing:       e.reindexing,
		TypeDistribution: e.records.TypeDistribution(),
		LastCrawl:        e.deps.Catalog.LastRun(),
	}
	if e.err != nil {
		status.Error = e.err.Error()
	}
	return status
}
