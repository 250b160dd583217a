package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

const FileName = "index.json"

var (
	// ErrEmpty is returned by Query when nothing has been published.
	ErrEmpty = errors.New("vector index is empty")
	// ErrDimensionMismatch means the query vector was produced by a different
	// model than the indexed vectors.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

type snapshot struct {
	entries   []Entry
	model     string
	digest    string
	updatedAt time.Time
}

// Store is an in-memory cosine similarity index. Readers always see one
// complete published snapshot; writers build a new one and swap it in.
type Store struct {
	current atomic.Pointer[snapshot]
	path    string

	saveMu sync.Mutex
}

func NewStore(dataDir string) *Store {
	s := &Store{path: filepath.Join(dataDir, FileName)}
	s.current.Store(&snapshot{})
	return s
}

// Path returns the file used by SaveToDisk and LoadFromDisk.
func (s *Store) Path() string {
	return s.path
}

// Builder collects entries for the next snapshot.
type Builder struct {
	entries []Entry
	pos     map[string]int
	model   string
	digest  string
}

func NewBuilder(model string) *Builder {
	return &Builder{pos: make(map[string]int), model: model}
}

// Upsert adds an entry or replaces the one with the same id in place.
func (b *Builder) Upsert(id string, vector []float32, metadata map[string]any) {
	entry := Entry{ID: id, Metadata: metadata, Embedding: vector}
	if i, ok := b.pos[id]; ok {
		b.entries[i] = entry
		return
	}
	b.pos[id] = len(b.entries)
	b.entries = append(b.entries, entry)
}

// SetCatalogDigest records which catalog the entries describe.
func (b *Builder) SetCatalogDigest(digest string) {
	b.digest = digest
}

func (b *Builder) Len() int {
	return len(b.entries)
}

// Publish atomically replaces the served snapshot with the builder contents.
func (s *Store) Publish(b *Builder) {
	entries := make([]Entry, len(b.entries))
	copy(entries, b.entries)
	s.current.Store(&snapshot{entries: entries, model: b.model, digest: b.digest, updatedAt: time.Now()})
}

// Count returns the number of indexed entries.
func (s *Store) Count() int {
	return len(s.current.Load().entries)
}

// UpdatedAt returns when the served snapshot was published or saved.
func (s *Store) UpdatedAt() time.Time {
	return s.current.Load().updatedAt
}

// Model returns the embedding model the served snapshot was built with.
func (s *Store) Model() string {
	return s.current.Load().model
}

// CatalogDigest returns the catalog digest of the served snapshot, empty for
// snapshots persisted without one.
func (s *Store) CatalogDigest() string {
	return s.current.Load().digest
}

// Query returns the k entries most similar to vector by cosine similarity,
// highest first. Equal scores keep insertion order.
func (s *Store) Query(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snap := s.current.Load()
	if len(snap.entries) == 0 {
		return nil, ErrEmpty
	}
	if dims := len(snap.entries[0].Embedding); len(vector) != dims {
		return nil, fmt.Errorf("%w: query has %d, index has %d", ErrDimensionMismatch, len(vector), dims)
	}

	hits := make([]Hit, 0, len(snap.entries))
	for _, entry := range snap.entries {
		hits = append(hits, Hit{
			ID:       entry.ID,
			Metadata: entry.Metadata,
			Score:    cosineSimilarity(vector, entry.Embedding),
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})

	if k > 0 && k < len(hits) {
		hits = hits[:k]
	}

	return hits, nil
}

// LoadFromDisk replaces the served snapshot with the persisted one. A missing
// file leaves the store unchanged and returns nil.
func (s *Store) LoadFromDisk() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read index file: %w", err)
	}

	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return fmt.Errorf("decode index: %w", err)
	}

	s.current.Store(&snapshot{
		entries:   idx.Entries,
		model:     idx.Model,
		digest:    idx.CatalogDigest,
		updatedAt: idx.UpdatedAt,
	})
	return nil
}

// SaveToDisk persists the served snapshot, replacing the file as a whole.
func (s *Store) SaveToDisk() error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	snap := s.current.Load()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	data, err := json.Marshal(Index{
		Entries:       snap.entries,
		Model:         snap.model,
		UpdatedAt:     snap.updatedAt,
		CatalogDigest: snap.digest,
	})
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+FileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp index: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write index file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close index file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace index file: %w", err)
	}

	return nil
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}

	return float32(dot / denom)
}
