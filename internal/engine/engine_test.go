package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pranabbh09/SHL-Recommendation-Engine-Backend/internal/catalog"
	"github.com/Pranabbh09/SHL-Recommendation-Engine-Backend/internal/index"
	"github.com/Pranabbh09/SHL-Recommendation-Engine-Backend/internal/recommend"
)

type fakeCatalog struct {
	records *catalog.Records
	err     error
}

func (f *fakeCatalog) EnsureCatalog(context.Context) (*catalog.Records, error) {
	return f.records, f.err
}

func (f *fakeCatalog) LastRun() catalog.Stats {
	return catalog.Stats{Source: catalog.SourceCache, Saved: f.records.Len()}
}

type countingEmbedder struct {
	model   string
	batches atomic.Int64
	fail    atomic.Bool
}

func (c *countingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if c.fail.Load() {
		return nil, errors.New("embedder down")
	}
	return []float32{float32(len(text)%7 + 1), 1}, nil
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.batches.Add(1)
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := c.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (c *countingEmbedder) Model() string { return c.model }

func sampleRecords(n int) *catalog.Records {
	records := &catalog.Records{}
	for i := 0; i < n; i++ {
		tag := catalog.TypeKnowledge
		if i%2 == 1 {
			tag = catalog.TypePersonality
		}
		records.Items = append(records.Items, &catalog.Record{
			URL:      fmt.Sprintf("https://example.com/%02d", i),
			Name:     fmt.Sprintf("Assessment %d", i),
			TestType: []string{tag},
		})
	}
	return records
}

func newEngine(t *testing.T, dir string, source CatalogSource, embedder *countingEmbedder) *Engine {
	t.Helper()

	store := index.NewStore(dir)
	return New(Deps{
		Catalog:  source,
		Store:    store,
		Indexer:  index.NewIndexer(embedder, store, 4, nil),
		Pipeline: recommend.NewPipeline(recommend.Deps{Embedder: embedder, Index: store}, recommend.Options{}),
	})
}

func TestEngineLifecycle(t *testing.T) {
	t.Parallel()

	embedder := &countingEmbedder{model: "m1"}
	e := newEngine(t, t.TempDir(), &fakeCatalog{records: sampleRecords(12)}, embedder)

	assert.Equal(t, StateUninitialized, e.State())
	_, err := e.Recommend(context.Background(), "Java")
	require.ErrorIs(t, err, ErrNotReady)

	require.NoError(t, e.Warm(context.Background()))
	assert.Equal(t, StateReady, e.State())

	result, err := e.Recommend(context.Background(), "Java developer")
	require.NoError(t, err)
	assert.Len(t, result.Assessments, 10)

	status := e.Status()
	assert.Equal(t, StateReady, status.State)
	assert.Equal(t, 12, status.CatalogRecords)
	assert.Equal(t, 12, status.IndexEntries)
	assert.Equal(t, "m1", status.IndexModel)
	assert.Equal(t, map[string]int{catalog.TypeKnowledge: 6, catalog.TypePersonality: 6}, status.TypeDistribution)
	assert.Equal(t, catalog.SourceCache, status.LastCrawl.Source)
}

func TestEngineWarmReusesPersistedIndex(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	source := &fakeCatalog{records: sampleRecords(6)}

	first := &countingEmbedder{model: "m1"}
	require.NoError(t, newEngine(t, dir, source, first).Warm(context.Background()))
	assert.Equal(t, int64(2), first.batches.Load())

	second := &countingEmbedder{model: "m1"}
	require.NoError(t, newEngine(t, dir, source, second).Warm(context.Background()))
	assert.Zero(t, second.batches.Load())

	otherModel := &countingEmbedder{model: "m2"}
	require.NoError(t, newEngine(t, dir, source, otherModel).Warm(context.Background()))
	assert.Equal(t, int64(2), otherModel.batches.Load())

	source.records = sampleRecords(9)
	grown := &countingEmbedder{model: "m2"}
	require.NoError(t, newEngine(t, dir, source, grown).Warm(context.Background()))
	assert.Equal(t, int64(3), grown.batches.Load())
}

func TestEngineWarmRebuildsWhenCatalogContentsChange(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	source := &fakeCatalog{records: sampleRecords(6)}

	first := &countingEmbedder{model: "m1"}
	require.NoError(t, newEngine(t, dir, source, first).Warm(context.Background()))

	replaced := sampleRecords(6)
	replaced.Items[2].URL = "https://example.com/renamed"
	source.records = replaced

	second := &countingEmbedder{model: "m1"}
	e := newEngine(t, dir, source, second)
	require.NoError(t, e.Warm(context.Background()))
	assert.Equal(t, int64(2), second.batches.Load())

	result, err := e.Recommend(context.Background(), "Assessment")
	require.NoError(t, err)
	urls := make([]string, 0, len(result.Assessments))
	for _, a := range result.Assessments {
		urls = append(urls, a.URL)
	}
	assert.Contains(t, urls, "https://example.com/renamed")
	assert.NotContains(t, urls, "https://example.com/02")
}

func TestEngineWarmFailure(t *testing.T) {
	t.Parallel()

	e := newEngine(t, t.TempDir(), &fakeCatalog{err: catalog.ErrCatalogUnavailable}, &countingEmbedder{model: "m1"})

	err := e.Warm(context.Background())
	require.ErrorIs(t, err, catalog.ErrCatalogUnavailable)
	assert.Equal(t, StateFailed, e.State())
	require.ErrorIs(t, e.Err(), catalog.ErrCatalogUnavailable)
	assert.NotEmpty(t, e.Status().Error)

	_, err = e.Recommend(context.Background(), "Java")
	require.ErrorIs(t, err, ErrNotReady)
}

func TestEngineReindexKeepsServingOnFailure(t *testing.T) {
	t.Parallel()

	embedder := &countingEmbedder{model: "m1"}
	e := newEngine(t, t.TempDir(), &fakeCatalog{records: sampleRecords(8)}, embedder)

	require.ErrorIs(t, e.Reindex(context.Background()), ErrNotReady)
	require.NoError(t, e.Warm(context.Background()))

	require.NoError(t, e.Reindex(context.Background()))
	assert.Equal(t, 8, e.Status().IndexEntries)

	embedder.fail.Store(true)
	require.Error(t, e.Reindex(context.Background()))
	assert.Equal(t, StateReady, e.State())
	assert.Equal(t, 8, e.Status().IndexEntries)
	assert.False(t, e.Status().Reindexing)
}
