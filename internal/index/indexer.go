package index

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Pranabbh09/SHL-Recommendation-Engine-Backend/internal/catalog"
	"github.com/Pranabbh09/SHL-Recommendation-Engine-Backend/internal/embeddings"
)

const DefaultBatchSize = 32

// Indexer embeds catalog records and publishes them to a Store.
type Indexer struct {
	embedder  embeddings.Embedder
	store     *Store
	batchSize int
	logger    *zap.Logger
}

func NewIndexer(embedder embeddings.Embedder, store *Store, batchSize int, logger *zap.Logger) *Indexer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Indexer{embedder: embedder, store: store, batchSize: batchSize, logger: logger}
}

// Build embeds every record and publishes the result. The served snapshot is
// only replaced when all batches succeed.
func (ix *Indexer) Build(ctx context.Context, records *catalog.Records) error {
	if records.Len() == 0 {
		return fmt.Errorf("build index: no records")
	}

	builder := NewBuilder(ix.embedder.Model())
	builder.SetCatalogDigest(records.Digest())

	for start := 0; start < records.Len(); start += ix.batchSize {
		end := min(start+ix.batchSize, records.Len())
		batch := records.Items[start:end]

		texts := make([]string, len(batch))
		for i, record := range batch {
			texts[i] = EmbeddingText(record)
		}

		vectors, err := ix.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed records %d-%d: %w", start, end, err)
		}
		if len(vectors) != len(batch) {
			return fmt.Errorf("embed records %d-%d: got %d vectors", start, end, len(vectors))
		}

		for i, record := range batch {
			metadata, err := EncodeRecord(record)
			if err != nil {
				return err
			}
			builder.Upsert(record.URL, vectors[i], metadata)
		}

		ix.logger.Debug("Indexed batch", zap.Int("from", start), zap.Int("to", end), zap.Int("total", records.Len()))
	}

	ix.store.Publish(builder)

	ix.logger.Info("Index published",
		zap.Int("entries", builder.Len()),
		zap.String("model", ix.embedder.Model()),
	)

	return nil
}

// Model returns the embedding model used for new snapshots.
func (ix *Indexer) Model() string {
	return ix.embedder.Model()
}
