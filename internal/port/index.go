package port

import (
	"context"

	"copilot/internal/domain"
)

// VectorIndex stores chunk vectors and serves similarity queries.
type VectorIndex interface {
	// EnsureCollection creates the collection if it does not exist.
	EnsureCollection(ctx context.Context, collection string, dimension int) error

	// Upsert adds or updates chunks in a collection. The operation is
	// idempotent per chunk key: re-ingesting the same (source, offsets)
	// overwrites, never duplicates.
	Upsert(ctx context.Context, collection string, chunks []domain.Chunk, vectors [][]float32) error

	// Search returns the k best-matching passages, sorted by
	// (score desc, source_id asc, start_offset asc).
	Search(ctx context.Context, collection string, vector []float32, k int) ([]domain.RankedPassage, error)

	// Count returns the number of stored chunks in a collection.
	Count(ctx context.Context, collection string) (int, error)
}
