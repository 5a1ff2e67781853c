package index

import (
	"context"
	"fmt"
	"sync"

	"copilot/internal/domain"
)

// MemoryIndex keeps everything in process memory. Used by tests and
// ephemeral runs where persistence is not wanted.
type MemoryIndex struct {
	mu          sync.RWMutex
	collections map[string]map[string]indexEntry
}

// NewMemoryIndex creates an empty in-memory vector index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{collections: make(map[string]map[string]indexEntry)}
}

func (s *MemoryIndex) EnsureCollection(_ context.Context, collection string, _ int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[collection]; !ok {
		s.collections[collection] = make(map[string]indexEntry)
	}
	return nil
}

func (s *MemoryIndex) Upsert(_ context.Context, collection string, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("%w: %d chunks with %d vectors", domain.ErrDataIntegrity, len(chunks), len(vectors))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, ok := s.collections[collection]
	if !ok {
		return fmt.Errorf("unknown collection %s", collection)
	}
	for i, chunk := range chunks {
		entries[chunk.Key()] = pointEntry(collection, storedPoint{
			Vector:   vectors[i],
			SourceID: chunk.SourceID,
			URL:      chunk.URL,
			Title:    chunk.Title,
			Start:    chunk.Start,
			End:      chunk.End,
			Text:     chunk.Text,
		})
	}
	return nil
}

func (s *MemoryIndex) Search(_ context.Context, collection string, vector []float32, k int) ([]domain.RankedPassage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, ok := s.collections[collection]
	if !ok {
		return nil, fmt.Errorf("unknown collection %s", collection)
	}
	if len(entries) == 0 || k <= 0 {
		return nil, nil
	}

	passages := make([]domain.RankedPassage, 0, len(entries))
	for _, entry := range entries {
		p := entry.passage
		p.Score = cosine(vector, entry.vector)
		passages = append(passages, p)
	}
	sortPassages(passages)

	if k > len(passages) {
		k = len(passages)
	}
	return passages[:k], nil
}

func (s *MemoryIndex) Count(_ context.Context, collection string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, ok := s.collections[collection]
	if !ok {
		return 0, fmt.Errorf("unknown collection %s", collection)
	}
	return len(entries), nil
}
