// Package index provides vector index implementations: an embedded
// BoltDB store for local runs and a Qdrant REST client for deployments.
package index

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"

	"go.etcd.io/bbolt"

	"copilot/internal/domain"
)

// BoltIndex persists chunk vectors in BoltDB, one bucket per
// collection, and serves queries from an in-memory mirror with
// brute-force cosine scan. Fine for knowledge bases in the tens of
// thousands of chunks.
type BoltIndex struct {
	db *bbolt.DB

	mu          sync.RWMutex
	collections map[string]map[string]indexEntry // collection -> chunk key -> entry
}

type indexEntry struct {
	vector  []float32
	passage domain.RankedPassage
}

type storedPoint struct {
	Vector   []float32 `json:"v"`
	SourceID string    `json:"source_id"`
	URL      string    `json:"url"`
	Title    string    `json:"title"`
	Start    int       `json:"start"`
	End      int       `json:"end"`
	Text     string    `json:"text"`
}

// NewBoltIndex opens (or creates) a BoltDB-backed index at path and
// loads existing collections into memory.
func NewBoltIndex(path string) (*BoltIndex, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open index db: %w", err)
	}

	idx := &BoltIndex{
		db:          db,
		collections: make(map[string]map[string]indexEntry),
	}
	if err := idx.load(); err != nil {
		db.Close()
		return nil, fmt.Errorf("load index: %w", err)
	}
	return idx, nil
}

func (s *BoltIndex) load() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		return tx.ForEach(func(name []byte, b *bbolt.Bucket) error {
			entries := make(map[string]indexEntry)
			err := b.ForEach(func(k, v []byte) error {
				var p storedPoint
				if err := json.Unmarshal(v, &p); err != nil {
					return nil // skip corrupted entries
				}
				entries[string(k)] = pointEntry(string(name), p)
				return nil
			})
			if err != nil {
				return err
			}
			s.collections[string(name)] = entries
			return nil
		})
	})
}

func pointEntry(collection string, p storedPoint) indexEntry {
	return indexEntry{
		vector: p.Vector,
		passage: domain.RankedPassage{
			SourceID:   p.SourceID,
			URL:        p.URL,
			Title:      p.Title,
			Start:      p.Start,
			End:        p.End,
			Snippet:    p.Text,
			Collection: collection,
		},
	}
}

// EnsureCollection creates the bucket for a collection if missing.
func (s *BoltIndex) EnsureCollection(_ context.Context, collection string, _ int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(collection))
		return err
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", collection, err)
	}
	if _, ok := s.collections[collection]; !ok {
		s.collections[collection] = make(map[string]indexEntry)
	}
	return nil
}

// Upsert writes chunks keyed by their content-position key, so
// re-ingesting the same chunk overwrites instead of duplicating.
func (s *BoltIndex) Upsert(_ context.Context, collection string, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("%w: %d chunks with %d vectors", domain.ErrDataIntegrity, len(chunks), len(vectors))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, ok := s.collections[collection]
	if !ok {
		return fmt.Errorf("unknown collection %s", collection)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(collection))
		if b == nil {
			return fmt.Errorf("unknown collection %s", collection)
		}

		for i, chunk := range chunks {
			p := storedPoint{
				Vector:   vectors[i],
				SourceID: chunk.SourceID,
				URL:      chunk.URL,
				Title:    chunk.Title,
				Start:    chunk.Start,
				End:      chunk.End,
				Text:     chunk.Text,
			}
			data, err := json.Marshal(p)
			if err != nil {
				return err
			}
			key := chunk.Key()
			if err := b.Put([]byte(key), data); err != nil {
				return err
			}
			entries[key] = pointEntry(collection, p)
		}
		return nil
	})
}

// Search scores every stored vector against the query and returns the
// top k, ordered by score descending with ties broken by source then
// start offset so results are stable.
func (s *BoltIndex) Search(_ context.Context, collection string, vector []float32, k int) ([]domain.RankedPassage, error) {
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

// Count returns the number of chunks stored in a collection.
func (s *BoltIndex) Count(_ context.Context, collection string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, ok := s.collections[collection]
	if !ok {
		return 0, fmt.Errorf("unknown collection %s", collection)
	}
	return len(entries), nil
}

// Close closes the underlying database.
func (s *BoltIndex) Close() error {
	return s.db.Close()
}

func sortPassages(passages []domain.RankedPassage) {
	sort.Slice(passages, func(i, j int) bool {
		if passages[i].Score != passages[j].Score {
			return passages[i].Score > passages[j].Score
		}
		if passages[i].SourceID != passages[j].SourceID {
			return passages[i].SourceID < passages[j].SourceID
		}
		return passages[i].Start < passages[j].Start
	})
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
