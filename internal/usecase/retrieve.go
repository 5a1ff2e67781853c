package usecase

import (
	"context"
	"fmt"
	"sort"

	"copilot/internal/domain"
	"copilot/internal/port"
)

// Collection names one searchable knowledge collection and how many
// passages to take from it.
type Collection struct {
	Name  string
	Limit int
}

// Retriever embeds a query and gathers the best supporting passages
// across the configured knowledge collections.
type Retriever struct {
	embedder    port.Embedder
	index       port.VectorIndex
	collections []Collection
	minScore    float64
	charBudget  int
}

// NewRetriever creates a retriever. charBudget bounds the total
// character size of returned snippets; minScore floors the passage
// score.
func NewRetriever(embedder port.Embedder, index port.VectorIndex, collections []Collection, minScore float64, charBudget int) *Retriever {
	return &Retriever{
		embedder:    embedder,
		index:       index,
		collections: collections,
		minScore:    minScore,
		charBudget:  charBudget,
	}
}

// Retrieve returns ranked passages for a query. An empty result is not
// an error: it means no passage cleared the score floor and callers
// must handle "no evidence".
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]domain.RankedPassage, error) {
	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: got %d query vectors", domain.ErrDataIntegrity, len(vectors))
	}

	// Each collection is searched independently with its own limit.
	var merged []domain.RankedPassage
	for _, col := range r.collections {
		passages, err := r.index.Search(ctx, col.Name, vectors[0], col.Limit)
		if err != nil {
			return nil, fmt.Errorf("search %s: %w", col.Name, err)
		}
		merged = append(merged, passages...)
	}

	merged = filterByScore(merged, r.minScore)
	merged = dedupeOverlapping(merged)
	return truncateToBudget(merged, r.charBudget), nil
}

func filterByScore(passages []domain.RankedPassage, minScore float64) []domain.RankedPassage {
	kept := passages[:0]
	for _, p := range passages {
		if p.Score >= minScore {
			kept = append(kept, p)
		}
	}
	return kept
}

// dedupeOverlapping drops passages that overlap an already-kept passage
// from the same source, keeping the higher score. Input order is
// normalized to rank order first.
func dedupeOverlapping(passages []domain.RankedPassage) []domain.RankedPassage {
	sortByRank(passages)

	var kept []domain.RankedPassage
	for _, p := range passages {
		overlaps := false
		for _, k := range kept {
			if p.Overlaps(k) {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, p)
		}
	}
	return kept
}

// truncateToBudget keeps passages in rank order until adding the next
// snippet would exceed the character budget. The top passage is always
// kept so a generous snippet cannot starve the answer entirely.
func truncateToBudget(passages []domain.RankedPassage, budget int) []domain.RankedPassage {
	if budget <= 0 {
		return passages
	}
	var kept []domain.RankedPassage
	used := 0
	for _, p := range passages {
		if used+len(p.Snippet) > budget && len(kept) > 0 {
			break
		}
		kept = append(kept, p)
		used += len(p.Snippet)
	}
	return kept
}

func sortByRank(passages []domain.RankedPassage) {
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
