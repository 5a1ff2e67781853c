// Package chunker segments document text into retrieval chunks whose
// boundaries follow meaning rather than fixed character counts.
package chunker

import (
	"context"
	"fmt"
	"math"

	"copilot/internal/domain"
	"copilot/internal/port"
)

// Defaults mirror the knowledge-base ingestion settings.
const (
	DefaultSimilarityThreshold = 0.7
	DefaultMinChunkSize        = 500
	DefaultMaxChunkSize        = 2000
)

// SemanticChunker proposes chunk boundaries where adjacent sentence
// embeddings diverge, merges undersized chunks, and re-splits oversized
// ones with the fixed-size fallback. If embedding the document fails,
// the whole document is segmented by the fallback alone: chunking never
// fails outright.
type SemanticChunker struct {
	splitter  port.SentenceSplitter
	embedder  port.Embedder
	threshold float64
	minSize   int
	maxSize   int
}

// NewSemanticChunker creates a chunker with the given boundary threshold
// and size bounds. A lower threshold proposes fewer boundaries.
func NewSemanticChunker(splitter port.SentenceSplitter, embedder port.Embedder, threshold float64, minSize, maxSize int) *SemanticChunker {
	if threshold <= 0 || threshold >= 1 {
		threshold = DefaultSimilarityThreshold
	}
	if minSize <= 0 {
		minSize = DefaultMinChunkSize
	}
	if maxSize <= minSize {
		maxSize = DefaultMaxChunkSize
	}
	return &SemanticChunker{
		splitter:  splitter,
		embedder:  embedder,
		threshold: threshold,
		minSize:   minSize,
		maxSize:   maxSize,
	}
}

// Chunk segments a document. Degenerate input yields no chunks and no
// error. The returned chunks are deterministic for identical embeddings
// and thresholds.
func (c *SemanticChunker) Chunk(ctx context.Context, doc domain.Document) ([]domain.Chunk, error) {
	spans := c.splitter.Split(doc.Text)
	if len(spans) == 0 {
		return nil, nil
	}

	groups, err := c.semanticGroups(ctx, doc.Text, spans)
	if err != nil {
		// Embedding is unavailable: segment with the fixed-size
		// fallback instead of failing the document.
		groups = fixedGroups(doc.Text, spans, c.maxSize)
	}

	chunks := make([]domain.Chunk, 0, len(groups))
	for _, group := range groups {
		chunk, err := c.buildChunk(doc, group)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

// semanticGroups proposes boundaries from adjacent-sentence similarity,
// then merges undersized groups, re-splits oversized ones, and merges
// once more: re-splitting can leave a short remainder, and only the
// final group may stay below the minimum size.
func (c *SemanticChunker) semanticGroups(ctx context.Context, text string, spans []domain.TextSpan) ([][]domain.TextSpan, error) {
	if len(spans) == 1 {
		return c.merge(c.refine(text, [][]domain.TextSpan{spans})), nil
	}

	texts := make([]string, len(spans))
	for i, span := range spans {
		texts[i] = span.Text
	}
	vectors, err := c.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(spans) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d sentences", len(vectors), len(spans))
	}

	// A boundary goes between i-1 and i when similarity drops below the
	// threshold.
	var groups [][]domain.TextSpan
	current := []domain.TextSpan{spans[0]}
	for i := 1; i < len(spans); i++ {
		if cosineSimilarity(vectors[i-1], vectors[i]) < c.threshold {
			groups = append(groups, current)
			current = []domain.TextSpan{spans[i]}
			continue
		}
		current = append(current, spans[i])
	}
	groups = append(groups, current)

	groups = c.merge(groups)
	return c.merge(c.refine(text, groups)), nil
}

// merge folds any group smaller than minSize into the following group,
// or into the preceding one when it is the last. Repeats until no group
// is undersized or only one remains.
func (c *SemanticChunker) merge(groups [][]domain.TextSpan) [][]domain.TextSpan {
	for len(groups) > 1 {
		merged := false
		for i := 0; i < len(groups); i++ {
			if groupSize(groups[i]) >= c.minSize {
				continue
			}
			if i < len(groups)-1 {
				groups[i+1] = append(groups[i], groups[i+1]...)
				groups = append(groups[:i], groups[i+1:]...)
			} else {
				groups[i-1] = append(groups[i-1], groups[i]...)
				groups = groups[:i]
			}
			merged = true
			break
		}
		if !merged {
			break
		}
	}
	return groups
}

// refine re-splits any group larger than maxSize using the fixed-size
// splitter, which still respects sentence boundaries where it can.
func (c *SemanticChunker) refine(text string, groups [][]domain.TextSpan) [][]domain.TextSpan {
	var refined [][]domain.TextSpan
	for _, group := range groups {
		if groupSize(group) <= c.maxSize {
			refined = append(refined, group)
			continue
		}
		refined = append(refined, fixedGroups(text, group, c.maxSize)...)
	}
	return refined
}

// buildChunk materializes one span group as a chunk and verifies its
// offsets are consistent with the segmented text.
func (c *SemanticChunker) buildChunk(doc domain.Document, group []domain.TextSpan) (domain.Chunk, error) {
	start := group[0].Start
	end := group[len(group)-1].End
	if start < 0 || end > len(doc.Text) || start >= end {
		return domain.Chunk{}, fmt.Errorf("%w: span group [%d,%d) outside text of %d bytes",
			domain.ErrDataIntegrity, start, end, len(doc.Text))
	}
	return domain.Chunk{
		SourceID: doc.SourceID,
		URL:      doc.URL,
		Title:    doc.Title,
		Start:    start,
		End:      end,
		Text:     doc.Text[start:end],
	}, nil
}

// groupSize is the character size of the chunk a span group would form,
// including the whitespace between its sentences.
func groupSize(group []domain.TextSpan) int {
	if len(group) == 0 {
		return 0
	}
	return group[len(group)-1].End - group[0].Start
}

// cosineSimilarity computes the cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float64 {
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

// FixedChunker segments purely by character count while respecting
// sentence boundaries. Used directly when no embedder is configured.
type FixedChunker struct {
	splitter port.SentenceSplitter
	maxSize  int
}

// NewFixedChunker creates a fixed-size chunker.
func NewFixedChunker(splitter port.SentenceSplitter, maxSize int) *FixedChunker {
	if maxSize <= 0 {
		maxSize = DefaultMaxChunkSize
	}
	return &FixedChunker{splitter: splitter, maxSize: maxSize}
}

// Chunk segments a document into fixed-size, sentence-aligned chunks.
func (c *FixedChunker) Chunk(_ context.Context, doc domain.Document) ([]domain.Chunk, error) {
	spans := c.splitter.Split(doc.Text)
	if len(spans) == 0 {
		return nil, nil
	}

	groups := fixedGroups(doc.Text, spans, c.maxSize)
	chunks := make([]domain.Chunk, 0, len(groups))
	for _, group := range groups {
		chunks = append(chunks, domain.Chunk{
			SourceID: doc.SourceID,
			URL:      doc.URL,
			Title:    doc.Title,
			Start:    group[0].Start,
			End:      group[len(group)-1].End,
			Text:     doc.Text[group[0].Start:group[len(group)-1].End],
		})
	}
	return chunks, nil
}
