package port

import (
	"context"

	"copilot/internal/domain"
)

// SentenceSplitter turns raw text into an ordered sequence of
// sentence-level spans.
type SentenceSplitter interface {
	Split(text string) []domain.TextSpan
}

// Chunker turns a document into retrieval chunks. Chunking must never
// fail outright: implementations fall back to fixed-size splitting when
// semantic segmentation is impossible.
type Chunker interface {
	Chunk(ctx context.Context, doc domain.Document) ([]domain.Chunk, error)
}
