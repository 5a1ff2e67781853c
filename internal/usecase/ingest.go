package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"copilot/internal/adapter/splitter"
	"copilot/internal/domain"
	"copilot/internal/port"
)

// Ingestor loads documents from a content source, segments them into
// chunks, embeds the chunk texts, and upserts them into one knowledge
// collection. Re-running ingestion over the same content is a no-op at
// the index level because chunk keys are stable.
type Ingestor struct {
	source   port.ContentSource
	chunker  port.Chunker
	embedder port.Embedder
	index    port.VectorIndex
	log      *zap.Logger
}

// NewIngestor wires an ingestion run.
func NewIngestor(source port.ContentSource, chunker port.Chunker, embedder port.Embedder, index port.VectorIndex, log *zap.Logger) *Ingestor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ingestor{
		source:   source,
		chunker:  chunker,
		embedder: embedder,
		index:    index,
		log:      log,
	}
}

// IngestResult summarizes one ingestion run.
type IngestResult struct {
	DocumentsProcessed int
	DocumentsSkipped   int
	ChunksCreated      int
	Errors             []string
}

// Ingest processes every source document into the collection. A
// document that fails to chunk or embed is recorded and skipped; the
// run continues with the rest.
func (u *Ingestor) Ingest(ctx context.Context, collection string, progress func(done, total int)) (*IngestResult, error) {
	docs, err := u.source.Documents(ctx)
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}

	if err := u.index.EnsureCollection(ctx, collection, u.embedder.Dimension()); err != nil {
		return nil, fmt.Errorf("ensure collection: %w", err)
	}

	result := &IngestResult{}
	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if err := u.ingestDocument(ctx, collection, doc, result); err != nil {
			u.log.Warn("document skipped", zap.String("source", doc.SourceID), zap.Error(err))
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", doc.SourceID, err))
			result.DocumentsSkipped++
		} else {
			result.DocumentsProcessed++
		}
		if progress != nil {
			progress(i+1, len(docs))
		}
	}

	u.log.Info("ingestion complete",
		zap.String("collection", collection),
		zap.Int("documents", result.DocumentsProcessed),
		zap.Int("chunks", result.ChunksCreated),
		zap.Int("skipped", result.DocumentsSkipped))
	return result, nil
}

func (u *Ingestor) ingestDocument(ctx context.Context, collection string, doc domain.Document, result *IngestResult) error {
	// Chunk offsets refer to the cleaned text, so cleaning happens
	// before segmentation and the cleaned form is what gets stored.
	doc.Text = splitter.Clean(doc.Text)

	chunks, err := u.chunker.Chunk(ctx, doc)
	if err != nil {
		return fmt.Errorf("chunk: %w", err)
	}
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}
	vectors, err := u.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}

	if err := u.index.Upsert(ctx, collection, chunks, vectors); err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	result.ChunksCreated += len(chunks)
	return nil
}
