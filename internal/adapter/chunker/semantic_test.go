package chunker

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"copilot/internal/adapter/splitter"
	"copilot/internal/domain"
)

// stubEmbedder returns one preset vector per input text, in order.
type stubEmbedder struct {
	vectors [][]float32
	err     error
	calls   int
}

func (e *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	if len(texts) > len(e.vectors) {
		return e.vectors, nil
	}
	return e.vectors[:len(texts)], nil
}

func (e *stubEmbedder) Dimension() int    { return 3 }
func (e *stubEmbedder) ModelName() string { return "stub" }

func uniformVectors(n int) [][]float32 {
	vectors := make([][]float32, n)
	for i := range vectors {
		vectors[i] = []float32{1, 0, 0}
	}
	return vectors
}

func testDoc(text string) domain.Document {
	return domain.Document{SourceID: "doc1", URL: "https://docs.example.com/a", Title: "A", Text: text}
}

func TestChunkMergesUndersized(t *testing.T) {
	// Three one-letter sentences with uniform similarity collapse into a
	// single chunk.
	emb := &stubEmbedder{vectors: uniformVectors(3)}
	c := NewSemanticChunker(splitter.New(), emb, 0.7, 1, 100)

	chunks, err := c.Chunk(context.Background(), testDoc("A. B. C."))
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d: %#v", len(chunks), chunks)
	}
	if chunks[0].Text != "A. B. C." {
		t.Errorf("expected full text in one chunk, got %q", chunks[0].Text)
	}
}

func TestChunkBoundaryOnLowSimilarity(t *testing.T) {
	text := "Dogs bark loudly at night. Cats nap in the afternoon sun. Quarterly revenue grew by ten percent."
	emb := &stubEmbedder{vectors: [][]float32{
		{1, 0, 0},
		{0.9, 0.1, 0}, // similar to the first
		{0, 1, 0},     // dissimilar: boundary before this sentence
	}}
	c := NewSemanticChunker(splitter.New(), emb, 0.7, 10, 200)

	chunks, err := c.Chunk(context.Background(), testDoc(text))
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %#v", len(chunks), chunks)
	}
	if !strings.HasPrefix(chunks[1].Text, "Quarterly revenue") {
		t.Errorf("boundary in wrong place: %q", chunks[1].Text)
	}
}

func TestChunkTrailingUndersizedMergesBackward(t *testing.T) {
	text := "The first topic fills an entire paragraph of text. Short tail."
	emb := &stubEmbedder{vectors: [][]float32{
		{1, 0, 0},
		{0, 1, 0}, // boundary: tail becomes its own undersized chunk
	}}
	c := NewSemanticChunker(splitter.New(), emb, 0.7, 20, 500)

	chunks, err := c.Chunk(context.Background(), testDoc(text))
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected trailing chunk merged into preceding, got %d chunks", len(chunks))
	}
	if chunks[0].Text != text {
		t.Errorf("merged chunk should cover the full text, got %q", chunks[0].Text)
	}
}

func TestChunkRefinesOversizedSentence(t *testing.T) {
	// A single 5000-char sentence with max_chunk_size=2000 must split into
	// at least 3 contiguous pieces, none exceeding the maximum.
	text := strings.TrimSuffix(strings.Repeat("lorem ipsum ", 417), " ") // 5003 chars, one "sentence"
	emb := &stubEmbedder{vectors: uniformVectors(1)}
	c := NewSemanticChunker(splitter.New(), emb, 0.7, 500, 2000)

	chunks, err := c.Chunk(context.Background(), testDoc(text))
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) < 3 {
		t.Fatalf("expected >=3 chunks, got %d", len(chunks))
	}
	var rebuilt strings.Builder
	for i, chunk := range chunks {
		if chunk.Size() > 2000 {
			t.Errorf("chunk %d exceeds max size: %d", i, chunk.Size())
		}
		if text[chunk.Start:chunk.End] != chunk.Text {
			t.Errorf("chunk %d is not a contiguous substring", i)
		}
		rebuilt.WriteString(chunk.Text)
	}
	if rebuilt.String() != text {
		t.Error("concatenated chunks do not reproduce the source")
	}
}

func TestChunkResplitRemainderMergesForward(t *testing.T) {
	// Two similar sentences form one group just over the maximum, so the
	// refine pass re-splits it and leaves the second sentence as a short
	// remainder. That remainder must not survive as an undersized
	// mid-document chunk: it merges into the following group.
	s1 := "Alpha " + strings.Repeat("filler word ", 157) + "closes."
	s2 := "Beta " + strings.Repeat("short bit ", 27) + "ends."
	s3 := "Gamma " + strings.Repeat("other topic ", 49) + "stops."
	text := s1 + " " + s2 + " " + s3

	emb := &stubEmbedder{vectors: [][]float32{
		{1, 0, 0},
		{0.95, 0.05, 0}, // similar: grouped with the first, together > max
		{0, 1, 0},       // dissimilar: boundary before this sentence
	}}
	c := NewSemanticChunker(splitter.New(), emb, 0.7, 500, 2000)

	chunks, err := c.Chunk(context.Background(), testDoc(text))
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected the oversized group re-split, got %d chunks", len(chunks))
	}
	for i, chunk := range chunks {
		if i < len(chunks)-1 && chunk.Size() < 500 {
			t.Errorf("mid-document chunk %d has size %d < min_chunk_size 500", i, chunk.Size())
		}
		if text[chunk.Start:chunk.End] != chunk.Text {
			t.Errorf("chunk %d is not a contiguous substring", i)
		}
	}
	if chunks[len(chunks)-1].End != len(text) {
		t.Error("chunks do not cover the document tail")
	}
}

func TestChunkFallbackOnEmbedderError(t *testing.T) {
	// Embedding fails on every attempt: segmentation must still return a
	// size-valid chunk sequence via the fixed-size fallback.
	text := strings.Repeat("One sentence of filler text here. ", 100)
	emb := &stubEmbedder{err: domain.TransientProviderError("embedding", errors.New("rate limited"))}
	c := NewSemanticChunker(splitter.New(), emb, 0.7, 100, 600)

	chunks, err := c.Chunk(context.Background(), testDoc(text))
	if err != nil {
		t.Fatalf("chunking must not fail when embedding does: %v", err)
	}
	if len(chunks) == 0 {
		t.Fatal("expected chunks from fallback")
	}
	for i, chunk := range chunks {
		if chunk.Size() > 600 {
			t.Errorf("fallback chunk %d exceeds max size: %d", i, chunk.Size())
		}
	}
}

func TestChunkDeterminism(t *testing.T) {
	text := "Alpha starts the document. Beta follows along. Gamma changes the subject entirely. Delta continues it."
	vectors := [][]float32{
		{1, 0, 0},
		{0.95, 0.05, 0},
		{0, 1, 0},
		{0, 0.9, 0.1},
	}
	c1 := NewSemanticChunker(splitter.New(), &stubEmbedder{vectors: vectors}, 0.7, 10, 500)
	c2 := NewSemanticChunker(splitter.New(), &stubEmbedder{vectors: vectors}, 0.7, 10, 500)

	a, err := c1.Chunk(context.Background(), testDoc(text))
	if err != nil {
		t.Fatal(err)
	}
	b, err := c2.Chunk(context.Background(), testDoc(text))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Errorf("chunk boundaries differ across identical runs:\n%#v\n%#v", a, b)
	}
}

func TestChunkNoSentenceSplitting(t *testing.T) {
	text := "First sentence is here. Second sentence is here. Third sentence is here. Fourth sentence is here."
	spans := splitter.New().Split(text)

	emb := &stubEmbedder{vectors: [][]float32{
		{1, 0, 0}, {0, 1, 0}, {1, 0, 0}, {0, 1, 0},
	}}
	c := NewSemanticChunker(splitter.New(), emb, 0.7, 5, 400)

	chunks, err := c.Chunk(context.Background(), testDoc(text))
	if err != nil {
		t.Fatal(err)
	}
	for _, chunk := range chunks {
		for _, span := range spans {
			inside := func(p int) bool { return p > span.Start && p < span.End }
			if inside(chunk.Start) || inside(chunk.End) {
				t.Errorf("chunk [%d,%d) splits sentence [%d,%d)",
					chunk.Start, chunk.End, span.Start, span.End)
			}
		}
	}
}

func TestChunkShortDocumentSingleChunk(t *testing.T) {
	emb := &stubEmbedder{vectors: uniformVectors(1)}
	c := NewSemanticChunker(splitter.New(), emb, 0.7, 500, 2000)

	chunks, err := c.Chunk(context.Background(), testDoc("Tiny."))
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected exactly 1 chunk for short document, got %d", len(chunks))
	}
}

func TestChunkEmptyDocument(t *testing.T) {
	emb := &stubEmbedder{}
	c := NewSemanticChunker(splitter.New(), emb, 0.7, 500, 2000)

	chunks, err := c.Chunk(context.Background(), testDoc("   "))
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 0 {
		t.Errorf("expected no chunks, got %d", len(chunks))
	}
	if emb.calls != 0 {
		t.Error("embedder should not be called for empty input")
	}
}

func TestFixedChunker(t *testing.T) {
	text := strings.TrimSpace(strings.Repeat("A sentence that is fairly short. ", 30))
	c := NewFixedChunker(splitter.New(), 200)

	chunks, err := c.Chunk(context.Background(), testDoc(text))
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if chunk.Size() > 200 {
			t.Errorf("chunk %d exceeds max size: %d", i, chunk.Size())
		}
	}
}
