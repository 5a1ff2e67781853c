package index

import (
	"context"
	"path/filepath"
	"testing"

	"copilot/internal/domain"
)

func chunkAt(source string, start int, text string) domain.Chunk {
	return domain.Chunk{
		SourceID: source,
		URL:      "https://docs.example.com/" + source,
		Title:    source,
		Start:    start,
		End:      start + len(text),
		Text:     text,
	}
}

func openTestIndex(t *testing.T) *BoltIndex {
	t.Helper()
	idx, err := NewBoltIndex(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestBoltUpsertIdempotent(t *testing.T) {
	ctx := context.Background()
	idx := openTestIndex(t)

	if err := idx.EnsureCollection(ctx, "docs", 2); err != nil {
		t.Fatal(err)
	}

	chunk := chunkAt("guide", 0, "how to set up a connector")
	for i := 0; i < 3; i++ {
		if err := idx.Upsert(ctx, "docs", []domain.Chunk{chunk}, [][]float32{{1, 0}}); err != nil {
			t.Fatal(err)
		}
	}

	n, err := idx.Count(ctx, "docs")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("re-ingesting the same chunk must not duplicate: count=%d", n)
	}
}

func TestBoltSearchOrdering(t *testing.T) {
	ctx := context.Background()
	idx := openTestIndex(t)

	if err := idx.EnsureCollection(ctx, "docs", 2); err != nil {
		t.Fatal(err)
	}

	chunks := []domain.Chunk{
		chunkAt("b-doc", 0, "tie at lower source"),
		chunkAt("a-doc", 50, "tie at later offset"),
		chunkAt("a-doc", 0, "tie at earlier offset"),
		chunkAt("c-doc", 0, "best match"),
	}
	// c-doc matches the query exactly; the rest tie below it.
	vectors := [][]float32{
		{1, 0.3},
		{1, 0.3},
		{1, 0.3},
		{1, 0},
	}

	if err := idx.Upsert(ctx, "docs", chunks, vectors); err != nil {
		t.Fatal(err)
	}

	got, err := idx.Search(ctx, "docs", []float32{1, 0}, 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 passages, got %d", len(got))
	}
	if got[0].SourceID != "c-doc" {
		t.Errorf("best score must rank first, got %s", got[0].SourceID)
	}
	// Equal scores: source id ascending, then start offset ascending.
	want := []struct {
		source string
		start  int
	}{{"a-doc", 0}, {"a-doc", 50}, {"b-doc", 0}}
	for i, w := range want {
		p := got[i+1]
		if p.SourceID != w.source || p.Start != w.start {
			t.Errorf("tie-break position %d: got %s@%d, want %s@%d",
				i+1, p.SourceID, p.Start, w.source, w.start)
		}
	}
}

func TestBoltSearchLimit(t *testing.T) {
	ctx := context.Background()
	idx := openTestIndex(t)

	if err := idx.EnsureCollection(ctx, "docs", 2); err != nil {
		t.Fatal(err)
	}
	chunks := []domain.Chunk{
		chunkAt("a", 0, "one"),
		chunkAt("b", 0, "two"),
		chunkAt("c", 0, "three"),
	}
	vectors := [][]float32{{1, 0}, {0.9, 0.1}, {0, 1}}
	if err := idx.Upsert(ctx, "docs", chunks, vectors); err != nil {
		t.Fatal(err)
	}

	got, err := idx.Search(ctx, "docs", []float32{1, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 passages, got %d", len(got))
	}
	if got[0].Score < got[1].Score {
		t.Error("results must be ordered by score descending")
	}
}

func TestBoltPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.db")

	idx, err := NewBoltIndex(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := idx.EnsureCollection(ctx, "docs", 2); err != nil {
		t.Fatal(err)
	}
	chunk := chunkAt("guide", 0, "persisted chunk")
	if err := idx.Upsert(ctx, "docs", []domain.Chunk{chunk}, [][]float32{{0, 1}}); err != nil {
		t.Fatal(err)
	}
	if err := idx.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewBoltIndex(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	got, err := reopened.Search(ctx, "docs", []float32{0, 1}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Snippet != "persisted chunk" {
		t.Errorf("expected persisted chunk back, got %#v", got)
	}
}

func TestBoltVectorCountMismatch(t *testing.T) {
	ctx := context.Background()
	idx := openTestIndex(t)

	if err := idx.EnsureCollection(ctx, "docs", 2); err != nil {
		t.Fatal(err)
	}
	err := idx.Upsert(ctx, "docs", []domain.Chunk{chunkAt("a", 0, "x")}, nil)
	if err == nil {
		t.Fatal("expected error for chunk/vector count mismatch")
	}
}

func TestMemoryIndexMatchesBoltSemantics(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()

	if err := idx.EnsureCollection(ctx, "docs", 2); err != nil {
		t.Fatal(err)
	}
	chunk := chunkAt("guide", 0, "in memory")
	for i := 0; i < 2; i++ {
		if err := idx.Upsert(ctx, "docs", []domain.Chunk{chunk}, [][]float32{{1, 0}}); err != nil {
			t.Fatal(err)
		}
	}
	n, err := idx.Count(ctx, "docs")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected idempotent upsert, count=%d", n)
	}

	got, err := idx.Search(ctx, "docs", []float32{1, 0}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Snippet != "in memory" {
		t.Errorf("unexpected search result %#v", got)
	}
}
