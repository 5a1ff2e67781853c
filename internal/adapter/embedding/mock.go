package embedding

import "context"

// Mock produces deterministic pseudo-embeddings derived from the input
// bytes. Useful for tests and offline runs where no provider is
// reachable.
type Mock struct {
	dimension int
}

// NewMock creates a mock embedder with the given vector dimension.
func NewMock(dimension int) *Mock {
	if dimension <= 0 {
		dimension = 384
	}
	return &Mock{dimension: dimension}
}

func (m *Mock) Embed(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, m.dimension)
		for j, r := range text {
			if j >= m.dimension {
				break
			}
			v[j] = float32(r) / 1000.0
		}
		vectors[i] = v
	}
	return vectors, nil
}

func (m *Mock) Dimension() int    { return m.dimension }
func (m *Mock) ModelName() string { return "mock" }
