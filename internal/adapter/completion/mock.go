package completion

import (
	"context"
	"strings"
	"sync"
)

// Mock is a deterministic offline completer for development without an
// API key. Classification prompts (system prompt asking for JSON) get a
// neutral classification; everything else gets a canned answer citing
// the first passage.
type Mock struct {
	mu    sync.Mutex
	calls int
}

// NewMock creates an offline completer.
func NewMock() *Mock { return &Mock{} }

const (
	mockClassification = `{"topic": "Other", "sentiment": "Neutral", "priority": "P2", "topic_confidence": 0.0, "sentiment_confidence": 0.0, "priority_confidence": 0.0}`
	mockAnswer         = "Based on the documentation, see the referenced passage for details [1]."
)

func (m *Mock) Complete(_ context.Context, system, _ string) (string, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if strings.Contains(system, "JSON") {
		return mockClassification, nil
	}
	return mockAnswer, nil
}

// Calls returns how many completions were served.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *Mock) ModelName() string { return "mock" }
