package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"copilot/internal/domain"
)

// stubCompleter answers with canned responses in call order.
type stubCompleter struct {
	mu        sync.Mutex
	responses []string
	err       error
	calls     int
	lastUser  string
}

func (s *stubCompleter) Complete(_ context.Context, _, user string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.lastUser = user
	if s.err != nil {
		return "", s.err
	}
	if len(s.responses) == 0 {
		return "", nil
	}
	resp := s.responses[0]
	if len(s.responses) > 1 {
		s.responses = s.responses[1:]
	}
	return resp, nil
}

func (s *stubCompleter) ModelName() string { return "stub" }

// stubEmbed returns a fixed vector for every text, or an error.
type stubEmbed struct {
	vector []float32
	err    error
}

func (s *stubEmbed) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	vectors := make([][]float32, len(texts))
	for i := range vectors {
		vectors[i] = s.vector
	}
	return vectors, nil
}

func (s *stubEmbed) Dimension() int    { return len(s.vector) }
func (s *stubEmbed) ModelName() string { return "stub" }

// recordingClock counts pacing sleeps without waiting.
type recordingClock struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (c *recordingClock) Now() time.Time { return time.Unix(0, 0) }

func (c *recordingClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.mu.Unlock()
	return ctx.Err()
}

func (c *recordingClock) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sleeps)
}

// memTicketStore is an in-memory port.TicketStore.
type memTicketStore struct {
	mu          sync.Mutex
	tickets     map[string]domain.Ticket
	resolutions map[string]domain.Resolution
}

func newMemTicketStore(tickets ...domain.Ticket) *memTicketStore {
	s := &memTicketStore{
		tickets:     make(map[string]domain.Ticket),
		resolutions: make(map[string]domain.Resolution),
	}
	for _, t := range tickets {
		s.tickets[t.ID] = t
	}
	return s
}

func (s *memTicketStore) FetchUnprocessed(_ context.Context, limit int) ([]domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Ticket
	for _, t := range s.tickets {
		if !t.Processed {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memTicketStore) WriteResult(_ context.Context, id string, res domain.Resolution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.tickets[id]
	t.Processed = true
	s.tickets[id] = t
	res.TicketID = id
	s.resolutions[id] = res
	return nil
}

func (s *memTicketStore) Close() error { return nil }

// staticSource returns a fixed document set.
type staticSource struct {
	docs []domain.Document
}

func (s *staticSource) Documents(_ context.Context) ([]domain.Document, error) {
	return s.docs, nil
}
