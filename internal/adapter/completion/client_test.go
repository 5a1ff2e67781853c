package completion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"copilot/internal/backoff"
	"copilot/internal/domain"
	"copilot/internal/ratelimit"
)

type instantClock struct{}

func (instantClock) Now() time.Time { return time.Unix(0, 0) }

func (instantClock) Sleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	t.Setenv("TEST_CHAT_KEY", "test-key")

	retry := backoff.New(3, time.Millisecond).WithClock(instantClock{})
	c, err := New("TEST_CHAT_KEY", "gpt-4o-mini", url, ratelimit.New(0, 0), retry)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func chatReply(w http.ResponseWriter, content string) {
	json.NewEncoder(w).Encode(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	})
}

func TestComplete(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		chatReply(w, "the answer")
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	out, err := c.Complete(context.Background(), "you are helpful", "what is atlan")
	if err != nil {
		t.Fatal(err)
	}
	if out != "the answer" {
		t.Errorf("unexpected completion %q", out)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Role != "user" {
		t.Errorf("unexpected messages: %#v", got.Messages)
	}
	if got.Temperature != 0 {
		t.Errorf("expected temperature 0, got %v", got.Temperature)
	}
}

func TestCompleteOmitsEmptySystem(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		chatReply(w, "ok")
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	if _, err := c.Complete(context.Background(), "", "hi"); err != nil {
		t.Fatal(err)
	}
	if len(got.Messages) != 1 || got.Messages[0].Role != "user" {
		t.Errorf("expected single user message, got %#v", got.Messages)
	}
}

func TestCompleteRetriesServerError(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		chatReply(w, "recovered")
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	out, err := c.Complete(context.Background(), "", "hi")
	if err != nil {
		t.Fatalf("expected retries to recover: %v", err)
	}
	if out != "recovered" || calls != 3 {
		t.Errorf("out=%q calls=%d", out, calls)
	}
}

func TestCompleteBadRequestNotRetried(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	_, err := c.Complete(context.Background(), "", "hi")
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("bad request must not be retried, got %d calls", calls)
	}
	if domain.IsTransient(err) {
		t.Errorf("expected permanent error, got %v", err)
	}
}

func TestCompleteNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	_, err := c.Complete(context.Background(), "", "hi")
	if err == nil {
		t.Fatal("expected error for empty choices")
	}
	if domain.IsTransient(err) {
		t.Errorf("empty choices is not retryable: %v", err)
	}
}
