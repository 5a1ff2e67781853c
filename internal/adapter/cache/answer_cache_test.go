package cache

import (
	"fmt"
	"testing"
	"time"

	"copilot/internal/domain"
)

func TestCacheHitAndMiss(t *testing.T) {
	c := NewAnswerCache(10, time.Minute)

	if _, ok := c.Get("how do i connect snowflake"); ok {
		t.Fatal("unexpected hit on empty cache")
	}

	c.Put("how do i connect snowflake", domain.Answer{Text: "use the connector page"})

	got, ok := c.Get("how do i connect snowflake")
	if !ok || got.Text != "use the connector page" {
		t.Errorf("expected cached answer, got ok=%v %#v", ok, got)
	}
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewAnswerCache(2, time.Minute)

	c.Put("q1", domain.Answer{Text: "a1"})
	c.Put("q2", domain.Answer{Text: "a2"})
	if _, ok := c.Get("q1"); !ok { // refresh q1
		t.Fatal("q1 should be cached")
	}
	c.Put("q3", domain.Answer{Text: "a3"})

	if _, ok := c.Get("q2"); ok {
		t.Error("q2 should have been evicted as least recently used")
	}
	if _, ok := c.Get("q1"); !ok {
		t.Error("q1 should survive eviction")
	}
	if _, ok := c.Get("q3"); !ok {
		t.Error("q3 should be cached")
	}
}

func TestCacheInvalidate(t *testing.T) {
	c := NewAnswerCache(10, time.Minute)

	for i := 0; i < 3; i++ {
		c.Put(fmt.Sprintf("q%d", i), domain.Answer{Text: "a"})
	}
	c.Invalidate()

	if c.Size() != 0 {
		t.Errorf("expected empty cache after invalidate, size=%d", c.Size())
	}
	if _, ok := c.Get("q0"); ok {
		t.Error("entries must not survive invalidation")
	}
}

func TestCacheTTLExpiry(t *testing.T) {
	c := NewAnswerCache(10, time.Nanosecond)

	c.Put("q", domain.Answer{Text: "a"})
	time.Sleep(time.Millisecond)

	if _, ok := c.Get("q"); ok {
		t.Error("expired entry must not be served")
	}
}
