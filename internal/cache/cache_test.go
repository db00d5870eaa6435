package cache

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestCache_SetGet(t *testing.T) {
	c := New(Config{TTL: time.Minute, MaxItems: 10})

	c.Set("a", 1)
	v, ok := c.Get("a")
	if !ok || v.(int) != 1 {
		t.Fatalf("Get(a) = %v, %v; want 1, true", v, ok)
	}

	if _, ok := c.Get("missing"); ok {
		t.Error("Get(missing) should miss")
	}
}

func TestCache_Expiry(t *testing.T) {
	c := New(Config{TTL: time.Minute, MaxItems: 10})
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Set("a", "x")
	now = now.Add(2 * time.Minute)

	if _, ok := c.Get("a"); ok {
		t.Error("expired item should not be returned")
	}
}

func TestCache_EvictsAtCapacity(t *testing.T) {
	c := New(Config{TTL: time.Minute, MaxItems: 10})
	for i := 0; i < 25; i++ {
		c.Set(fmt.Sprintf("k%d", i), i)
	}
	if c.Len() > 10 {
		t.Errorf("Len() = %d, want <= 10", c.Len())
	}
}

func TestCache_DeletePrefix(t *testing.T) {
	c := New(Config{})
	c.Set("plex:metadata:1", 1)
	c.Set("plex:metadata:2", 2)
	c.Set("radarr:movie:1", 3)

	c.DeletePrefix("plex:")

	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestFetch(t *testing.T) {
	c := New(Config{})
	calls := 0
	load := func(ctx context.Context) (string, error) {
		calls++
		return "value", nil
	}

	for i := 0; i < 3; i++ {
		v, err := Fetch(context.Background(), c, "key", load)
		if err != nil || v != "value" {
			t.Fatalf("Fetch() = %q, %v", v, err)
		}
	}
	if calls != 1 {
		t.Errorf("load called %d times, want 1", calls)
	}

	boom := errors.New("boom")
	_, err := Fetch(context.Background(), c, "err", func(ctx context.Context) (int, error) { return 0, boom })
	if !errors.Is(err, boom) {
		t.Errorf("Fetch() error = %v, want boom", err)
	}
	if _, ok := c.Get("err"); ok {
		t.Error("errors must not be cached")
	}
}

func TestFetch_NilCache(t *testing.T) {
	var c *Cache
	v, err := Fetch(context.Background(), c, "k", func(ctx context.Context) (int, error) { return 7, nil })
	if err != nil || v != 7 {
		t.Fatalf("Fetch() = %d, %v", v, err)
	}
}
