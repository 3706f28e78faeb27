package cache

import (
	"context"
	"testing"
	"time"
)

func TestTTLCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := NewTTLCache()
	if _, ok, err := c.GetBytes(ctx, "k"); ok || err != nil {
		t.Fatalf("empty cache: ok=%v err=%v", ok, err)
	}
	if err := c.SetBytes(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	b, ok, err := c.GetBytes(ctx, "k")
	if err != nil || !ok || string(b) != "v" {
		t.Fatalf("get: %q ok=%v err=%v", b, ok, err)
	}
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := c.GetBytes(ctx, "k"); ok {
		t.Fatalf("deleted key still present")
	}
}

func TestTTLCacheExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewTTLCache()
	c.now = func() time.Time { return now }

	_ = c.SetBytes(ctx, "short", []byte("1"), time.Second)
	_ = c.SetBytes(ctx, "forever", []byte("2"), 0)

	now = now.Add(2 * time.Second)
	if _, ok, _ := c.GetBytes(ctx, "short"); ok {
		t.Fatalf("expired entry returned")
	}
	if _, ok, _ := c.GetBytes(ctx, "forever"); !ok {
		t.Fatalf("entry without ttl expired")
	}
	if c.size() != 1 {
		t.Fatalf("len=%d want 1", c.size())
	}
}
