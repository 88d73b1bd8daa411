package proxy

import (
	"testing"
	"time"
)

func TestPool_Rotation(t *testing.T) {
	pool := NewPool([]string{"http://p1:8080", " ", "http://p2:8080", "http://p3:8080"}, 0)

	want := []string{"http://p1:8080", "http://p2:8080", "http://p3:8080", "http://p1:8080"}
	for i, w := range want {
		if got := pool.Next(); got != w {
			t.Errorf("Next() #%d = %s, want %s", i, got, w)
		}
	}
	if pool.Len() != 3 {
		t.Errorf("Expected blank entry dropped, got %d proxies", pool.Len())
	}
}

func TestPool_SkipsFailedUntilCooldown(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	pool := NewPool([]string{"p1", "p2", "p3"}, time.Minute)
	pool.now = func() time.Time { return now }

	if p := pool.Next(); p != "p1" {
		t.Fatalf("Expected p1, got %s", p)
	}
	pool.MarkFailed("p2")

	if p := pool.Next(); p != "p3" {
		t.Errorf("Expected p3 (skipping p2), got %s", p)
	}
	if p := pool.Next(); p != "p1" {
		t.Errorf("Expected p1, got %s", p)
	}

	now = now.Add(2 * time.Minute)
	if p := pool.Next(); p != "p2" {
		t.Errorf("Expected p2 after cooldown, got %s", p)
	}
}

func TestPool_MarkHealthy(t *testing.T) {
	pool := NewPool([]string{"p1", "p2"}, time.Hour)
	pool.MarkFailed("p1")
	pool.MarkHealthy("p1")

	if p := pool.Next(); p != "p1" {
		t.Errorf("Expected p1 after MarkHealthy, got %s", p)
	}
}

func TestPool_AllFailedStillRotates(t *testing.T) {
	pool := NewPool([]string{"p1", "p2"}, time.Hour)
	pool.MarkFailed("p1")
	pool.MarkFailed("p2")

	if p := pool.Next(); p == "" {
		t.Error("Expected a proxy even when all are cooling down")
	}
}

func TestPool_Empty(t *testing.T) {
	var nilPool *Pool
	if nilPool.Next() != "" {
		t.Error("Expected empty proxy from nil pool")
	}
	if NewPool(ParseList(""), 0).Next() != "" {
		t.Error("Expected empty proxy from empty pool")
	}
	if got := ParseList("a,b"); len(got) != 2 {
		t.Errorf("ParseList returned %v", got)
	}
}
