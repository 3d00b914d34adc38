package cache

import (
	"sync"
	"testing"
)

func TestLRUEvictsOldest(t *testing.T) {
	c := NewLRU(2)
	a, b, d := []float32{1, 2}, []float32{3, 4}, []float32{5, 6}

	c.Add(a, 10)
	c.Add(b, 20)
	if _, ok := c.Get(a); !ok {
		t.Fatalf("expected a to be cached")
	}
	// b is now the least recently used.
	c.Add(d, 30)

	if _, ok := c.Get(b); ok {
		t.Errorf("expected b to be evicted")
	}
	if v, ok := c.Get(a); !ok || v != 10 {
		t.Errorf("expected a=10, got %v %v", v, ok)
	}
	if v, ok := c.Get(d); !ok || v != 30 {
		t.Errorf("expected d=30, got %v %v", v, ok)
	}
	if c.Len() != 2 {
		t.Errorf("expected 2 entries, got %d", c.Len())
	}

	hits, misses := c.Stats()
	if hits != 3 || misses != 1 {
		t.Errorf("expected 3 hits and 1 miss, got %d and %d", hits, misses)
	}
}

func TestLRUDisabled(t *testing.T) {
	c := NewLRU(0)
	c.Add([]float32{1}, 1)
	if _, ok := c.Get([]float32{1}); ok {
		t.Errorf("a zero-sized cache should never hit")
	}
}

func TestLRUConcurrent(t *testing.T) {
	c := NewLRU(16)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				d := []float32{float32(i), float32(j % 20)}
				if _, ok := c.Get(d); !ok {
					c.Add(d, float32(j))
				}
			}
		}(i)
	}
	wg.Wait()
	if c.Len() > 16 {
		t.Errorf("cache grew past its limit: %d", c.Len())
	}
}
