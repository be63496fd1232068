package cache

import (
	"strconv"
	"sync"
	"testing"
)

func TestNew(t *testing.T) {
	c := New[string, int]()
	if c == nil {
		t.Fatal("New returned nil")
	}
	if c.Len() != 0 {
		t.Errorf("expected empty cache, got %d entries", c.Len())
	}
	if c.Generation() != 0 {
		t.Errorf("expected generation 0, got %d", c.Generation())
	}
}

func TestCacheGetSet(t *testing.T) {
	c := New[string, int]()

	if got := c.Set("key1", 42); got != 42 {
		t.Errorf("Set returned %d, want 42", got)
	}

	val, ok := c.Get("key1")
	if !ok {
		t.Fatal("expected key1 to be found")
	}
	if val != 42 {
		t.Errorf("expected 42, got %d", val)
	}

	if _, ok := c.Get("missing"); ok {
		t.Error("expected missing key to be absent")
	}
}

func TestCacheSetKeepsExisting(t *testing.T) {
	c := New[string, int]()
	c.Set("k", 1)

	if got := c.Set("k", 2); got != 1 {
		t.Errorf("Set on existing key returned %d, want 1", got)
	}
	if v, _ := c.Get("k"); v != 1 {
		t.Errorf("live entry was rewritten: got %d", v)
	}
}

func TestCacheReplace(t *testing.T) {
	c := New[string, int]()

	if _, had := c.Replace("k", 1); had {
		t.Error("Replace on empty cache reported an old value")
	}
	old, had := c.Replace("k", 2)
	if !had || old != 1 {
		t.Errorf("Replace = (%d, %v), want (1, true)", old, had)
	}
	if v, _ := c.Peek("k"); v != 2 {
		t.Errorf("Peek = %d, want 2", v)
	}
}

func TestCacheSweep(t *testing.T) {
	tests := []struct {
		name      string
		grace     uint64
		advance   int
		touchHot  bool
		wantLen   int
		wantEvict int
	}{
		{"within grace", 3, 3, false, 2, 0},
		{"past grace", 3, 4, false, 0, 2},
		{"hot entry survives", 3, 4, true, 1, 1},
		{"zero grace drops everything unused this frame", 0, 1, true, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New[string, int]()
			c.Set("hot", 1)
			c.Set("cold", 2)

			for i := 0; i < tt.advance; i++ {
				c.Advance()
				if tt.touchHot {
					c.Get("hot")
				}
			}

			var evicted []string
			n := c.Sweep(tt.grace, func(k string, _ int) { evicted = append(evicted, k) })
			if n != tt.wantEvict || len(evicted) != tt.wantEvict {
				t.Errorf("evicted %d (%v), want %d", n, evicted, tt.wantEvict)
			}
			if c.Len() != tt.wantLen {
				t.Errorf("Len = %d, want %d", c.Len(), tt.wantLen)
			}
		})
	}
}

func TestCacheSetGeneration(t *testing.T) {
	c := New[string, int]()
	c.SetGeneration(10)
	c.Set("a", 1)
	c.SetGeneration(5) // never moves backwards
	if c.Generation() != 10 {
		t.Errorf("Generation = %d, want 10", c.Generation())
	}
	c.SetGeneration(12)
	if n := c.Sweep(1, nil); n != 1 {
		t.Errorf("Sweep evicted %d, want 1", n)
	}
}

func TestCacheClear(t *testing.T) {
	c := New[string, int]()
	for i := 0; i < 5; i++ {
		c.Set(strconv.Itoa(i), i)
	}

	count := 0
	c.Clear(func(string, int) { count++ })
	if count != 5 {
		t.Errorf("Clear called onEvict %d times, want 5", count)
	}
	if c.Len() != 0 {
		t.Errorf("Len after Clear = %d", c.Len())
	}
}

func TestCacheStats(t *testing.T) {
	c := New[string, int]()
	c.Set("a", 1)
	c.Get("a")
	c.Get("a")
	c.Get("b")

	s := c.Stats()
	if s.Hits != 2 || s.Misses != 1 {
		t.Errorf("hits/misses = %d/%d, want 2/1", s.Hits, s.Misses)
	}
	if s.HitRate < 0.66 || s.HitRate > 0.67 {
		t.Errorf("HitRate = %f", s.HitRate)
	}
}

func TestCacheConcurrent(t *testing.T) {
	c := New[int, int]()
	var wg sync.WaitGroup

	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				c.Set(i%50, g)
				c.Get(i % 50)
				if i%40 == 0 {
					c.Advance()
				}
			}
		}(g)
	}
	wg.Wait()

	if c.Len() != 50 {
		t.Errorf("Len = %d, want 50", c.Len())
	}
}
