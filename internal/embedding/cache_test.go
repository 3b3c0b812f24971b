package embedding

import (
	"sync"
	"testing"
)

func TestCache_GetSet(t *testing.T) {
	c := NewCache(2)
	if v, ok := c.Get("a"); ok || v != nil {
		t.Fatal("expected miss")
	}
	c.Set("a", []float32{1, 2, 3})
	v, ok := c.Get("a")
	if !ok || len(v) != 3 || v[0] != 1 {
		t.Errorf("Get: got %v, %v", v, ok)
	}
	c.Set("b", []float32{4, 5})
	c.Get("a")               // a is now most recent
	c.Set("c", []float32{6}) // evicts b
	if _, ok := c.Get("b"); ok {
		t.Error("expected b to be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("expected a to remain")
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d", c.Len())
	}
}

func TestCache_returnsCopies(t *testing.T) {
	c := NewCache(1)
	in := []float32{1}
	c.Set("k", in)
	in[0] = 9
	out, _ := c.Get("k")
	out[0] = 7
	again, _ := c.Get("k")
	if again[0] != 1 {
		t.Errorf("cached value mutated: %v", again)
	}
}

func TestCache_concurrent(t *testing.T) {
	c := NewCache(16)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				key := string(rune('a' + (i+j)%26))
				c.Set(key, []float32{float32(j)})
				c.Get(key)
			}
		}(i)
	}
	wg.Wait()
	if c.Len() > 16 {
		t.Errorf("Len = %d exceeds capacity", c.Len())
	}
}
