package embedding

import (
	"container/list"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Cache is an LRU of embeddings keyed by the xxhash of the input text.
type Cache struct {
	capacity int
	items    map[uint64]*list.Element
	lru      *list.List
	mu       sync.Mutex
}

type cacheEntry struct {
	key   uint64
	value []float32
}

// NewCache creates a cache holding at most capacity embeddings.
func NewCache(capacity int) *Cache {
	return &Cache{
		capacity: capacity,
		items:    make(map[uint64]*list.Element),
		lru:      list.New(),
	}
}

// Get returns a copy of the cached embedding for text.
func (c *Cache) Get(text string) ([]float32, bool) {
	key := xxhash.Sum64String(text)

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return nil, false
	}
	c.lru.MoveToFront(elem)
	return clone(elem.Value.(*cacheEntry).value), true
}

// Set stores a copy of value, evicting the least recently used entry at capacity.
func (c *Cache) Set(text string, value []float32) {
	if c.capacity <= 0 {
		return
	}
	key := xxhash.Sum64String(text)

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.lru.MoveToFront(elem)
		elem.Value.(*cacheEntry).value = clone(value)
		return
	}

	c.items[key] = c.lru.PushFront(&cacheEntry{key: key, value: clone(value)})
	if c.lru.Len() > c.capacity {
		oldest := c.lru.Back()
		c.lru.Remove(oldest)
		delete(c.items, oldest.Value.(*cacheEntry).key)
	}
}

// Len returns the number of cached embeddings.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

func clone(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
