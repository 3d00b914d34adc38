// Package cache memoizes network outputs per descriptor.
package cache

import (
	"container/list"
	"encoding/binary"
	"math"
	"sync"
)

// LRU maps descriptors to a value, evicting the least recently used entry
// once MaxSize is reached. A MaxSize of 0 disables caching.
type LRU struct {
	mu      sync.Mutex
	maxSize int
	order   *list.List
	entries map[string]*list.Element

	hits   uint64
	misses uint64
}

type entry struct {
	key   string
	value float32
}

func NewLRU(maxSize int) *LRU {
	return &LRU{
		maxSize: maxSize,
		order:   list.New(),
		entries: make(map[string]*list.Element),
	}
}

// key packs the descriptor bits so equal descriptors share an entry.
func key(descriptor []float32) string {
	b := make([]byte, 4*len(descriptor))
	for i, v := range descriptor {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return string(b)
}

func (c *LRU) Get(descriptor []float32) (float32, bool) {
	if c.maxSize <= 0 {
		return 0, false
	}
	k := key(descriptor)

	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[k]
	if !ok {
		c.misses++
		return 0, false
	}
	c.hits++
	c.order.MoveToFront(el)
	return el.Value.(*entry).value, true
}

func (c *LRU) Add(descriptor []float32, value float32) {
	if c.maxSize <= 0 {
		return
	}
	k := key(descriptor)

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[k]; ok {
		el.Value.(*entry).value = value
		c.order.MoveToFront(el)
		return
	}

	c.entries[k] = c.order.PushFront(&entry{key: k, value: value})
	for c.order.Len() > c.maxSize {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*entry).key)
	}
}

func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats returns the hit and miss counters.
func (c *LRU) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
