// Package cache provides a small in-process LRU cache with TTL expiry. The
// HTTP server uses it to memoize collected contexts per document path.
package cache

import (
	"container/list"
	"sync"
	"time"
)

type memoryEntry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
}

// Memory is a thread-safe in-memory LRU cache with TTL expiration. A zero or
// negative ttl never expires entries.
type Memory[V any] struct {
	mu        sync.Mutex
	capacity  int
	ttl       time.Duration
	now       func() time.Time
	items     map[string]*list.Element
	evictList *list.List
}

// NewMemory creates a new in-memory LRU cache holding at most capacity
// entries (minimum 1).
func NewMemory[V any](capacity int, ttl time.Duration) *Memory[V] {
	if capacity < 1 {
		capacity = 1
	}
	return &Memory[V]{
		capacity:  capacity,
		ttl:       ttl,
		now:       time.Now,
		items:     make(map[string]*list.Element),
		evictList: list.New(),
	}
}

// Get returns the cached value for key, or false if missing or expired.
func (m *Memory[V]) Get(key string) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var zero V
	elem, ok := m.items[key]
	if !ok {
		return zero, false
	}

	entry := elem.Value.(*memoryEntry[V])
	if m.expired(entry) {
		m.removeElement(elem)
		return zero, false
	}

	m.evictList.MoveToFront(elem)
	return entry.value, true
}

// Set stores value under key, evicting the least recently used entry when
// full.
func (m *Memory[V]) Set(key string, value V) {
	m.mu.Lock()
	defer m.mu.Unlock()

	expiresAt := m.now().Add(m.ttl)
	if elem, ok := m.items[key]; ok {
		m.evictList.MoveToFront(elem)
		entry := elem.Value.(*memoryEntry[V])
		entry.value = value
		entry.expiresAt = expiresAt
		return
	}

	if m.evictList.Len() >= m.capacity {
		if oldest := m.evictList.Back(); oldest != nil {
			m.removeElement(oldest)
		}
	}

	elem := m.evictList.PushFront(&memoryEntry[V]{key: key, value: value, expiresAt: expiresAt})
	m.items[key] = elem
}

// Delete removes an entry from the cache.
func (m *Memory[V]) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if elem, ok := m.items[key]; ok {
		m.removeElement(elem)
	}
}

// Len returns the number of entries currently held, expired or not.
func (m *Memory[V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.evictList.Len()
}

// Clear removes all entries.
func (m *Memory[V]) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = make(map[string]*list.Element)
	m.evictList.Init()
}

func (m *Memory[V]) expired(e *memoryEntry[V]) bool {
	return m.ttl > 0 && m.now().After(e.expiresAt)
}

func (m *Memory[V]) removeElement(elem *list.Element) {
	m.evictList.Remove(elem)
	delete(m.items, elem.Value.(*memoryEntry[V]).key)
}
