// Package cache 提供带过期时间的内存缓存
package cache

import (
	"sync"
	"time"
)

type item[V any] struct {
	data      V
	timestamp time.Time
	ttl       time.Duration
}

// Cache 按 key 缓存数据，每项有独立的 TTL
type Cache[K comparable, V any] struct {
	items map[K]item[V]
	mu    sync.RWMutex
	now   func() time.Time
}

// New 创建新的缓存
func New[K comparable, V any]() *Cache[K, V] {
	return &Cache[K, V]{
		items: make(map[K]item[V]),
		now:   time.Now,
	}
}

// Set 设置缓存项
func (c *Cache[K, V]) Set(key K, data V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = item[V]{data: data, timestamp: c.now(), ttl: ttl}
}

// Get 获取缓存项，过期项视为不存在并被删除
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	it, exists := c.items[key]
	c.mu.RUnlock()

	var zero V
	if !exists {
		return zero, false
	}
	if c.now().Sub(it.timestamp) > it.ttl {
		c.mu.Lock()
		// Re-check: a concurrent Set may have refreshed the entry.
		if cur, ok := c.items[key]; ok && cur.timestamp.Equal(it.timestamp) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		return zero, false
	}
	return it.data, true
}

// GetOrLoad 返回缓存项，不存在时调用 load 并缓存成功的结果
func (c *Cache[K, V]) GetOrLoad(key K, ttl time.Duration, load func() (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := load()
	if err != nil {
		return v, err
	}
	c.Set(key, v, ttl)
	return v, nil
}

// Delete 删除缓存项
func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Cleanup 清理过期缓存，返回删除的数量
func (c *Cache[K, V]) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	now := c.now()
	for key, it := range c.items {
		if now.Sub(it.timestamp) > it.ttl {
			delete(c.items, key)
			removed++
		}
	}
	return removed
}

// Size 获取缓存大小
func (c *Cache[K, V]) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
