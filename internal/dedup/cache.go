// Package dedup suppresses repeated snapshot fetches of the same item.
package dedup

import (
	"container/list"
	"errors"
	"sync"
	"time"
)

// ErrAlreadyCached is returned by Check while an item is inside its cooldown.
var ErrAlreadyCached = errors.New("already cached")

// Defaults.
const (
	DefaultCooldown = 60 * time.Second
	DefaultCapacity = 10000
)

type entry struct {
	item      string
	fetchedAt time.Time
}

// Cache remembers when each item was last fetched.
// Entries are kept in recording order; the oldest is evicted first once
// capacity is reached. Safe for concurrent use.
type Cache struct {
	cooldown time.Duration
	capacity int

	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front = most recently recorded
}

// New creates a cache. Non-positive arguments fall back to defaults.
func New(cooldown time.Duration, capacity int) *Cache {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		cooldown: cooldown,
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Cooldown returns the configured cooldown.
func (c *Cache) Cooldown() time.Duration {
	return c.cooldown
}

// ShouldFetch reports whether item is outside its cooldown at now.
func (c *Cache) ShouldFetch(item string, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[item]
	if !ok {
		return true
	}
	return now.Sub(el.Value.(*entry).fetchedAt) >= c.cooldown
}

// Check is ShouldFetch as an error: ErrAlreadyCached inside the cooldown.
func (c *Cache) Check(item string, now time.Time) error {
	if !c.ShouldFetch(item, now) {
		return ErrAlreadyCached
	}
	return nil
}

// RecordFetch marks item as fetched at now.
func (c *Cache) RecordFetch(item string, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[item]; ok {
		el.Value.(*entry).fetchedAt = now
		c.order.MoveToFront(el)
		return
	}

	c.entries[item] = c.order.PushFront(&entry{item: item, fetchedAt: now})

	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*entry).item)
	}
}

// Sweep removes entries whose cooldown has elapsed at now.
// Returns the number of removed entries.
func (c *Cache) Sweep(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		e := el.Value.(*entry)
		if now.Sub(e.fetchedAt) >= c.cooldown {
			c.order.Remove(el)
			delete(c.entries, e.item)
			removed++
		}
		el = prev
	}
	return removed
}

// Len returns the number of tracked items.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
