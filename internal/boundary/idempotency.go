package boundary

import (
	"container/list"
	"sync"
	"time"
)

// idempotencyKey identifies one previously-seen command. Idempotency is
// scoped per client, not global, so two clients may reuse the same
// request_id without colliding.
type idempotencyKey struct {
	clientID  string
	requestID string
}

type idempotencyEntry struct {
	key      idempotencyKey
	result   CommandResult
	expireAt time.Time
}

// idempotencyCache is a bounded LRU of (client_id, request_id) -> the
// result that was returned the first time, so a retried command gets
// the same answer instead of being re-applied. No library in the
// reference corpus's full repos provides this; container/list is the
// standard idiom for an LRU's eviction order (see DESIGN.md).
type idempotencyCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	order    *list.List // front = most recently used
	index    map[idempotencyKey]*list.Element
}

func newIdempotencyCache(capacity int, ttl time.Duration) *idempotencyCache {
	if capacity <= 0 {
		capacity = 1024
	}
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &idempotencyCache{
		capacity: capacity,
		ttl:      ttl,
		order:    list.New(),
		index:    make(map[idempotencyKey]*list.Element),
	}
}

// Get returns the cached result for key if present and not expired.
func (c *idempotencyCache) Get(key idempotencyKey, now time.Time) (CommandResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.index[key]
	if !ok {
		return CommandResult{}, false
	}
	entry := el.Value.(*idempotencyEntry)
	if now.After(entry.expireAt) {
		c.order.Remove(el)
		delete(c.index, key)
		return CommandResult{}, false
	}
	c.order.MoveToFront(el)
	return entry.result, true
}

// Put records result for key, evicting the least-recently-used entry if
// the cache is at capacity.
func (c *idempotencyCache) Put(key idempotencyKey, result CommandResult, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.index[key]; ok {
		entry := el.Value.(*idempotencyEntry)
		entry.result = result
		entry.expireAt = now.Add(c.ttl)
		c.order.MoveToFront(el)
		return
	}

	entry := &idempotencyEntry{key: key, result: result, expireAt: now.Add(c.ttl)}
	el := c.order.PushFront(entry)
	c.index[key] = el

	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.index, oldest.Value.(*idempotencyEntry).key)
	}
}
