package boundary

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIdempotencyCacheRoundTrip(t *testing.T) {
	c := newIdempotencyCache(10, time.Minute)
	key := idempotencyKey{clientID: "c1", requestID: "r1"}
	now := time.Now()

	_, ok := c.Get(key, now)
	assert.False(t, ok)

	c.Put(key, okResult(map[string]interface{}{"x": 1}), now)
	got, ok := c.Get(key, now)
	assert.True(t, ok)
	assert.Equal(t, 1, got.Data["x"])
}

func TestIdempotencyCacheExpires(t *testing.T) {
	c := newIdempotencyCache(10, time.Millisecond)
	key := idempotencyKey{clientID: "c1", requestID: "r1"}
	now := time.Now()
	c.Put(key, okResult(nil), now)

	_, ok := c.Get(key, now.Add(time.Second))
	assert.False(t, ok)
}

func TestIdempotencyCacheEvictsLRU(t *testing.T) {
	c := newIdempotencyCache(2, time.Minute)
	now := time.Now()
	c.Put(idempotencyKey{clientID: "c1", requestID: "r1"}, okResult(nil), now)
	c.Put(idempotencyKey{clientID: "c1", requestID: "r2"}, okResult(nil), now)
	c.Put(idempotencyKey{clientID: "c1", requestID: "r3"}, okResult(nil), now)

	_, ok := c.Get(idempotencyKey{clientID: "c1", requestID: "r1"}, now)
	assert.False(t, ok)
	_, ok = c.Get(idempotencyKey{clientID: "c1", requestID: "r3"}, now)
	assert.True(t, ok)
}

func TestIdempotencyCacheScopedPerClient(t *testing.T) {
	c := newIdempotencyCache(10, time.Minute)
	now := time.Now()
	c.Put(idempotencyKey{clientID: "c1", requestID: "r1"}, okResult(map[string]interface{}{"who": "c1"}), now)
	c.Put(idempotencyKey{clientID: "c2", requestID: "r1"}, okResult(map[string]interface{}{"who": "c2"}), now)

	got1, _ := c.Get(idempotencyKey{clientID: "c1", requestID: "r1"}, now)
	got2, _ := c.Get(idempotencyKey{clientID: "c2", requestID: "r1"}, now)
	assert.Equal(t, "c1", got1.Data["who"])
	assert.Equal(t, "c2", got2.Data["who"])
}
