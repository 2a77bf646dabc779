package bus

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishSyncDispatchOrder(t *testing.T) {
	b := New(DefaultConfig(), nil)
	var mu sync.Mutex
	var order []string

	b.Subscribe(KindButton, func(e Event) {
		mu.Lock()
		order = append(order, "first")
		mu.Unlock()
	}, ModeSync, nil)
	b.Subscribe(KindButton, func(e Event) {
		mu.Lock()
		order = append(order, "second")
		mu.Unlock()
	}, ModeSync, nil)

	b.Publish(NewEvent(KindButton, SourceHardware, "", nil))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestPublishIsolatesPanickingHandler(t *testing.T) {
	b := New(DefaultConfig(), nil)
	called := false

	b.Subscribe(KindButton, func(e Event) {
		panic("boom")
	}, ModeSync, nil)
	b.Subscribe(KindButton, func(e Event) {
		called = true
	}, ModeSync, nil)

	assert.NotPanics(t, func() {
		b.Publish(NewEvent(KindButton, SourceHardware, "", nil))
	})
	assert.True(t, called)
}

func TestMiddlewareCanDropEvent(t *testing.T) {
	b := New(DefaultConfig(), nil)
	b.Use(func(e Event) (Event, bool) {
		return e, e.Kind != KindKeyPress
	})

	delivered := false
	b.Subscribe(KindKeyPress, func(e Event) { delivered = true }, ModeSync, nil)

	b.Publish(NewEvent(KindKeyPress, SourceHardware, "", nil))
	assert.False(t, delivered)
}

func TestFilterNarrowsDelivery(t *testing.T) {
	b := New(DefaultConfig(), nil)
	var got []string

	b.Subscribe(KindZoneStateChanged, func(e Event) {
		got = append(got, e.Payload["zone"].(string))
	}, ModeSync, func(e Event) bool {
		return e.Payload["zone"] == "porch"
	})

	b.Publish(NewEvent(KindZoneStateChanged, SourceCommand, "c1", map[string]interface{}{"zone": "porch"}))
	b.Publish(NewEvent(KindZoneStateChanged, SourceCommand, "c1", map[string]interface{}{"zone": "hallway"}))

	assert.Equal(t, []string{"porch"}, got)
}

func TestHistoryRingEvictsOldest(t *testing.T) {
	b := New(Config{HistoryCapacity: 2, AsyncQueueCapacity: 4}, nil)
	b.Publish(NewEvent(KindButton, SourceHardware, "", map[string]interface{}{"n": 1}))
	b.Publish(NewEvent(KindButton, SourceHardware, "", map[string]interface{}{"n": 2}))
	b.Publish(NewEvent(KindButton, SourceHardware, "", map[string]interface{}{"n": 3}))

	hist := b.History(10)
	require.Len(t, hist, 2)
	assert.Equal(t, 2, hist[0].Payload["n"])
	assert.Equal(t, 3, hist[1].Payload["n"])
}

func TestAsyncSequentialPreservesOrder(t *testing.T) {
	b := New(DefaultConfig(), nil)
	var mu sync.Mutex
	var order []int
	done := make(chan struct{}, 3)

	b.Subscribe(KindEncoderDelta, func(e Event) {
		mu.Lock()
		order = append(order, e.Payload["n"].(int))
		mu.Unlock()
		done <- struct{}{}
	}, ModeAsyncSequential, nil)

	for i := 1; i <= 3; i++ {
		b.Publish(NewEvent(KindEncoderDelta, SourceHardware, "", map[string]interface{}{"n": i}))
	}

	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for async handler")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New(DefaultConfig(), nil)
	count := 0
	sub := b.Subscribe(KindButton, func(e Event) { count++ }, ModeSync, nil)

	b.Publish(NewEvent(KindButton, SourceHardware, "", nil))
	sub.Unsubscribe()
	b.Publish(NewEvent(KindButton, SourceHardware, "", nil))

	assert.Equal(t, 1, count)
}
