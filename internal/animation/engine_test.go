package animation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ws281x-core/ledctl/internal/frame"
)

func countingProducer(counter *int32Counter) Factory {
	return func() Producer {
		return func(ctx context.Context, elapsed time.Duration, params map[string]float64, zones []frame.ZoneID, submit Submit) {
			counter.inc()
		}
	}
}

type int32Counter struct {
	mu sync.Mutex
	n  int
}

func (c *int32Counter) inc() {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func (c *int32Counter) get() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func TestStartUnknownKindErrors(t *testing.T) {
	e := NewEngine(func(frame.Frame) error { return nil }, nil)
	err := e.Start("z1", "does-not-exist", nil, nil, 30)
	require.Error(t, err)
}

func TestStartThenStopStopsProducing(t *testing.T) {
	counter := &int32Counter{}
	e := NewEngine(func(frame.Frame) error { return nil }, nil)
	e.Register("count", countingProducer(counter))

	require.NoError(t, e.Start("z1", "count", []frame.ZoneID{"z1"}, nil, 200))
	time.Sleep(30 * time.Millisecond)
	e.Stop("z1")
	afterStop := counter.get()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, afterStop, counter.get())
	assert.False(t, e.Running("z1"))
}

func TestStartTwiceAtomicallyReplacesPrior(t *testing.T) {
	counter1 := &int32Counter{}
	counter2 := &int32Counter{}
	e := NewEngine(func(frame.Frame) error { return nil }, nil)
	e.Register("c1", countingProducer(counter1))
	e.Register("c2", countingProducer(counter2))

	require.NoError(t, e.Start("z1", "c1", nil, nil, 200))
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, e.Start("z1", "c2", nil, nil, 200))
	time.Sleep(20 * time.Millisecond)
	e.Stop("z1")

	assert.Greater(t, counter1.get(), 0)
	assert.Greater(t, counter2.get(), 0)
	afterC1 := counter1.get()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, afterC1, counter1.get())
}

func TestSetParamUpdatesLiveRun(t *testing.T) {
	e := NewEngine(func(frame.Frame) error { return nil }, nil)
	var seen float64
	var mu sync.Mutex
	e.Register("watch", func() Producer {
		return func(ctx context.Context, elapsed time.Duration, params map[string]float64, zones []frame.ZoneID, submit Submit) {
			mu.Lock()
			seen = params["speed"]
			mu.Unlock()
		}
	})

	require.NoError(t, e.Start("z1", "watch", nil, map[string]float64{"speed": 1}, 200))
	time.Sleep(20 * time.Millisecond)
	ok := e.SetParam("z1", "speed", 99)
	require.True(t, ok)
	time.Sleep(20 * time.Millisecond)
	e.Stop("z1")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, float64(99), seen)
}

func TestStopAbandonsRunThatIgnoresCancellation(t *testing.T) {
	e := NewEngine(func(frame.Frame) error { return nil }, nil)
	cancelGraceSaved := cancelGrace
	cancelGrace = 20 * time.Millisecond
	defer func() { cancelGrace = cancelGraceSaved }()

	unblock := make(chan struct{})
	e.Register("stuck", func() Producer {
		return func(ctx context.Context, elapsed time.Duration, params map[string]float64, zones []frame.ZoneID, submit Submit) {
			<-ctx.Done()
			<-unblock // simulates a producer that ignores cancellation
		}
	})

	require.NoError(t, e.Start("z1", "stuck", nil, nil, 200))
	time.Sleep(10 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		e.Stop("z1")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop should have abandoned the stuck run within cancelGrace, not blocked indefinitely")
	}
	close(unblock)
}

func TestStopAllStopsEverything(t *testing.T) {
	counter := &int32Counter{}
	e := NewEngine(func(frame.Frame) error { return nil }, nil)
	e.Register("count", countingProducer(counter))

	require.NoError(t, e.Start("z1", "count", nil, nil, 200))
	require.NoError(t, e.Start("z2", "count", nil, nil, 200))
	time.Sleep(20 * time.Millisecond)
	e.StopAll()

	assert.False(t, e.Running("z1"))
	assert.False(t, e.Running("z2"))
}
