package transition

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ws281x-core/ledctl/internal/color"
	"github.com/ws281x-core/ledctl/internal/frame"
)

func TestFadeZeroDurationEmitsTargetImmediately(t *testing.T) {
	var mu sync.Mutex
	var got frame.Frame
	s := NewService(func(f frame.Frame) error {
		mu.Lock()
		got = f
		mu.Unlock()
		return nil
	})

	s.Fade("z1", color.RGB{}, color.RGB{R: 200}, 0, frame.PriorityTransition)
	time.Sleep(10 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, frame.KindZoneUpdate, got.Kind)
	assert.Equal(t, color.RGB{R: 200}, got.ZoneColors["z1"].RGB)
}

func TestFadeReachesTargetByEnd(t *testing.T) {
	var mu sync.Mutex
	var last frame.Frame
	s := NewService(func(f frame.Frame) error {
		mu.Lock()
		last = f
		mu.Unlock()
		return nil
	})

	s.Fade("z1", color.RGB{}, color.RGB{R: 255}, 40*time.Millisecond, frame.PriorityTransition)
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, color.RGB{R: 255}, last.ZoneColors["z1"].RGB)
	assert.False(t, s.Active("z1"))
}

func TestFadePreemptsPriorTransitionForSameZone(t *testing.T) {
	var count int
	var mu sync.Mutex
	s := NewService(func(f frame.Frame) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	})

	s.Fade("z1", color.RGB{}, color.RGB{R: 100}, time.Second, frame.PriorityTransition)
	time.Sleep(5 * time.Millisecond)
	s.Fade("z1", color.RGB{}, color.RGB{R: 200}, 0, frame.PriorityTransition)
	time.Sleep(20 * time.Millisecond)

	assert.False(t, s.Active("z1"))
}

func TestCancelStopsActiveFade(t *testing.T) {
	s := NewService(func(f frame.Frame) error { return nil })
	s.Fade("z1", color.RGB{}, color.RGB{R: 100}, time.Second, frame.PriorityTransition)
	time.Sleep(5 * time.Millisecond)
	require.True(t, s.Active("z1"))
	s.Cancel("z1")
	assert.False(t, s.Active("z1"))
}
