package frame

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ws281x-core/ledctl/internal/color"
)

type zoneInfo struct {
	stripID    string
	start, end int
	brightness int
	isOn       bool
}

type fakeLayout struct {
	zones map[ZoneID]zoneInfo
}

func (l *fakeLayout) PixelCount(z ZoneID) (int, bool) {
	zi, ok := l.zones[z]
	if !ok {
		return 0, false
	}
	return zi.end - zi.start, true
}

func (l *fakeLayout) ZoneRange(z ZoneID) (string, int, int, bool) {
	zi, ok := l.zones[z]
	if !ok {
		return "", 0, 0, false
	}
	return zi.stripID, zi.start, zi.end, true
}

func (l *fakeLayout) ZoneRender(z ZoneID) (int, bool, bool) {
	zi, ok := l.zones[z]
	if !ok {
		return 0, false, false
	}
	return zi.brightness, zi.isOn, true
}

func (l *fakeLayout) ZoneIDs() []ZoneID {
	out := make([]ZoneID, 0, len(l.zones))
	for id := range l.zones {
		out = append(out, id)
	}
	return out
}

type fakeDriver struct {
	mu   sync.Mutex
	last []color.RGB
	seen chan struct{}
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{seen: make(chan struct{}, 8)}
}

func (d *fakeDriver) Apply(pixels []color.RGB) Result {
	d.mu.Lock()
	d.last = append([]color.RGB(nil), pixels...)
	d.mu.Unlock()
	select {
	case d.seen <- struct{}{}:
	default:
	}
	return Result{Class: FailureNone}
}

func (d *fakeDriver) Shutdown() {}

func (d *fakeDriver) waitApplied(t *testing.T) []color.RGB {
	t.Helper()
	select {
	case <-d.seen:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for driver Apply")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]color.RGB(nil), d.last...)
}

func identityResolver(c color.Color) (color.RGB, error) {
	return c.RGB, nil
}

func TestPipelineMergesWholeStripThenZoneOverride(t *testing.T) {
	layout := &fakeLayout{zones: map[ZoneID]zoneInfo{
		"porch": {stripID: "s1", start: 0, end: 4, brightness: 100, isOn: true},
	}}
	drv := newFakeDriver()
	p := NewPipeline(layout, map[string]int{"s1": 4}, map[string]Driver{"s1": drv}, minTickPeriod, identityResolver)

	p.Submit(WholeStrip("s1", color.NewRGB(10, 10, 10), PriorityIdle, 0, "t", time.Now()))
	p.Submit(ZoneUpdate(map[ZoneID]color.Color{"porch": color.NewRGB(99, 0, 0)}, PriorityManual, 0, "t", time.Now()))

	p.tick(time.Now())

	got := drv.waitApplied(t)
	require.Len(t, got, 4)
	assert.Equal(t, color.RGB{99, 0, 0}, got[0])
}

func TestPipelineOffZoneForcesBlack(t *testing.T) {
	layout := &fakeLayout{zones: map[ZoneID]zoneInfo{
		"porch": {stripID: "s1", start: 0, end: 2, brightness: 100, isOn: false},
	}}
	drv := newFakeDriver()
	p := NewPipeline(layout, map[string]int{"s1": 2}, map[string]Driver{"s1": drv}, minTickPeriod, identityResolver)

	p.Submit(ZoneUpdate(map[ZoneID]color.Color{"porch": color.NewRGB(200, 200, 200)}, PriorityManual, 0, "t", time.Now()))
	p.tick(time.Now())

	for _, px := range drv.waitApplied(t) {
		assert.Equal(t, color.Black, px)
	}
}

func TestPipelineQueueNewestWins(t *testing.T) {
	layout := &fakeLayout{zones: map[ZoneID]zoneInfo{}}
	drv := newFakeDriver()
	p := NewPipeline(layout, map[string]int{"s1": 1}, map[string]Driver{"s1": drv}, minTickPeriod, identityResolver)

	p.Submit(WholeStrip("s1", color.NewRGB(1, 1, 1), PriorityIdle, 0, "t", time.Now()))
	p.Submit(WholeStrip("s1", color.NewRGB(2, 2, 2), PriorityIdle, 0, "t", time.Now()))
	p.Submit(WholeStrip("s1", color.NewRGB(3, 3, 3), PriorityIdle, 0, "t", time.Now()))

	p.tick(time.Now())
	got := drv.waitApplied(t)
	require.Len(t, got, 1)
	assert.Equal(t, color.RGB{3, 3, 3}, got[0])
}

func TestPipelinePartialZoneUpdatePreservesOtherZone(t *testing.T) {
	layout := &fakeLayout{zones: map[ZoneID]zoneInfo{
		"z1": {stripID: "s1", start: 0, end: 2, brightness: 100, isOn: true},
		"z2": {stripID: "s1", start: 2, end: 4, brightness: 100, isOn: true},
	}}
	drv := newFakeDriver()
	p := NewPipeline(layout, map[string]int{"s1": 4}, map[string]Driver{"s1": drv}, minTickPeriod, identityResolver)

	p.Submit(ZoneUpdate(map[ZoneID]color.Color{"z2": color.NewRGB(0, 200, 0)}, PriorityManual, 0, "t", time.Now()))
	p.tick(time.Now())
	drv.waitApplied(t)

	p.Submit(ZoneUpdate(map[ZoneID]color.Color{"z1": color.NewRGB(200, 0, 0)}, PriorityManual, 0, "t", time.Now()))
	p.tick(time.Now())
	got := drv.waitApplied(t)

	require.Len(t, got, 4)
	assert.Equal(t, color.RGB{200, 0, 0}, got[0])
	assert.Equal(t, color.RGB{0, 200, 0}, got[2], "z2 must keep its last-rendered color, not be zeroed by z1's update")
}

func TestPipelineSubmitRejectsMalformedPixelUpdate(t *testing.T) {
	layout := &fakeLayout{zones: map[ZoneID]zoneInfo{
		"porch": {stripID: "s1", start: 0, end: 4, brightness: 100, isOn: true},
	}}
	drv := newFakeDriver()
	p := NewPipeline(layout, map[string]int{"s1": 4}, map[string]Driver{"s1": drv}, minTickPeriod, identityResolver)

	err := p.Submit(PixelUpdate(map[ZoneID][]color.Color{
		"porch": {color.NewRGB(1, 1, 1), color.NewRGB(2, 2, 2)},
	}, PriorityManual, 0, "t", time.Now()))
	require.Error(t, err)

	p.tick(time.Now())
	select {
	case <-drv.seen:
		t.Fatal("rejected pixel update should never reach a strip")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPipelineSubmitRejectsUnknownZone(t *testing.T) {
	layout := &fakeLayout{zones: map[ZoneID]zoneInfo{}}
	p := NewPipeline(layout, map[string]int{"s1": 4}, map[string]Driver{}, minTickPeriod, identityResolver)

	err := p.Submit(ZoneUpdate(map[ZoneID]color.Color{"ghost": color.NewRGB(1, 1, 1)}, PriorityManual, 0, "t", time.Now()))
	require.Error(t, err)
}

func TestPipelineStaleFrameSkipped(t *testing.T) {
	layout := &fakeLayout{zones: map[ZoneID]zoneInfo{}}
	drv := newFakeDriver()
	p := NewPipeline(layout, map[string]int{"s1": 1}, map[string]Driver{"s1": drv}, minTickPeriod, identityResolver)

	past := time.Now().Add(-time.Hour)
	p.Submit(WholeStrip("s1", color.NewRGB(9, 9, 9), PriorityIdle, time.Millisecond, "t", past))
	p.tick(time.Now())

	select {
	case <-drv.seen:
		t.Fatal("driver should not have been invoked for a fully stale tick")
	case <-time.After(50 * time.Millisecond):
	}
}
