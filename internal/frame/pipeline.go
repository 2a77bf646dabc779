package frame

import (
	"fmt"
	"sync"
	"time"

	"github.com/ws281x-core/ledctl/internal/color"
)

// queueCapacity is the bound for each of the six priority queues;
// submission never blocks, it evicts the oldest frame when full so the
// queue always holds the most recent intent for that priority level
// newest intent wins.
const queueCapacity = 2

// minTickPeriod is the hardware floor below which no strip can reliably
// clock out a WS281x reset+data sequence.
const minTickPeriod = 2750 * time.Microsecond

type frameQueue struct {
	mu   sync.Mutex
	buf  []Frame
}

func (q *frameQueue) push(f Frame) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.buf) >= queueCapacity {
		q.buf = q.buf[1:]
	}
	q.buf = append(q.buf, f)
}

// drainLatest removes and returns the most recently pushed frame, if
// any, discarding anything older for that level.
func (q *frameQueue) drainLatest() (Frame, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.buf) == 0 {
		return Frame{}, false
	}
	f := q.buf[len(q.buf)-1]
	q.buf = q.buf[:0]
	return f, true
}

// ZoneLayout resolves a zone to its position within a strip's flat
// pixel buffer and its live brightness/on-off state, without this
// package importing the zone package directly.
type ZoneLayout interface {
	ZonePixelCount
	ZoneRange(zone ZoneID) (stripID string, start, end int, ok bool)
	ZoneRender(zone ZoneID) (brightness int, isOn bool, ok bool)
}

// FailureClass distinguishes recoverable driver failures from ones that
// require tearing the strip down.
type FailureClass int

const (
	FailureNone FailureClass = iota
	FailureTransientIO
	FailureFatalDriver
)

// Result is what a strip driver reports back for an applied buffer.
type Result struct {
	Class FailureClass
	Err   error
}

// Driver is the Strip Driver Abstraction surface the pipeline dispatches
// rendered buffers to (C1). Apply must not be called concurrently with
// itself for the same driver; the pipeline enforces this via one
// dedicated goroutine per strip.
type Driver interface {
	Apply(pixels []color.RGB) Result
	Shutdown()
}

// State is the pipeline's run state, controlled via Pause/Resume/Step.
type State int

const (
	StateRunning State = iota
	StatePaused
	StateStopped
)

// Pipeline is the Frame Pipeline (C5): six priority queues feeding a
// fixed-cadence drain-merge-dispatch loop, one per configured strip.
type Pipeline struct {
	layout ZoneLayout
	levels [NumPriorityLevels]*frameQueue
	shutdownQ *frameQueue

	stripSizes map[string]int
	drivers    map[string]Driver
	dispatch   map[string]chan []color.RGB

	// lastBuffers holds each strip's most recently merged pixel state
	// (before per-zone brightness and on/off are applied), the seed every
	// tick's partial frames render on top of so an
	// untouched zone is never zeroed by an update to a different zone
	// on the same strip.
	lastBuffers map[string][]color.RGB

	tickPeriod time.Duration
	presets    Resolver

	mu    sync.Mutex
	state State
	stepC chan struct{}
	stopC chan struct{}

	onTick func(fps float64) // optional, for the ambient fps_update broadcast
}

// Resolver resolves a color.Color to concrete RGB; normally color.Resolve
// bound to the live preset table.
type Resolver func(c color.Color) (color.RGB, error)

// NewPipeline builds a pipeline for the given strips. tickPeriod is
// clamped to minTickPeriod.
func NewPipeline(layout ZoneLayout, stripSizes map[string]int, drivers map[string]Driver, tickPeriod time.Duration, presets Resolver) *Pipeline {
	if tickPeriod < minTickPeriod {
		tickPeriod = minTickPeriod
	}
	p := &Pipeline{
		layout:      layout,
		stripSizes:  stripSizes,
		drivers:     drivers,
		dispatch:    make(map[string]chan []color.RGB, len(drivers)),
		lastBuffers: make(map[string][]color.RGB, len(drivers)),
		tickPeriod:  tickPeriod,
		presets:     presets,
		shutdownQ:   &frameQueue{},
		stepC:       make(chan struct{}),
		stopC:       make(chan struct{}),
	}
	for i := range p.levels {
		p.levels[i] = &frameQueue{}
	}
	for stripID, drv := range drivers {
		ch := make(chan []color.RGB, 1)
		p.dispatch[stripID] = ch
		go runStripWorker(drv, ch)
	}
	return p
}

// runStripWorker owns one OS-level goroutine per strip so a blocking
// Apply() call on one strip never delays another.
func runStripWorker(drv Driver, ch chan []color.RGB) {
	for pixels := range ch {
		drv.Apply(pixels)
	}
}

// OnTick registers a callback invoked once per tick with the measured
// frames-per-second, used to drive the fps_update ambient broadcast.
func (p *Pipeline) OnTick(fn func(fps float64)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onTick = fn
}

// Submit validates f against the zone topology and the current time,
// then enqueues it at its priority level (or the dedicated shutdown
// level if f.Priority == PriorityShutdownFade). Never blocks. A frame
// that fails validation — an already-expired TTL, an unknown zone, or a
// PixelUpdate whose length disagrees with the zone's pixel count — is
// rejected and never reaches a queue.
func (p *Pipeline) Submit(f Frame) error {
	if err := Validate(f, p.layout, time.Now()); err != nil {
		return err
	}
	if f.Priority == PriorityShutdownFade {
		p.shutdownQ.push(f)
		return nil
	}
	p.levels[f.Priority.Level()].push(f)
	return nil
}

// Pause stops the drain loop from producing new output after the
// in-flight tick completes.
func (p *Pipeline) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = StatePaused
}

// Resume restarts normal cadence after a pause.
func (p *Pipeline) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = StateRunning
}

// Step runs exactly one drain/merge/dispatch cycle while paused, used by
// the debug priority level for frame-by-frame inspection.
func (p *Pipeline) Step() {
	select {
	case p.stepC <- struct{}{}:
	default:
	}
}

// Stop halts the loop and closes every strip's dispatch channel.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	p.state = StateStopped
	p.mu.Unlock()
	close(p.stopC)
}

// Run drives the fixed-cadence loop until Stop is called. Intended to be
// run in its own goroutine.
func (p *Pipeline) Run() {
	ticker := time.NewTicker(p.tickPeriod)
	defer ticker.Stop()

	lastTick := time.Now()
	for {
		select {
		case <-p.stopC:
			for _, ch := range p.dispatch {
				close(ch)
			}
			return
		case <-ticker.C:
			p.mu.Lock()
			state := p.state
			p.mu.Unlock()
			if state == StatePaused {
				continue
			}
			now := time.Now()
			fps := 1.0 / now.Sub(lastTick).Seconds()
			lastTick = now
			p.tick(now)
			p.mu.Lock()
			cb := p.onTick
			p.mu.Unlock()
			if cb != nil {
				cb(fps)
			}
		case <-p.stepC:
			p.tick(time.Now())
		}
	}
}

// tick drains one frame per level (plus the shutdown level), merges them
// in increasing priority order, and dispatches the result per strip.
func (p *Pipeline) tick(now time.Time) {
	buffers := make(map[string][]color.RGB)
	bufferFor := func(stripID string) []color.RGB {
		if buf, ok := buffers[stripID]; ok {
			return buf
		}
		size := p.stripSizes[stripID]
		buf := make([]color.RGB, size)
		if prior, ok := p.lastBuffers[stripID]; ok {
			copy(buf, prior)
		}
		buffers[stripID] = buf
		return buf
	}

	apply := func(f Frame) {
		if f.Stale(now) {
			return
		}
		switch f.Kind {
		case KindWholeStrip:
			rgb, err := p.presets(f.Color)
			if err != nil {
				return
			}
			buf := bufferFor(f.StripID)
			for i := range buf {
				buf[i] = rgb
			}
		case KindZoneUpdate:
			for zoneID, c := range f.ZoneColors {
				stripID, start, end, ok := p.layout.ZoneRange(zoneID)
				if !ok {
					continue
				}
				rgb, err := p.presets(c)
				if err != nil {
					continue
				}
				buf := bufferFor(stripID)
				for i := start; i < end && i < len(buf); i++ {
					buf[i] = rgb
				}
			}
		case KindPixelUpdate:
			for zoneID, colors := range f.ZonePixels {
				stripID, start, _, ok := p.layout.ZoneRange(zoneID)
				if !ok {
					continue
				}
				buf := bufferFor(stripID)
				for i, c := range colors {
					idx := start + i
					if idx >= len(buf) {
						break
					}
					rgb, err := p.presets(c)
					if err != nil {
						continue
					}
					buf[idx] = rgb
				}
			}
		}
	}

	for _, q := range p.levels {
		if f, ok := q.drainLatest(); ok {
			apply(f)
		}
	}
	if f, ok := p.shutdownQ.drainLatest(); ok {
		apply(f)
	}

	for stripID, buf := range buffers {
		p.lastBuffers[stripID] = append([]color.RGB(nil), buf...)
	}

	p.applyZoneState(buffers)
	p.dispatchAll(buffers)
}

// applyZoneState folds each zone's live brightness/is_on into the
// already-merged buffers: off zones go black, on zones get scaled
// so each strip renders only its own zones' current state.
func (p *Pipeline) applyZoneState(buffers map[string][]color.RGB) {
	// Brightness/on-off is applied per zone, so iterate zones rather
	// than strips.
	for zoneID := range p.zoneIDsHint() {
		stripID, start, end, ok := p.layout.ZoneRange(zoneID)
		if !ok {
			continue
		}
		buf, ok := buffers[stripID]
		if !ok {
			continue
		}
		brightness, isOn, ok := p.layout.ZoneRender(zoneID)
		if !ok {
			continue
		}
		for i := start; i < end && i < len(buf); i++ {
			if !isOn {
				buf[i] = color.Black
				continue
			}
			buf[i] = color.Scale(buf[i], brightness)
		}
	}
}

// zoneIDsHint is a seam for layouts that can't cheaply enumerate zones;
// the default layout implementation backs this with its zone list.
func (p *Pipeline) zoneIDsHint() map[ZoneID]struct{} {
	type enumerator interface {
		ZoneIDs() []ZoneID
	}
	if e, ok := p.layout.(enumerator); ok {
		out := make(map[ZoneID]struct{})
		for _, id := range e.ZoneIDs() {
			out[id] = struct{}{}
		}
		return out
	}
	return nil
}

func (p *Pipeline) dispatchAll(buffers map[string][]color.RGB) {
	for stripID, buf := range buffers {
		ch, ok := p.dispatch[stripID]
		if !ok {
			continue
		}
		select {
		case ch <- buf:
		default:
			// Strip worker still busy with the previous buffer; this
			// tick's frame is dropped rather than queued, preserving
			// "apply the latest state" semantics under backpressure.
		}
	}
}

// ErrUnknownStrip is returned when a strip id has no configured driver.
type ErrUnknownStrip struct{ StripID string }

func (e *ErrUnknownStrip) Error() string { return fmt.Sprintf("no driver configured for strip %q", e.StripID) }
