package animation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ws281x-core/ledctl/internal/bus"
	"github.com/ws281x-core/ledctl/internal/frame"
	"github.com/ws281x-core/ledctl/internal/logger"
)

// ErrUnknownKind is returned by Start for an unregistered animation kind.
type ErrUnknownKind struct{ Kind string }

func (e *ErrUnknownKind) Error() string { return fmt.Sprintf("unknown animation kind %q", e.Kind) }

// cancelGrace bounds how long Start/Stop wait for a run's producer
// goroutine to observe cancellation before abandoning it. A var, not a
// const, so tests can shrink it rather than wait out the real grace
// period.
var cancelGrace = time.Second

type run struct {
	kind   string
	zones  []frame.ZoneID
	params map[string]float64
	mu     sync.Mutex // guards params for live SetParam updates
	cancel context.CancelFunc
	done   chan struct{}
}

// Engine owns every in-flight animation run, keyed by the caller-chosen
// instance id (typically the zone id for single-zone animations, or a
// group name for multi-zone ones).
type Engine struct {
	mu       sync.Mutex
	registry map[string]Factory
	runs     map[string]*run
	submit   Submit
	bus      *bus.Bus
}

// NewEngine builds an Engine dispatching produced frames via submit
// (normally frame.Pipeline.Submit) and publishing lifecycle events on b.
func NewEngine(submit Submit, b *bus.Bus) *Engine {
	e := &Engine{
		registry: make(map[string]Factory),
		runs:     make(map[string]*run),
		submit:   submit,
		bus:      b,
	}
	e.Register("rainbow", Rainbow)
	e.Register("pulse", Pulse)
	e.Register("chase", Chase)
	return e
}

// Register adds or replaces a named animation factory.
func (e *Engine) Register(kind string, factory Factory) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.registry[kind] = factory
}

// Start begins a new run under id, first atomically stopping any prior
// run under the same id and waiting up to cancelGrace for it to exit. Start/stop is
// atomic — a caller never observes two producers writing the same zone.
// fpsTarget bounds the producer tick rate.
func (e *Engine) Start(id string, kind string, zones []frame.ZoneID, params map[string]float64, fpsTarget float64) error {
	e.mu.Lock()
	factory, ok := e.registry[kind]
	if !ok {
		e.mu.Unlock()
		return &ErrUnknownKind{Kind: kind}
	}
	prior, hadPrior := e.runs[id]
	if hadPrior {
		delete(e.runs, id)
	}
	e.mu.Unlock()

	if hadPrior {
		prior.cancel()
		e.awaitDone(id, prior.done)
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &run{kind: kind, zones: zones, params: cloneParams(params), cancel: cancel, done: make(chan struct{})}

	e.mu.Lock()
	e.runs[id] = r
	e.mu.Unlock()

	producer := factory()
	go e.drive(ctx, id, r, producer, fpsTarget)

	if e.bus != nil {
		e.bus.Publish(bus.NewEvent(bus.KindAnimationStarted, bus.SourceInternal, "", map[string]interface{}{"id": id, "kind": kind}))
	}
	return nil
}

func (e *Engine) drive(ctx context.Context, id string, r *run, producer Producer, fpsTarget float64) {
	defer close(r.done)
	tick := period(fpsTarget)
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.mu.Lock()
			params := cloneParams(r.params)
			r.mu.Unlock()
			producer(ctx, time.Since(start), params, r.zones, e.submit)
		}
	}
}

// Stop cancels the run under id and waits up to cancelGrace for its
// producer goroutine to exit before returning (see awaitDone). Stopping
// an id with no run is a no-op.
func (e *Engine) Stop(id string) {
	e.mu.Lock()
	r, ok := e.runs[id]
	if ok {
		delete(e.runs, id)
	}
	e.mu.Unlock()
	if !ok {
		return
	}
	r.cancel()
	e.awaitDone(id, r.done)
	if e.bus != nil {
		e.bus.Publish(bus.NewEvent(bus.KindAnimationStopped, bus.SourceInternal, "", map[string]interface{}{"id": id}))
	}
}

// awaitDone waits up to cancelGrace for a cancelled run's producer
// goroutine to exit. If it doesn't, the goroutine is abandoned — it
// will exit whenever its blocking call returns, but the caller stops
// waiting on it and the run's id becomes free for reuse.
func (e *Engine) awaitDone(id string, done chan struct{}) {
	select {
	case <-done:
	case <-time.After(cancelGrace):
		logger.Warn("animation run did not honor cancellation in time", zap.String("id", id), zap.Duration("grace", cancelGrace))
		if e.bus != nil {
			e.bus.Publish(bus.NewEvent(bus.KindAnimationCancelTimeout, bus.SourceInternal, "", map[string]interface{}{"id": id}))
		}
	}
}

// StopAll stops every running animation, waiting up to cancelGrace for
// each to exit.
func (e *Engine) StopAll() {
	e.mu.Lock()
	ids := make([]string, 0, len(e.runs))
	for id := range e.runs {
		ids = append(ids, id)
	}
	e.mu.Unlock()
	for _, id := range ids {
		e.Stop(id)
	}
}

// SetParam updates a single live parameter on a running animation; it
// takes effect on the next tick. Returns false if id has no active run.
func (e *Engine) SetParam(id string, name string, value float64) bool {
	e.mu.Lock()
	r, ok := e.runs[id]
	e.mu.Unlock()
	if !ok {
		return false
	}
	r.mu.Lock()
	r.params[name] = value
	r.mu.Unlock()
	if e.bus != nil {
		e.bus.Publish(bus.NewEvent(bus.KindParamChanged, bus.SourceInternal, "", map[string]interface{}{"id": id, "param": name, "value": value}))
	}
	return true
}

// Running reports whether id currently has an active run.
func (e *Engine) Running(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.runs[id]
	return ok
}

func cloneParams(p map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
