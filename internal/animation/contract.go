// Package animation implements the Animation Engine (C6): named
// animation factories producing a stream of frames fed into the Frame
// Pipeline at PriorityAnimation until stopped, with atomic start/stop
// semantics so a zone never runs two animations at once.
package animation

import (
	"context"
	"time"

	"github.com/ws281x-core/ledctl/internal/color"
	"github.com/ws281x-core/ledctl/internal/frame"
)

// Submit pushes a produced frame into the pipeline. Implementations must
// not block. A non-nil error means the frame failed validation (stale
// TTL, unknown zone, malformed pixel length) and was dropped.
type Submit func(frame.Frame) error

// Producer is one tick of an animation's work: given the elapsed time
// since the animation started and its live parameters, it computes and
// submits the next frame(s). Producers must return promptly — the idle
// quantum is the engine's contract with them, not something they
// enforce on themselves: a ~5ms idle quantum, bounded by fps_target.
type Producer func(ctx context.Context, elapsed time.Duration, params map[string]float64, zones []frame.ZoneID, submit Submit)

// Factory builds a Producer for an animation kind. Factories are pure;
// all per-run state lives in the closure Producer returns, not in the
// Factory itself, so one registered Factory can back many concurrent
// runs.
type Factory func() Producer

// idleQuantum is the minimum sleep between producer ticks even when
// fps_target would imply a tighter cadence, keeping runaway params from
// starving the strip worker.
const idleQuantum = 5 * time.Millisecond

// period converts an fps target into a tick interval, floored at
// idleQuantum.
func period(fpsTarget float64) time.Duration {
	if fpsTarget <= 0 {
		fpsTarget = 30
	}
	p := time.Duration(float64(time.Second) / fpsTarget)
	if p < idleQuantum {
		return idleQuantum
	}
	return p
}

// hueWheel is the shared hue-stepping helper several builtin producers
// use, grounded in the same 0..360 wheel internal/color implements.
func hueWheel(base float64, stepsPerSecond float64, elapsed time.Duration) color.Color {
	return color.NewHue(base + stepsPerSecond*elapsed.Seconds())
}
