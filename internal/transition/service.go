// Package transition implements the Transition Service (C7):
// priority-ordered color fades that preempt whatever an animation or a
// static zone color is currently producing, plus the shutdown fade-out
// sequence.
package transition

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ws281x-core/ledctl/internal/color"
	"github.com/ws281x-core/ledctl/internal/frame"
	"github.com/ws281x-core/ledctl/internal/logger"
)

// Submit pushes a frame into the pipeline; normally frame.Pipeline.Submit.
// A non-nil error means the frame failed validation and was dropped.
type Submit func(frame.Frame) error

const tickInterval = 16 * time.Millisecond // ~60Hz interpolation cadence

type active struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Service runs at most one transition per zone at a time; starting a
// new one atomically preempts whatever was running for that zone,
// mirroring the animation engine's start/stop contract.
type Service struct {
	mu   sync.Mutex
	runs map[frame.ZoneID]*active
	sub  Submit
}

// NewService builds a Service dispatching frames via sub.
func NewService(sub Submit) *Service {
	return &Service{runs: make(map[frame.ZoneID]*active), sub: sub}
}

// Fade linearly interpolates a zone from `from` to `to` over duration,
// submitting frames at the given priority (PriorityTransition for
// ordinary fades, PriorityShutdownFade for the shutdown sequence).
// It preempts any transition already running for the zone.
func (s *Service) Fade(zone frame.ZoneID, from, to color.RGB, duration time.Duration, priority frame.Priority) {
	s.mu.Lock()
	for prior, ok := s.runs[zone]; ok; prior, ok = s.runs[zone] {
		delete(s.runs, zone)
		s.mu.Unlock()
		prior.cancel()
		<-prior.done
		s.mu.Lock()
	}
	ctx, cancel := context.WithCancel(context.Background())
	a := &active{cancel: cancel, done: make(chan struct{})}
	s.runs[zone] = a
	s.mu.Unlock()

	go s.run(ctx, a, zone, from, to, duration, priority)
}

func (s *Service) run(ctx context.Context, a *active, zone frame.ZoneID, from, to color.RGB, duration time.Duration, priority frame.Priority) {
	defer close(a.done)
	defer s.clear(zone, a)

	if duration <= 0 {
		s.emit(zone, to, priority)
		return
	}

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	start := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			elapsed := time.Since(start)
			if elapsed >= duration {
				s.emit(zone, to, priority)
				return
			}
			t := float64(elapsed) / float64(duration)
			s.emit(zone, lerp(from, to, t), priority)
		}
	}
}

func (s *Service) clear(zone frame.ZoneID, a *active) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runs[zone] == a {
		delete(s.runs, zone)
	}
}

func (s *Service) emit(zone frame.ZoneID, c color.RGB, priority frame.Priority) {
	updates := map[frame.ZoneID]color.Color{zone: color.NewRGB(c.R, c.G, c.B)}
	if err := s.sub(frame.ZoneUpdate(updates, priority, 0, "transition", time.Now())); err != nil {
		logger.Warn("transition frame rejected", zap.String("zone", string(zone)), zap.Error(err))
	}
}

// Cancel stops a zone's transition, if any, and waits for it to exit.
func (s *Service) Cancel(zone frame.ZoneID) {
	s.mu.Lock()
	a, ok := s.runs[zone]
	if ok {
		delete(s.runs, zone)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	a.cancel()
	<-a.done
}

// Active reports whether zone currently has a running transition.
func (s *Service) Active(zone frame.ZoneID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.runs[zone]
	return ok
}

func lerp(a, b color.RGB, t float64) color.RGB {
	return color.RGB{
		R: lerpByte(a.R, b.R, t),
		G: lerpByte(a.G, b.G, t),
		B: lerpByte(a.B, b.B, t),
	}
}

func lerpByte(a, b uint8, t float64) uint8 {
	return uint8(float64(a) + (float64(b)-float64(a))*t)
}
