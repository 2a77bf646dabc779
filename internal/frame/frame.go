// Package frame implements the Frame tagged variant (C2) and the six
// priority levels the Frame Pipeline drains in order.
package frame

import (
	"fmt"
	"time"

	"github.com/ws281x-core/ledctl/internal/color"
)

// Priority is the integer tag attached to every frame; higher values
// overwrite lower during the merge step.
type Priority int

const (
	PriorityIdle       Priority = 0
	PriorityManual     Priority = 10
	PriorityPulse      Priority = 20
	PriorityAnimation  Priority = 30
	PriorityTransition Priority = 40
	PriorityDebug      Priority = 50

	// PriorityShutdownFade is the shutdown fade-out's own priority band,
	// above every steady-state level, so it always wins the merge while
	// the shutdown sequence runs.
	PriorityShutdownFade Priority = 100
)

// NumPriorityLevels bounds the queue array; shutdown fade uses its own
// dedicated queue rather than sharing the six steady-state levels.
const NumPriorityLevels = 6

// Level maps a Priority to its dense queue index 0..5.
func (p Priority) Level() int {
	switch p {
	case PriorityIdle:
		return 0
	case PriorityManual:
		return 1
	case PriorityPulse:
		return 2
	case PriorityAnimation:
		return 3
	case PriorityTransition:
		return 4
	case PriorityDebug:
		return 5
	default:
		return 5
	}
}

// ZoneID identifies a configured zone; opaque outside the zone package.
type ZoneID string

// Kind discriminates the three Frame variants.
type Kind int

const (
	KindWholeStrip Kind = iota
	KindZoneUpdate
	KindPixelUpdate
)

// Frame is the tagged variant: WholeStrip, ZoneUpdate, or
// PixelUpdate, each carrying priority/ttl/source/partial metadata.
type Frame struct {
	Kind Kind

	// WholeStrip
	StripID string
	Color   color.Color

	// ZoneUpdate
	ZoneColors map[ZoneID]color.Color

	// PixelUpdate
	ZonePixels map[ZoneID][]color.Color

	Priority  Priority
	TTL       time.Duration
	Source    string
	Partial   bool
	SubmitAt  time.Time
}

// Stale reports whether the frame's time horizon has passed as of now.
func (f Frame) Stale(now time.Time) bool {
	if f.TTL <= 0 {
		return false
	}
	return now.After(f.SubmitAt.Add(f.TTL))
}

// ErrInvalidFrame is returned by Validate for malformed frames: a
// PixelUpdate whose pixel count disagrees with pixel_count is rejected
// at submission.
type ErrInvalidFrame struct{ Reason string }

func (e *ErrInvalidFrame) Error() string { return "invalid frame: " + e.Reason }

// ZonePixelCount is implemented by whatever owns zone topology (the zone
// service), so Validate can check PixelUpdate lengths without importing
// the zone package and creating a cycle.
type ZonePixelCount interface {
	PixelCount(zone ZoneID) (int, bool)
}

// Validate checks a frame against the zone topology and rejects frames
// with an already-expired TTL or a malformed PixelUpdate length.
func Validate(f Frame, zones ZonePixelCount, now time.Time) error {
	if f.Stale(now) {
		return &ErrInvalidFrame{Reason: "ttl already expired at submission"}
	}

	switch f.Kind {
	case KindWholeStrip:
		return nil
	case KindZoneUpdate:
		for zid := range f.ZoneColors {
			if _, ok := zones.PixelCount(zid); !ok {
				return &ErrInvalidFrame{Reason: fmt.Sprintf("unknown zone %q", zid)}
			}
		}
		return nil
	case KindPixelUpdate:
		for zid, pixels := range f.ZonePixels {
			count, ok := zones.PixelCount(zid)
			if !ok {
				return &ErrInvalidFrame{Reason: fmt.Sprintf("unknown zone %q", zid)}
			}
			if len(pixels) != count {
				return &ErrInvalidFrame{Reason: fmt.Sprintf("zone %q expects %d pixels, got %d", zid, count, len(pixels))}
			}
		}
		return nil
	default:
		return &ErrInvalidFrame{Reason: "unknown frame kind"}
	}
}

// WholeStrip builds a broadcast-to-every-pixel frame.
func WholeStrip(stripID string, c color.Color, priority Priority, ttl time.Duration, source string, submitAt time.Time) Frame {
	return Frame{
		Kind:     KindWholeStrip,
		StripID:  stripID,
		Color:    c,
		Priority: priority,
		TTL:      ttl,
		Source:   source,
		Partial:  true,
		SubmitAt: submitAt,
	}
}

// ZoneUpdate builds a per-zone uniform-color frame.
func ZoneUpdate(updates map[ZoneID]color.Color, priority Priority, ttl time.Duration, source string, submitAt time.Time) Frame {
	return Frame{
		Kind:       KindZoneUpdate,
		ZoneColors: updates,
		Priority:   priority,
		TTL:        ttl,
		Source:     source,
		Partial:    true,
		SubmitAt:   submitAt,
	}
}

// PixelUpdate builds a per-pixel frame.
func PixelUpdate(updates map[ZoneID][]color.Color, priority Priority, ttl time.Duration, source string, submitAt time.Time) Frame {
	return Frame{
		Kind:       KindPixelUpdate,
		ZonePixels: updates,
		Priority:   priority,
		TTL:        ttl,
		Source:     source,
		Partial:    true,
		SubmitAt:   submitAt,
	}
}
