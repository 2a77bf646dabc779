// Package zone implements the Zone Model & Service (C3): immutable zone
// topology loaded from configuration, mutable zone state guarded by a
// single-writer service, and the debounced snapshot persistence contract.
package zone

import (
	"fmt"

	"github.com/ws281x-core/ledctl/internal/color"
	"github.com/ws281x-core/ledctl/internal/frame"
)

// ID is re-exported so callers outside this package don't need to import
// frame just to name a zone.
type ID = frame.ZoneID

// Mode is the zone's render mode.
type Mode string

const (
	ModeStatic    Mode = "STATIC"
	ModeAnimation Mode = "ANIMATION"
	ModeOff       Mode = "OFF"
)

// PixelRange is a contiguous, inclusive-exclusive range into a strip's
// flat pixel buffer.
type PixelRange struct {
	Start int
	End   int // exclusive
}

// Len returns the number of pixels in the range.
func (r PixelRange) Len() int { return r.End - r.Start }

// Config is the immutable, config-loaded description of a zone. Ranges
// across zones on the same strip are disjoint and
// their union is a prefix of the strip's buffer — validated by
// ValidateTopology at load time, not re-checked per mutation.
type Config struct {
	ID          ID
	DisplayName string
	StripID     string
	PixelCount  int
	GPIOPin     int
	Range       PixelRange
	Layout      string // optional hint, opaque to the core
}

// State is the mutable part of a zone.
type State struct {
	Color              color.Color
	Brightness         int // 0..100
	IsOn               bool
	Mode               Mode
	ActiveAnimationID  string // set iff Mode == ModeAnimation
	AnimationParams    map[string]float64
}

// Combined is the read view returned by Service.Get/All: config joined
// with current state.
type Combined struct {
	Config Config
	State  State
}

// DefaultState is the state a zone starts in when no snapshot entry
// exists for it.
func DefaultState() State {
	return State{
		Color:           color.NewRGB(255, 255, 255),
		Brightness:      100,
		IsOn:            true,
		Mode:            ModeStatic,
		AnimationParams: map[string]float64{},
	}
}

// ValidateTopology enforces the zone-range invariant: for every
// strip, the configured zones' ranges are mutually disjoint and their
// union is a prefix of that strip's pixel buffer.
func ValidateTopology(configs []Config) error {
	byStrip := make(map[string][]Config)
	for _, c := range configs {
		if c.PixelCount <= 0 {
			return fmt.Errorf("zone %q: pixel_count must be > 0", c.ID)
		}
		if c.Range.Len() != c.PixelCount {
			return fmt.Errorf("zone %q: range length %d does not match pixel_count %d", c.ID, c.Range.Len(), c.PixelCount)
		}
		byStrip[c.StripID] = append(byStrip[c.StripID], c)
	}

	for stripID, zones := range byStrip {
		sorted := append([]Config(nil), zones...)
		for i := 0; i < len(sorted); i++ {
			for j := i + 1; j < len(sorted); j++ {
				a, b := sorted[i].Range, sorted[j].Range
				if a.Start < b.End && b.Start < a.End {
					return fmt.Errorf("strip %q: zones %q and %q overlap", stripID, sorted[i].ID, sorted[j].ID)
				}
			}
		}

		next := 0
		covered := make([]bool, len(sorted))
		for progressed := true; progressed; {
			progressed = false
			for i, c := range sorted {
				if covered[i] {
					continue
				}
				if c.Range.Start == next {
					next = c.Range.End
					covered[i] = true
					progressed = true
				}
			}
		}
		for i, c := range sorted {
			if !covered[i] {
				return fmt.Errorf("strip %q: zone %q at [%d,%d) leaves a gap before it — ranges must form a prefix", stripID, c.ID, c.Range.Start, c.Range.End)
			}
		}
	}

	return nil
}
