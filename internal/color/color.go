// Package color implements the Color tagged variant from the data model:
// a value is exactly one of a hue, raw RGB, or a named preset, and every
// variant resolves to concrete (r,g,b) bytes before it reaches a Frame.
package color

import (
	"fmt"
	"sync"
)

// Kind discriminates which variant of Color is populated.
type Kind int

const (
	KindRGB Kind = iota
	KindHue
	KindPreset
)

// RGB is a resolved 8-bit-per-channel color.
type RGB struct {
	R, G, B uint8
}

// Black is the zeroed, "off" color used whenever a zone is forced dark.
var Black = RGB{}

// Category groups named presets for UI / config purposes.
type Category string

const (
	CategoryBasic   Category = "basic"
	CategoryWarm    Category = "warm"
	CategoryCool    Category = "cool"
	CategoryWhite   Category = "white"
	CategoryNatural Category = "natural"
)

// Preset is a named, pre-mixed color loaded from configuration.
type Preset struct {
	Name     string
	RGB      RGB
	Category Category
}

// Color is the tagged variant: Hue{h}, Rgb{r,g,b}, or
// Preset{name}. Exactly one of the fields is meaningful, selected by Kind.
type Color struct {
	Kind   Kind
	Hue    float64 // 0..360, meaningful when Kind == KindHue
	RGB    RGB     // meaningful when Kind == KindRGB
	Preset string  // meaningful when Kind == KindPreset
}

// NewRGB builds an RGB-variant Color.
func NewRGB(r, g, b uint8) Color {
	return Color{Kind: KindRGB, RGB: RGB{R: r, G: g, B: b}}
}

// NewHue builds a Hue-variant Color. h is normalized into [0, 360).
func NewHue(h float64) Color {
	for h < 0 {
		h += 360
	}
	for h >= 360 {
		h -= 360
	}
	return Color{Kind: KindHue, Hue: h}
}

// NewPreset builds a Preset-variant Color referencing a name resolved
// against a PresetTable at conversion time.
func NewPreset(name string) Color {
	return Color{Kind: KindPreset, Preset: name}
}

// ErrUnknownPreset is returned by Resolve when a Preset-variant Color names
// a preset that isn't loaded in the table.
type ErrUnknownPreset struct{ Name string }

func (e *ErrUnknownPreset) Error() string {
	return fmt.Sprintf("unknown color preset: %q", e.Name)
}

// PresetTable is the read-only, startup-loaded set of named presets.
// Conversion from a Preset-variant Color always goes through a table;
// there is no implicit default set baked into the Color type itself.
type PresetTable struct {
	mu      sync.RWMutex
	presets map[string]Preset
}

// NewPresetTable builds a table from a loaded preset list.
func NewPresetTable(presets []Preset) *PresetTable {
	t := &PresetTable{presets: make(map[string]Preset, len(presets))}
	for _, p := range presets {
		t.presets[p.Name] = p
	}
	return t
}

// Get returns the named preset.
func (t *PresetTable) Get(name string) (Preset, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.presets[name]
	return p, ok
}

// Replace atomically swaps the preset set, used by the config hot-reload
// watcher when the presets file changes on disk.
func (t *PresetTable) Replace(presets []Preset) {
	next := make(map[string]Preset, len(presets))
	for _, p := range presets {
		next[p.Name] = p
	}
	t.mu.Lock()
	t.presets = next
	t.mu.Unlock()
}

// List returns all presets, order unspecified.
func (t *PresetTable) List() []Preset {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Preset, 0, len(t.presets))
	for _, p := range t.presets {
		out = append(out, p)
	}
	return out
}

// Resolve converts any Color variant to concrete RGB bytes. Conversion is
// total for Hue and Rgb; Preset lookup can fail with ErrUnknownPreset.
func Resolve(c Color, presets *PresetTable) (RGB, error) {
	switch c.Kind {
	case KindRGB:
		return c.RGB, nil
	case KindHue:
		return hueToRGB(c.Hue), nil
	case KindPreset:
		if presets == nil {
			return RGB{}, &ErrUnknownPreset{Name: c.Preset}
		}
		p, ok := presets.Get(c.Preset)
		if !ok {
			return RGB{}, &ErrUnknownPreset{Name: c.Preset}
		}
		return p.RGB, nil
	default:
		return RGB{}, fmt.Errorf("color: unhandled kind %d", c.Kind)
	}
}

// hueToRGB converts a hue in degrees (0..360) to full-saturation,
// full-value RGB, matching the standard HSV-to-RGB wheel.
func hueToRGB(h float64) RGB {
	for h < 0 {
		h += 360
	}
	for h >= 360 {
		h -= 360
	}

	hh := h / 60
	sector := int(hh) % 6
	f := hh - float64(int(hh))

	p := uint8(0)
	q := uint8(255 * (1 - f))
	t := uint8(255 * f)
	const v = 255

	switch sector {
	case 0:
		return RGB{R: v, G: t, B: p}
	case 1:
		return RGB{R: q, G: v, B: p}
	case 2:
		return RGB{R: p, G: v, B: t}
	case 3:
		return RGB{R: p, G: q, B: v}
	case 4:
		return RGB{R: t, G: p, B: v}
	default:
		return RGB{R: v, G: p, B: q}
	}
}

// Scale applies integer brightness scaling (0..100) to an RGB value using
// a multiply-then-shift, matching the merge policy's brightness step
// (gamma correction is explicitly out of scope).
func Scale(c RGB, brightnessPercent int) RGB {
	if brightnessPercent <= 0 {
		return Black
	}
	if brightnessPercent > 100 {
		brightnessPercent = 100
	}
	// (channel * brightness*256/100) >> 8, integer multiply-then-shift;
	// 100% is the identity.
	factor := uint32(brightnessPercent) * 256 / 100
	return RGB{
		R: uint8((uint32(c.R) * factor) >> 8),
		G: uint8((uint32(c.G) * factor) >> 8),
		B: uint8((uint32(c.B) * factor) >> 8),
	}
}
