// Package boundary implements the Command/Event Boundary (C8): command
// validation, idempotent replay of retried requests, and echo
// suppression so a client doesn't receive back the event its own
// command caused.
package boundary

import (
	"fmt"
	"time"

	"github.com/ws281x-core/ledctl/internal/animation"
	"github.com/ws281x-core/ledctl/internal/bus"
	"github.com/ws281x-core/ledctl/internal/color"
	"github.com/ws281x-core/ledctl/internal/frame"
	"github.com/ws281x-core/ledctl/internal/transition"
	"github.com/ws281x-core/ledctl/internal/zone"
)

// ZoneService is the subset of zone.Service the boundary drives.
type ZoneService interface {
	SetColor(id zone.ID, c color.Color, originClientID string, source bus.SourceType) error
	SetBrightness(id zone.ID, percent int, originClientID string, source bus.SourceType) error
	SetEnabled(id zone.ID, on bool, originClientID string, source bus.SourceType) error
	SetMode(id zone.ID, mode zone.Mode, animationID string, originClientID string, source bus.SourceType) error
	SetAnimationParam(id zone.ID, name string, value float64, originClientID string, source bus.SourceType) error
	Get(id zone.ID) (zone.Combined, error)
	All() []zone.Combined
}

// Boundary validates and applies inbound commands, idempotently.
type Boundary struct {
	zones      ZoneService
	animations *animation.Engine
	transitions *transition.Service
	cache      *idempotencyCache
}

// New builds a Boundary with the default idempotency bounds
// (capacity 1024, ttl 60s).
func New(zones ZoneService, animations *animation.Engine, transitions *transition.Service) *Boundary {
	return &Boundary{
		zones:      zones,
		animations: animations,
		transitions: transitions,
		cache:      newIdempotencyCache(1024, 60*time.Second),
	}
}

// Dispatch validates cmd, replays a cached result for a duplicate
// request_id, or executes and caches the result.
func (b *Boundary) Dispatch(cmd Command, source bus.SourceType) CommandResult {
	if cmd.RequestID != "" {
		key := idempotencyKey{clientID: cmd.ClientID, requestID: cmd.RequestID}
		if cached, ok := b.cache.Get(key, time.Now()); ok {
			cached.Replay = true
			return cached
		}
		result := b.execute(cmd, source)
		b.cache.Put(key, result, time.Now())
		return result
	}
	return b.execute(cmd, source)
}

func (b *Boundary) execute(cmd Command, source bus.SourceType) CommandResult {
	switch cmd.Kind {
	case KindSetColor:
		c, err := colorFromPayload(cmd.Payload)
		if err != nil {
			return errResult(err)
		}
		if err := b.zones.SetColor(zone.ID(cmd.ZoneID), c, cmd.ClientID, source); err != nil {
			return errResult(err)
		}
		return okResult(nil)

	case KindSetBrightness:
		pct, ok := intFromPayload(cmd.Payload, "brightness")
		if !ok {
			return errResult(fmt.Errorf("set_brightness: missing brightness"))
		}
		if pct < 0 || pct > 100 {
			return errResult(&ErrOutOfRange{Field: "brightness", Value: pct, Min: 0, Max: 100})
		}
		if err := b.zones.SetBrightness(zone.ID(cmd.ZoneID), pct, cmd.ClientID, source); err != nil {
			return errResult(err)
		}
		return okResult(nil)

	case KindSetEnabled:
		on, _ := cmd.Payload["is_on"].(bool)
		if err := b.zones.SetEnabled(zone.ID(cmd.ZoneID), on, cmd.ClientID, source); err != nil {
			return errResult(err)
		}
		return okResult(nil)

	case KindSetMode:
		mode, _ := cmd.Payload["mode"].(string)
		animID, _ := cmd.Payload["animation_id"].(string)
		if err := b.zones.SetMode(zone.ID(cmd.ZoneID), zone.Mode(mode), animID, cmd.ClientID, source); err != nil {
			return errResult(err)
		}
		return okResult(nil)

	case KindSetAnimationParam:
		name, _ := cmd.Payload["param"].(string)
		value, _ := cmd.Payload["value"].(float64)
		if err := b.zones.SetAnimationParam(zone.ID(cmd.ZoneID), name, value, cmd.ClientID, source); err != nil {
			return errResult(err)
		}
		return okResult(nil)

	case KindStartAnimation:
		kind, _ := cmd.Payload["kind"].(string)
		fps, _ := cmd.Payload["fps_target"].(float64)
		params := floatMapFromPayload(cmd.Payload, "params")
		if err := b.animations.Start(cmd.ZoneID, kind, []frame.ZoneID{frame.ZoneID(cmd.ZoneID)}, params, fps); err != nil {
			return errResult(err)
		}
		_ = b.zones.SetMode(zone.ID(cmd.ZoneID), zone.ModeAnimation, kind, cmd.ClientID, source)
		return okResult(nil)

	case KindStopAnimation:
		b.animations.Stop(cmd.ZoneID)
		_ = b.zones.SetMode(zone.ID(cmd.ZoneID), zone.ModeStatic, "", cmd.ClientID, source)
		return okResult(nil)

	case KindStopAllAnimations:
		b.animations.StopAll()
		return okResult(nil)

	case KindFade:
		to, err := colorFromPayload(cmd.Payload)
		if err != nil {
			return errResult(err)
		}
		toRGB, err := color.Resolve(to, nil)
		if err != nil {
			return errResult(err)
		}
		durationMS, _ := intFromPayload(cmd.Payload, "duration_ms")
		current, err := b.zones.Get(zone.ID(cmd.ZoneID))
		if err != nil {
			return errResult(err)
		}
		fromRGB, err := color.Resolve(current.State.Color, nil)
		if err != nil {
			fromRGB = color.Black
		}
		b.transitions.Fade(frame.ZoneID(cmd.ZoneID), fromRGB, toRGB, time.Duration(durationMS)*time.Millisecond, frame.PriorityTransition)
		return okResult(nil)

	case KindGetZone:
		c, err := b.zones.Get(zone.ID(cmd.ZoneID))
		if err != nil {
			return errResult(err)
		}
		return okResult(map[string]interface{}{"zone": c})

	case KindGetAllZones:
		return okResult(map[string]interface{}{"zones": b.zones.All()})

	default:
		return errResult(fmt.Errorf("unknown command kind %q", cmd.Kind))
	}
}

func colorFromPayload(p map[string]interface{}) (color.Color, error) {
	switch kind, _ := p["color_kind"].(string); kind {
	case "hue":
		h, _ := p["hue"].(float64)
		return color.NewHue(h), nil
	case "preset":
		name, _ := p["preset"].(string)
		return color.NewPreset(name), nil
	case "rgb", "":
		r, _ := intFromPayload(p, "r")
		g, _ := intFromPayload(p, "g")
		bl, _ := intFromPayload(p, "b")
		return color.NewRGB(uint8(r), uint8(g), uint8(bl)), nil
	default:
		return color.Color{}, fmt.Errorf("unknown color_kind %q", kind)
	}
}

func intFromPayload(p map[string]interface{}, key string) (int, bool) {
	v, ok := p[key]
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	if !ok {
		return 0, false
	}
	return int(f), true
}

func floatMapFromPayload(p map[string]interface{}, key string) map[string]float64 {
	raw, _ := p[key].(map[string]interface{})
	out := make(map[string]float64, len(raw))
	for k, v := range raw {
		if f, ok := v.(float64); ok {
			out[k] = f
		}
	}
	return out
}
