package animation

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ws281x-core/ledctl/internal/color"
	"github.com/ws281x-core/ledctl/internal/frame"
	"github.com/ws281x-core/ledctl/internal/logger"
)

// Rainbow cycles every zone's whole color through the hue wheel, speed
// controlled by the "speed_deg_per_sec" param: a sweep over the hue
// wheel, applied as a per-zone uniform color rather than a per-pixel
// offset.
func Rainbow() Producer {
	return func(ctx context.Context, elapsed time.Duration, params map[string]float64, zones []frame.ZoneID, submit Submit) {
		speed := params["speed_deg_per_sec"]
		if speed == 0 {
			speed = 60
		}
		c := hueWheel(0, speed, elapsed)
		updates := make(map[frame.ZoneID]color.Color, len(zones))
		for _, z := range zones {
			updates[z] = c
		}
		if err := submit(frame.ZoneUpdate(updates, frame.PriorityAnimation, 0, "animation:rainbow", time.Now())); err != nil {
			logger.Warn("rainbow frame rejected", zap.Error(err))
		}
	}
}

// Pulse breathes a fixed color's brightness up and down linearly (a
// triangle wave) via hue-preserving RGB scale, controlled by "cycle_seconds" and the base
// color's r/g/b params.
func Pulse() Producer {
	return func(ctx context.Context, elapsed time.Duration, params map[string]float64, zones []frame.ZoneID, submit Submit) {
		cycle := params["cycle_seconds"]
		if cycle <= 0 {
			cycle = 2
		}
		base := color.RGB{
			R: uint8(params["r"]),
			G: uint8(params["g"]),
			B: uint8(params["b"]),
		}
		phase := elapsed.Seconds() / cycle
		// triangle wave in [0,1], avoids a trig import for a shape this
		// simple.
		frac := phase - float64(int(phase))
		level := frac * 2
		if level > 1 {
			level = 2 - level
		}
		scaled := color.Scale(base, int(level*100))
		updates := make(map[frame.ZoneID]color.Color, len(zones))
		for _, z := range zones {
			updates[z] = color.NewRGB(scaled.R, scaled.G, scaled.B)
		}
		if err := submit(frame.ZoneUpdate(updates, frame.PriorityAnimation, 0, "animation:pulse", time.Now())); err != nil {
			logger.Warn("pulse frame rejected", zap.Error(err))
		}
	}
}

// Chase lights one pixel at a time moving along each zone, wrapping at
// the zone's pixel count; speed controlled by "pixels_per_sec".
func Chase() Producer {
	return func(ctx context.Context, elapsed time.Duration, params map[string]float64, zones []frame.ZoneID, submit Submit) {
		speed := params["pixels_per_sec"]
		if speed <= 0 {
			speed = 10
		}
		fg := color.RGB{R: uint8(params["r"]), G: uint8(params["g"]), B: uint8(params["b"])}
		if fg == (color.RGB{}) {
			fg = color.RGB{R: 255}
		}

		pixelUpdates := make(map[frame.ZoneID][]color.Color, len(zones))
		for _, z := range zones {
			count, ok := zoneCountHint(params, z)
			if !ok || count <= 0 {
				continue
			}
			pos := int(elapsed.Seconds()*speed) % count
			row := make([]color.Color, count)
			for i := range row {
				if i == pos {
					row[i] = color.NewRGB(fg.R, fg.G, fg.B)
				} else {
					row[i] = color.NewRGB(0, 0, 0)
				}
			}
			pixelUpdates[z] = row
		}
		if len(pixelUpdates) > 0 {
			if err := submit(frame.PixelUpdate(pixelUpdates, frame.PriorityAnimation, 0, "animation:chase", time.Now())); err != nil {
				logger.Warn("chase frame rejected", zap.Error(err))
			}
		}
	}
}

// zoneCountHint lets callers that know a zone's pixel count pass it
// through params as "__pixel_count__<zone>" to avoid Chase depending on
// the zone package. Engine.Start does not add these entries; a Chase run
// whose params lack them submits nothing for that zone.
func zoneCountHint(params map[string]float64, z frame.ZoneID) (int, bool) {
	v, ok := params["__pixel_count__"+string(z)]
	return int(v), ok
}
