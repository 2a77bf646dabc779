//go:build linux

package hal

import (
	"fmt"
	"time"

	"github.com/stianeikeland/go-rpio/v4"

	"github.com/ws281x-core/ledctl/internal/color"
	"github.com/ws281x-core/ledctl/internal/frame"
)

// RPIODriver bit-bangs the WS281x one-wire protocol on a single GPIO pin
// using go-rpio's direct register access. It is a fallback for boards where the
// SPI-based periph backend isn't wired to a pin, and is only usable
// when the process can mmap /dev/gpiomem (root, or a group-member user).
type RPIODriver struct {
	pin   rpio.Pin
	order ColorOrder
	open  bool
}

// NewRPIODriver opens pinNum as output. Callers must call Close (via
// Shutdown) exactly once.
func NewRPIODriver(pinNum int, order ColorOrder) (*RPIODriver, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("rpio: open: %w", err)
	}
	pin := rpio.Pin(pinNum)
	pin.Output()
	return &RPIODriver{pin: pin, order: order, open: true}, nil
}

// Apply bit-bangs pixels, one 24-bit wire-ordered word per pixel,
// followed by the >50us reset gap.
func (d *RPIODriver) Apply(pixels []color.RGB) frame.Result {
	if !d.open {
		return classifyErr(fmt.Errorf("rpio: driver already shut down"), true)
	}
	for _, px := range pixels {
		bytes := orderBytes(px, d.order)
		for _, b := range bytes {
			d.sendByte(b)
		}
	}
	d.pin.Low()
	time.Sleep(60 * time.Microsecond)
	return frame.Result{Class: frame.FailureNone}
}

func (d *RPIODriver) sendByte(b byte) {
	for bit := 7; bit >= 0; bit-- {
		if b&(1<<uint(bit)) != 0 {
			d.pin.High()
			spinFor(700 * time.Nanosecond)
			d.pin.Low()
			spinFor(600 * time.Nanosecond)
		} else {
			d.pin.High()
			spinFor(350 * time.Nanosecond)
			d.pin.Low()
			spinFor(800 * time.Nanosecond)
		}
	}
}

// spinFor busy-waits rather than sleeping: the WS281x bit timing is too
// tight for the scheduler's sleep granularity.
func spinFor(d time.Duration) {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
	}
}

// Shutdown releases the GPIO pin and closes the rpio memory map.
func (d *RPIODriver) Shutdown() {
	if !d.open {
		return
	}
	d.pin.Low()
	rpio.Close()
	d.open = false
}
