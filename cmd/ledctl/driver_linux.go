//go:build linux

package main

import (
	"fmt"

	"github.com/ws281x-core/ledctl/internal/frame"
	"github.com/ws281x-core/ledctl/internal/hal"
)

// newRPIODriver validates pin against the detected board's GPIO count
// before bit-banging it, since go-rpio happily mmaps an out-of-range
// register offset rather than erroring.
func newRPIODriver(pin int, order hal.ColorOrder) (frame.Driver, error) {
	if board, err := hal.DetectBoard(); err == nil {
		if pin < 0 || pin >= board.NumGPIO {
			return nil, fmt.Errorf("rpio: pin %d out of range for %s (%d GPIOs)", pin, board.Name, board.NumGPIO)
		}
	}
	return hal.NewRPIODriver(pin, order)
}
