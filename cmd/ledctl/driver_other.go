//go:build !linux

package main

import (
	"fmt"

	"github.com/ws281x-core/ledctl/internal/frame"
	"github.com/ws281x-core/ledctl/internal/hal"
)

func newRPIODriver(pin int, order hal.ColorOrder) (frame.Driver, error) {
	return nil, fmt.Errorf("rpio driver requires linux (bit-banged GPIO via go-rpio)")
}
