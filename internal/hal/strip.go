// Package hal implements the Strip Driver Abstraction (C1): board
// detection and the concrete WS281x backends the Frame Pipeline
// dispatches rendered pixel buffers to.
package hal

import (
	"github.com/ws281x-core/ledctl/internal/color"
	"github.com/ws281x-core/ledctl/internal/frame"
)

// ColorOrder is the physical wire order a strip expects its three bytes
// in; WS281x chips commonly use GRB rather than RGB.
type ColorOrder int

const (
	OrderGRB ColorOrder = iota
	OrderRGB
	OrderBGR
)

// orderBytes returns px's three channels in wire order.
func orderBytes(px color.RGB, order ColorOrder) [3]byte {
	switch order {
	case OrderRGB:
		return [3]byte{px.R, px.G, px.B}
	case OrderBGR:
		return [3]byte{px.B, px.G, px.R}
	case OrderGRB:
		fallthrough
	default:
		return [3]byte{px.G, px.R, px.B}
	}
}

// classifyErr maps a backend error to the pipeline's failure taxonomy:
// anything from the transport itself is transient and
// worth retrying next tick, anything from driver/device setup is fatal.
func classifyErr(err error, fatal bool) frame.Result {
	if err == nil {
		return frame.Result{Class: frame.FailureNone}
	}
	if fatal {
		return frame.Result{Class: frame.FailureFatalDriver, Err: err}
	}
	return frame.Result{Class: frame.FailureTransientIO, Err: err}
}
