package hal

import (
	"sync"

	"github.com/ws281x-core/ledctl/internal/color"
	"github.com/ws281x-core/ledctl/internal/frame"
)

// MockDriver is an in-memory Driver used by tests and by main's
// buildDriver for any strip whose driver name is not "periph" or "rpio",
// for development without hardware attached.
type MockDriver struct {
	mu          sync.Mutex
	order       ColorOrder
	lastApplied []color.RGB
	applyCount  int
}

// NewMockDriver builds a MockDriver with the given wire color order.
func NewMockDriver(order ColorOrder) *MockDriver {
	return &MockDriver{order: order}
}

// Apply records the buffer, re-encoding through orderBytes to exercise
// the same wire-order path the real backends do.
func (d *MockDriver) Apply(pixels []color.RGB) frame.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]color.RGB, len(pixels))
	for i, px := range pixels {
		bytes := orderBytes(px, d.order)
		out[i] = color.RGB{R: bytes[0], G: bytes[1], B: bytes[2]}
	}
	d.lastApplied = out
	d.applyCount++
	return frame.Result{Class: frame.FailureNone}
}

// Shutdown is a no-op for the mock.
func (d *MockDriver) Shutdown() {}

// LastApplied returns a copy of the most recently applied, wire-ordered
// buffer.
func (d *MockDriver) LastApplied() []color.RGB {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]color.RGB(nil), d.lastApplied...)
}

// ApplyCount reports how many times Apply has been called.
func (d *MockDriver) ApplyCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.applyCount
}
