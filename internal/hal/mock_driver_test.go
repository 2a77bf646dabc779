package hal

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ws281x-core/ledctl/internal/color"
	"github.com/ws281x-core/ledctl/internal/frame"
)

func TestMockDriverReordersToGRB(t *testing.T) {
	d := NewMockDriver(OrderGRB)
	res := d.Apply([]color.RGB{{R: 10, G: 20, B: 30}})
	assert.Equal(t, frame.FailureNone, res.Class)
	assert.Equal(t, []color.RGB{{R: 20, G: 10, B: 30}}, d.LastApplied())
	assert.Equal(t, 1, d.ApplyCount())
}

func TestMockDriverPassThruRGB(t *testing.T) {
	d := NewMockDriver(OrderRGB)
	d.Apply([]color.RGB{{R: 10, G: 20, B: 30}})
	assert.Equal(t, []color.RGB{{R: 10, G: 20, B: 30}}, d.LastApplied())
}
