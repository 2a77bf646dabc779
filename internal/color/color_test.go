package color

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveRGB(t *testing.T) {
	c := NewRGB(10, 20, 30)
	rgb, err := Resolve(c, nil)
	require.NoError(t, err)
	assert.Equal(t, RGB{10, 20, 30}, rgb)
}

func TestResolveHueWheel(t *testing.T) {
	cases := []struct {
		hue  float64
		want RGB
	}{
		{0, RGB{255, 0, 0}},
		{120, RGB{0, 255, 0}},
		{240, RGB{0, 0, 255}},
	}
	for _, tc := range cases {
		rgb, err := Resolve(NewHue(tc.hue), nil)
		require.NoError(t, err)
		assert.Equal(t, tc.want, rgb)
	}
}

func TestResolvePresetUnknown(t *testing.T) {
	table := NewPresetTable(nil)
	_, err := Resolve(NewPreset("sunset"), table)
	require.Error(t, err)
	var unknown *ErrUnknownPreset
	assert.True(t, errors.As(err, &unknown))
}

func TestResolvePresetKnown(t *testing.T) {
	table := NewPresetTable([]Preset{
		{Name: "sunset", RGB: RGB{255, 100, 0}, Category: CategoryWarm},
	})
	rgb, err := Resolve(NewPreset("sunset"), table)
	require.NoError(t, err)
	assert.Equal(t, RGB{255, 100, 0}, rgb)
}

func TestPresetTableReplace(t *testing.T) {
	table := NewPresetTable([]Preset{{Name: "a", RGB: RGB{1, 1, 1}}})
	table.Replace([]Preset{{Name: "b", RGB: RGB{2, 2, 2}}})

	_, ok := table.Get("a")
	assert.False(t, ok)
	p, ok := table.Get("b")
	assert.True(t, ok)
	assert.Equal(t, RGB{2, 2, 2}, p.RGB)
}

func TestScaleBrightness(t *testing.T) {
	assert.Equal(t, Black, Scale(RGB{255, 255, 255}, 0))
	assert.Equal(t, RGB{255, 255, 255}, Scale(RGB{255, 255, 255}, 100))
	half := Scale(RGB{255, 255, 255}, 50)
	assert.InDelta(t, 127, int(half.R), 2)
}

func TestNewHueNormalizes(t *testing.T) {
	c := NewHue(-30)
	assert.InDelta(t, 330, c.Hue, 0.001)
	c2 := NewHue(720 + 10)
	assert.InDelta(t, 10, c2.Hue, 0.001)
}
