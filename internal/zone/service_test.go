package zone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ws281x-core/ledctl/internal/bus"
	"github.com/ws281x-core/ledctl/internal/color"
)

func testConfigs() []Config {
	return []Config{
		{ID: "porch", StripID: "s1", PixelCount: 10, Range: PixelRange{0, 10}},
		{ID: "hallway", StripID: "s1", PixelCount: 5, Range: PixelRange{10, 15}},
	}
}

func TestNewServiceFallsBackToDefaultState(t *testing.T) {
	s, err := NewService(testConfigs(), nil, nil)
	require.NoError(t, err)
	c, err := s.Get("porch")
	require.NoError(t, err)
	assert.True(t, c.State.IsOn)
	assert.Equal(t, 100, c.State.Brightness)
}

func TestNewServiceRejectsBadTopology(t *testing.T) {
	_, err := NewService([]Config{
		{ID: "a", StripID: "s1", PixelCount: 10, Range: PixelRange{5, 15}},
	}, nil, nil)
	require.Error(t, err)
}

func TestSetColorPublishesZoneStateChanged(t *testing.T) {
	b := bus.New(bus.DefaultConfig(), nil)
	s, err := NewService(testConfigs(), nil, b)
	require.NoError(t, err)

	var got bus.Event
	b.Subscribe(bus.KindZoneStateChanged, func(e bus.Event) { got = e }, bus.ModeSync, nil)

	require.NoError(t, s.SetColor("porch", color.NewRGB(1, 2, 3), "client-1", bus.SourceCommand))

	assert.Equal(t, "porch", got.Payload["zone"])
	assert.Equal(t, bus.SourceCommand, got.SourceType)
	assert.Equal(t, "client-1", got.OriginClientID)
}

func TestSetBrightnessClamps(t *testing.T) {
	s, err := NewService(testConfigs(), nil, nil)
	require.NoError(t, err)

	require.NoError(t, s.SetBrightness("porch", 200, "", bus.SourceInternal))
	c, _ := s.Get("porch")
	assert.Equal(t, 100, c.State.Brightness)

	require.NoError(t, s.SetBrightness("porch", -5, "", bus.SourceInternal))
	c, _ = s.Get("porch")
	assert.Equal(t, 0, c.State.Brightness)
}

func TestSetModeClearsAnimationIDWhenLeavingAnimation(t *testing.T) {
	s, err := NewService(testConfigs(), nil, nil)
	require.NoError(t, err)

	require.NoError(t, s.SetMode("porch", ModeAnimation, "rainbow-1", "", bus.SourceInternal))
	c, _ := s.Get("porch")
	assert.Equal(t, "rainbow-1", c.State.ActiveAnimationID)

	require.NoError(t, s.SetMode("porch", ModeStatic, "", "", bus.SourceInternal))
	c, _ = s.Get("porch")
	assert.Equal(t, "", c.State.ActiveAnimationID)
}

func TestMutateUnknownZoneReturnsError(t *testing.T) {
	s, err := NewService(testConfigs(), nil, nil)
	require.NoError(t, err)
	err = s.SetEnabled("does-not-exist", false, "", bus.SourceInternal)
	require.Error(t, err)
	var unknown *ErrUnknownZone
	assert.ErrorAs(t, err, &unknown)
}

func TestExcludedFromSkipsGivenZones(t *testing.T) {
	s, err := NewService(testConfigs(), nil, nil)
	require.NoError(t, err)
	rest := s.ExcludedFrom(map[ID]struct{}{"porch": {}})
	require.Len(t, rest, 1)
	assert.Equal(t, ID("hallway"), rest[0].Config.ID)
}

func TestOnChangeCalledAfterMutation(t *testing.T) {
	s, err := NewService(testConfigs(), nil, nil)
	require.NoError(t, err)
	called := false
	s.OnChange(func() { called = true })
	require.NoError(t, s.SetEnabled("porch", false, "", bus.SourceInternal))
	assert.True(t, called)
}

func TestSnapshotCopiesAnimationParams(t *testing.T) {
	s, err := NewService(testConfigs(), nil, nil)
	require.NoError(t, err)
	require.NoError(t, s.SetAnimationParam("porch", "speed", 2.5, "", bus.SourceInternal))

	snap := s.Snapshot()
	snap["porch"].AnimationParams["speed"] = 99

	c, _ := s.Get("porch")
	assert.Equal(t, 2.5, c.State.AnimationParams["speed"])
}
