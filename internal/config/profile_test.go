package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetProfileForBoard(t *testing.T) {
	cases := []struct {
		board string
		want  Profile
	}{
		{"Pi Zero", ProfileMinimal},
		{"Pi 3", ProfileStandard},
		{"Orange Pi", ProfileStandard},
		{"Pi 4", ProfileFull},
		{"Pi 5", ProfileFull},
		{"unknown board", ProfileStandard},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, GetProfileForBoard(tc.board))
	}
}

func TestLoadProfileUnknown(t *testing.T) {
	_, err := LoadProfile("nonexistent")
	require.Error(t, err)
}

func TestLoadProfileDefaults(t *testing.T) {
	cfg, err := LoadProfile("minimal")
	require.NoError(t, err)
	assert.Equal(t, ProfileMinimal, cfg.Name)
	assert.False(t, cfg.Subsystems.MQTT)
	assert.True(t, cfg.Features.AutoDisable)
}

func TestValidateProfile(t *testing.T) {
	cfg := GetDefaultProfiles()[ProfileStandard]
	require.NoError(t, ValidateProfile(cfg))

	bad := *cfg
	bad.MaxStrips = 0
	require.Error(t, ValidateProfile(&bad))
}

func TestMergeProfileConfigFillsZeroFields(t *testing.T) {
	defaults := GetDefaultProfiles()[ProfileFull]
	partial := ProfileConfig{MaxStrips: 3}
	mergeProfileConfig(&partial, defaults)
	assert.Equal(t, defaults.Name, partial.Name)
	assert.Equal(t, defaults.MaxMemoryMB, partial.MaxMemoryMB)
	assert.Equal(t, 3, partial.MaxStrips)
}
