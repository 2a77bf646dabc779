package zone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTopologyAcceptsPrefixCoverage(t *testing.T) {
	configs := []Config{
		{ID: "a", StripID: "s1", PixelCount: 10, Range: PixelRange{0, 10}},
		{ID: "b", StripID: "s1", PixelCount: 5, Range: PixelRange{10, 15}},
	}
	require.NoError(t, ValidateTopology(configs))
}

func TestValidateTopologyRejectsOverlap(t *testing.T) {
	configs := []Config{
		{ID: "a", StripID: "s1", PixelCount: 10, Range: PixelRange{0, 10}},
		{ID: "b", StripID: "s1", PixelCount: 5, Range: PixelRange{5, 10}},
	}
	err := ValidateTopology(configs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overlap")
}

func TestValidateTopologyRejectsGap(t *testing.T) {
	configs := []Config{
		{ID: "a", StripID: "s1", PixelCount: 10, Range: PixelRange{0, 10}},
		{ID: "b", StripID: "s1", PixelCount: 5, Range: PixelRange{15, 20}},
	}
	err := ValidateTopology(configs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gap")
}

func TestValidateTopologyRejectsMismatchedLength(t *testing.T) {
	configs := []Config{
		{ID: "a", StripID: "s1", PixelCount: 10, Range: PixelRange{0, 5}},
	}
	err := ValidateTopology(configs)
	require.Error(t, err)
}

func TestValidateTopologySeparateStripsIndependent(t *testing.T) {
	configs := []Config{
		{ID: "a", StripID: "s1", PixelCount: 10, Range: PixelRange{0, 10}},
		{ID: "b", StripID: "s2", PixelCount: 10, Range: PixelRange{0, 10}},
	}
	require.NoError(t, ValidateTopology(configs))
}
