package bars

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeTimestamp_PrecisionCoercion(t *testing.T) {
	// 1_704_067_200_000 (ms) and 1_704_067_200_000_000 (µs) denote the same
	// instant and must normalize identically (testable property 6).
	msResult, err := Normalize(1_704_067_200_000)
	require.NoError(t, err)

	usResult, err := Normalize(1_704_067_200_000_000)
	require.NoError(t, err)

	require.Equal(t, usResult, msResult)
	require.Equal(t, int64(1_704_067_200_000_000), msResult)
}

func TestNormalizeTimestamp_BelowEpochFloor(t *testing.T) {
	_, err := NormalizeTimestamp(1000, DefaultEpochFloorMicros)
	require.Error(t, err)
}

func TestNormalizeTimestamp_BoundaryIsMilliseconds(t *testing.T) {
	// Exactly at the 10^15 threshold is still classified as milliseconds
	// (the branch is strictly greater-than), one above it is microseconds.
	atThreshold, err := Normalize(1_000_000_000_000_000)
	require.NoError(t, err)
	require.Equal(t, int64(1_000_000_000_000_000_000), atThreshold)

	aboveThreshold, err := Normalize(1_000_000_000_000_001)
	require.NoError(t, err)
	require.Equal(t, int64(1_000_000_000_000_001), aboveThreshold)
}
