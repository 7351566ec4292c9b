package traffic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlopeRequiresThreeSamples(t *testing.T) {
	tt := NewTrendTracker(20, 0.15)

	assert.Zero(t, tt.Slope(1))
	tt.Record(1, 5)
	tt.Record(1, 6)
	assert.Zero(t, tt.Slope(1))
	tt.Record(1, 7)
	assert.NotZero(t, tt.Slope(1))
}

func TestSlopeLinearRamp(t *testing.T) {
	tt := NewTrendTracker(20, 0.15)

	// Occupancy climbing by exactly one per sample fits a slope of 1.
	for occ := 0; occ < 10; occ++ {
		tt.Record(1, occ)
	}
	assert.InDelta(t, 1.0, tt.Slope(1), 1e-9)
	assert.Equal(t, 1, tt.Sign(1))
}

func TestSlopeFalling(t *testing.T) {
	tt := NewTrendTracker(20, 0.15)

	for occ := 10; occ > 0; occ-- {
		tt.Record(1, occ)
	}
	assert.InDelta(t, -1.0, tt.Slope(1), 1e-9)
	assert.Equal(t, -1, tt.Sign(1))
}

func TestSlopeFlat(t *testing.T) {
	tt := NewTrendTracker(20, 0.15)

	for i := 0; i < 10; i++ {
		tt.Record(1, 5)
	}
	assert.InDelta(t, 0.0, tt.Slope(1), 1e-9)
	assert.Equal(t, 0, tt.Sign(1))
}

func TestSlopeWindowForgetsOldSamples(t *testing.T) {
	tt := NewTrendTracker(5, 0.15)

	// A long climb followed by a plateau: once the window holds only plateau
	// samples, the trend reads stable.
	for occ := 0; occ < 20; occ++ {
		tt.Record(1, occ)
	}
	for i := 0; i < 5; i++ {
		tt.Record(1, 20)
	}
	assert.Equal(t, 0, tt.Sign(1))
}

func TestSignThreshold(t *testing.T) {
	tt := NewTrendTracker(20, 0.15)

	// A mild drift stays under the 0.15 threshold (slope here is about 0.145).
	samples := []int{10, 10, 10, 10, 10, 10, 11, 11, 11, 11}
	for _, occ := range samples {
		tt.Record(1, occ)
	}
	slope := tt.Slope(1)
	assert.Greater(t, slope, 0.0)
	assert.Less(t, slope, 0.15)
	assert.Equal(t, 0, tt.Sign(1))
}

func TestTrendLabels(t *testing.T) {
	tt := NewTrendTracker(20, 0.15)

	for occ := 0; occ < 10; occ++ {
		tt.Record(1, occ)
		tt.Record(2, 10-occ)
		tt.Record(3, 5)
	}

	assert.Equal(t, TrendRisingGlyph, tt.Label(1))
	assert.Equal(t, TrendFallingGlyph, tt.Label(2))
	assert.Equal(t, TrendStableGlyph, tt.Label(3))

	assert.Equal(t, TrendRisingASCII, tt.LabelASCII(1))
	assert.Equal(t, TrendFallingASCII, tt.LabelASCII(2))
	assert.Equal(t, TrendStableASCII, tt.LabelASCII(3))
}

func TestTrendLanesIndependent(t *testing.T) {
	tt := NewTrendTracker(20, 0.15)

	for occ := 0; occ < 10; occ++ {
		tt.Record(1, occ)
	}
	assert.Equal(t, 1, tt.Sign(1))
	assert.Equal(t, 0, tt.Sign(2))
}
