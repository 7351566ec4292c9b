package traffic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoLaneRects() []Rect {
	return []Rect{
		{X1: 0, Y1: 0, X2: 100, Y2: 400},
		{X1: 100, Y1: 0, X2: 200, Y2: 400},
	}
}

func TestLaneIndexIDs(t *testing.T) {
	li := NewLaneIndex(twoLaneRects())

	require.Equal(t, 2, li.Count())
	lanes := li.Lanes()
	assert.Equal(t, 1, lanes[0].ID)
	assert.Equal(t, 2, lanes[1].ID)
}

func TestLocate(t *testing.T) {
	li := NewLaneIndex(twoLaneRects())

	tests := []struct {
		name string
		p    Point
		want int
	}{
		{"inside first lane", Point{X: 50, Y: 200}, 1},
		{"inside second lane", Point{X: 150, Y: 200}, 2},
		{"outside all lanes", Point{X: 300, Y: 200}, 0},
		{"shared edge goes to lower lane", Point{X: 100, Y: 200}, 1},
		{"on outer edge", Point{X: 0, Y: 0}, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, li.Locate(tc.p))
		})
	}
}

func TestLocateOverlapPrefersLowestLane(t *testing.T) {
	li := NewLaneIndex([]Rect{
		{X1: 0, Y1: 0, X2: 150, Y2: 400},
		{X1: 100, Y1: 0, X2: 250, Y2: 400},
	})
	assert.Equal(t, 1, li.Locate(Point{X: 120, Y: 200}))
}

func TestResolveSticky(t *testing.T) {
	li := NewLaneIndex(twoLaneRects())

	// First confirmed hit establishes the assignment.
	assert.Equal(t, 1, li.Resolve(7, Point{X: 50, Y: 200}))

	// Drifting into no-lane territory keeps the last known lane.
	assert.Equal(t, 1, li.Resolve(7, Point{X: 300, Y: 200}))

	// A confirmed hit elsewhere moves the assignment.
	assert.Equal(t, 2, li.Resolve(7, Point{X: 150, Y: 200}))
	assert.Equal(t, 2, li.Resolve(7, Point{X: 300, Y: 200}))
}

func TestResolveNeverSeenInLane(t *testing.T) {
	li := NewLaneIndex(twoLaneRects())
	assert.Equal(t, 0, li.Resolve(9, Point{X: 500, Y: 500}))
}

func TestLaneEvict(t *testing.T) {
	li := NewLaneIndex(twoLaneRects())
	li.Resolve(1, Point{X: 50, Y: 200})
	li.Resolve(2, Point{X: 150, Y: 200})

	li.Evict(map[int64]bool{2: true})

	// Track 1 lost its sticky assignment, track 2 kept it.
	assert.Equal(t, 0, li.Resolve(1, Point{X: 500, Y: 500}))
	assert.Equal(t, 2, li.Resolve(2, Point{X: 500, Y: 500}))
}

func TestRectHelpers(t *testing.T) {
	r := Rect{X1: 10, Y1: 20, X2: 30, Y2: 60}

	assert.Equal(t, Point{X: 20, Y: 40}, r.Center())
	assert.True(t, r.Valid())
	assert.False(t, Rect{X1: 30, Y1: 20, X2: 10, Y2: 60}.Valid())
	assert.False(t, Rect{X1: 10, Y1: 20, X2: 10, Y2: 60}.Valid())
}

func TestVehicleClassIsTracked(t *testing.T) {
	for _, c := range TrackedClasses {
		assert.True(t, c.IsTracked(), string(c))
	}
	assert.False(t, VehicleClass("bicycle").IsTracked())
	assert.False(t, VehicleClass("").IsTracked())
}
