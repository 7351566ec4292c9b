package traffic

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, mutate func(*Config)) *Engine {
	t.Helper()
	cfg := validConfig()
	if mutate != nil {
		mutate(cfg)
	}
	e, err := NewEngine(cfg, time.Date(2026, 8, 30, 8, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return e
}

// obs builds an observation with a 10x10 box centred on (x, y).
func obs(trackID int64, class VehicleClass, x, y float64) Observation {
	return Observation{
		TrackID: trackID,
		Class:   class,
		Box:     Rect{X1: x - 5, Y1: y - 5, X2: x + 5, Y2: y + 5},
	}
}

func TestNewEngineRejectsInvalidConfig(t *testing.T) {
	_, err := NewEngine(&Config{}, time.Now())
	assert.ErrorContains(t, err, "no lanes")
}

func TestEngineCountsByLane(t *testing.T) {
	e := newTestEngine(t, nil)
	t0 := time.Date(2026, 8, 30, 8, 0, 0, 0, time.UTC)

	result := e.ProcessFrame([]Observation{
		obs(1, ClassCar, 50, 100),
		obs(2, ClassCar, 50, 300),
		obs(3, ClassBus, 150, 200),
		obs(4, ClassCar, 500, 500), // outside every lane
	}, t0)

	assert.Equal(t, int64(1), result.FrameID)
	assert.Equal(t, map[int]int{1: 2, 2: 1}, result.LaneTotals)

	snap := e.Snapshot()
	assert.Equal(t, 3, snap.VehicleCount)

	// The out-of-lane vehicle stays out of lane metrics but still counts as
	// a distinct track for the session.
	assert.Equal(t, 4, snap.Session.DistinctTracks)

	require.Len(t, snap.Lanes, 2)
	want := LaneReport{
		LaneID:        1,
		Counts:        map[VehicleClass]int{ClassCar: 2},
		Total:         2,
		Level:         GradeOccupancy(2),
		TrendGlyph:    TrendStableGlyph,
		TrendASCII:    TrendStableASCII,
		FlowPerMinute: 2,
		Status:        "CLEAR",
	}
	if diff := cmp.Diff(want, snap.Lanes[0]); diff != "" {
		t.Errorf("lane 1 report mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, map[VehicleClass]int{ClassBus: 1}, snap.Lanes[1].Counts)
}

func TestEngineIgnoresUnknownClass(t *testing.T) {
	e := newTestEngine(t, nil)
	t0 := time.Date(2026, 8, 30, 8, 0, 0, 0, time.UTC)

	result := e.ProcessFrame([]Observation{
		obs(1, VehicleClass("dog"), 50, 100),
	}, t0)

	assert.Equal(t, map[int]int{1: 0, 2: 0}, result.LaneTotals)
	assert.Zero(t, e.Snapshot().Session.DistinctTracks)
}

func TestEngineSpeedViolation(t *testing.T) {
	e := newTestEngine(t, nil)
	t0 := time.Date(2026, 8, 30, 8, 0, 0, 0, time.UTC)

	// 350 px/s at 0.05 m/px is 63 km/h, over the default 50 limit. The first
	// frame has no displacement yet, so no violation fires until the second.
	result := e.ProcessFrame([]Observation{obs(7, ClassCar, 50, 20)}, t0)
	assert.Empty(t, result.Violations)

	result = e.ProcessFrame([]Observation{obs(7, ClassCar, 50, 370)}, t0.Add(time.Second))
	require.Len(t, result.Violations, 1)
	v := result.Violations[0]
	assert.Equal(t, int64(7), v.TrackID)
	assert.Equal(t, 1, v.Lane)
	assert.InDelta(t, 63.0, v.SpeedKmh, 1e-9)

	// Same speed band on the next frame stays silent.
	result = e.ProcessFrame([]Observation{obs(7, ClassCar, 50, 720)}, t0.Add(2*time.Second))
	assert.Empty(t, result.Violations)

	snap := e.Snapshot()
	assert.Len(t, snap.RecentViolations, 1)
	assert.Equal(t, int64(1), snap.Session.TotalViolations)
}

func TestEngineIncidentDetection(t *testing.T) {
	e := newTestEngine(t, nil)
	t0 := time.Date(2026, 8, 30, 8, 0, 0, 0, time.UTC)

	// A vehicle parked in lane 1 for the default 5 s timeout.
	for i := 0; i < 5; i++ {
		result := e.ProcessFrame([]Observation{obs(9, ClassCar, 50, 100)}, t0.Add(time.Duration(i)*time.Second))
		assert.Empty(t, result.Incidents, "frame at t+%ds", i)
	}

	result := e.ProcessFrame([]Observation{obs(9, ClassCar, 50, 100)}, t0.Add(5*time.Second))
	require.Len(t, result.Incidents, 1)
	inc := result.Incidents[0]
	assert.Equal(t, int64(9), inc.TrackID)
	assert.Equal(t, 1, inc.Lane)
	assert.InDelta(t, 5.0, inc.Duration, 1e-9)

	snap := e.Snapshot()
	require.Len(t, snap.Incidents, 1)
	assert.Equal(t, int64(1), snap.Session.TotalIncidents)
}

func TestEngineEmergencyLastWriteWins(t *testing.T) {
	e := newTestEngine(t, nil)
	t0 := time.Date(2026, 8, 30, 8, 0, 0, 0, time.UTC)

	frame := func(y float64) []Observation {
		return []Observation{
			obs(1, ClassBus, 50, y),
			obs(2, ClassBus, 150, y),
		}
	}

	// First frame establishes history; both buses then move at 63 km/h.
	e.ProcessFrame(frame(20), t0)
	e.ProcessFrame(frame(370), t0.Add(time.Second))

	snap := e.Snapshot()
	assert.True(t, snap.Emergency.Active)
	assert.Equal(t, 2, snap.Emergency.Lane)
}

func TestEngineHistoryRing(t *testing.T) {
	e := newTestEngine(t, func(c *Config) {
		c.HistorySampleEvery = intPtr(2)
		c.HistoryRingSize = intPtr(3)
	})
	t0 := time.Date(2026, 8, 30, 8, 0, 0, 0, time.UTC)

	for i := 0; i < 8; i++ {
		e.ProcessFrame([]Observation{obs(1, ClassCar, 50, 100)}, t0.Add(time.Duration(i)*time.Second))
	}

	// Samples land on frames 2, 4, 6, 8; the ring keeps the newest three.
	history := e.History()
	require.Len(t, history, 3)
	assert.Equal(t, t0.Add(3*time.Second), history[0].At)
	assert.Equal(t, t0.Add(7*time.Second), history[2].At)
	assert.Equal(t, map[int]int{1: 1, 2: 0}, history[2].LaneTotals)
}

func TestEngineFPS(t *testing.T) {
	e := newTestEngine(t, nil)
	t0 := time.Date(2026, 8, 30, 8, 0, 0, 0, time.UTC)

	e.ProcessFrame(nil, t0)
	assert.Zero(t, e.Snapshot().FPS)

	e.ProcessFrame(nil, t0.Add(500*time.Millisecond))
	assert.InDelta(t, 2.0, e.Snapshot().FPS, 1e-9)
}

func TestEngineSnapshotIsolation(t *testing.T) {
	e := newTestEngine(t, nil)
	t0 := time.Date(2026, 8, 30, 8, 0, 0, 0, time.UTC)

	e.ProcessFrame([]Observation{obs(1, ClassCar, 50, 100)}, t0)
	before := e.Snapshot()

	e.ProcessFrame([]Observation{obs(1, ClassCar, 50, 100), obs(2, ClassCar, 150, 100)}, t0.Add(time.Second))

	// The earlier snapshot is a stable copy, untouched by later frames.
	assert.Equal(t, int64(1), before.FrameID)
	assert.Equal(t, 1, before.VehicleCount)
	assert.Equal(t, int64(2), e.Snapshot().FrameID)
	assert.Equal(t, 2, e.Snapshot().VehicleCount)
}

func TestEngineSignalFollowsDemand(t *testing.T) {
	e := newTestEngine(t, nil)
	t0 := time.Date(2026, 8, 30, 8, 0, 0, 0, time.UTC)

	// Six cars parked across lane 1 give an 18 s phase (6 vehicles by 3 s).
	var frame []Observation
	for i := 0; i < 6; i++ {
		frame = append(frame, obs(int64(i+1), ClassCar, 50, float64(30+i*60)))
	}

	e.ProcessFrame(frame, t0)
	snap := e.Snapshot()
	assert.Equal(t, 1, snap.Signal.ActiveLane)
	assert.InDelta(t, 18.0, snap.Signal.PhaseSeconds, 1e-9)

	// When the phase expires the green moves on to lane 2.
	result := e.ProcessFrame(frame, t0.Add(18*time.Second))
	assert.True(t, result.Signal.Advanced)
	assert.Equal(t, 2, e.Snapshot().Signal.ActiveLane)
}
