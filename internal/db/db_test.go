package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/junction.report/internal/traffic"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := NewDB(path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRecordViolation(t *testing.T) {
	db := newTestDB(t)

	now := time.Now().UTC()
	err := db.RecordViolation(traffic.Violation{
		Timestamp: now,
		FrameID:   42,
		TrackID:   7,
		Lane:      2,
		SpeedKmh:  63.5,
		Class:     traffic.ClassCar,
	})
	require.NoError(t, err)

	rows, err := db.RecentViolations(1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(42), rows[0].FrameID)
	assert.Equal(t, int64(7), rows[0].TrackID)
	assert.Equal(t, 2, rows[0].Lane)
	assert.InDelta(t, 63.5, rows[0].SpeedKmh, 1e-9)
	assert.Equal(t, "car", rows[0].Class)
}

func TestRecentViolationsExcludesOld(t *testing.T) {
	db := newTestDB(t)

	old := time.Now().UTC().Add(-72 * time.Hour)
	err := db.RecordViolation(traffic.Violation{
		Timestamp: old,
		FrameID:   1,
		TrackID:   1,
		Lane:      1,
		SpeedKmh:  70,
		Class:     traffic.ClassTruck,
	})
	require.NoError(t, err)

	rows, err := db.RecentViolations(1)
	require.NoError(t, err)
	assert.Empty(t, rows)

	rows, err = db.RecentViolations(7)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestRecordIncident(t *testing.T) {
	db := newTestDB(t)

	inc := traffic.Incident{
		TrackID:  11,
		Lane:     3,
		Position: traffic.Point{X: 120, Y: 340},
		Duration: 6.2,
	}
	require.NoError(t, db.RecordIncident(100, inc, time.Now().UTC()))

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM incidents`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestLaneRollups(t *testing.T) {
	db := newTestDB(t)

	now := time.Now().UTC()
	for i, total := range []int{2, 4, 6} {
		err := db.RecordLaneSample(int64(i), traffic.LaneReport{
			LaneID:        1,
			Total:         total,
			Level:         traffic.GradeOccupancy(total),
			FlowPerMinute: float64(total) * 2,
		}, now)
		require.NoError(t, err)
	}

	rollups, err := db.LaneRollups(1)
	require.NoError(t, err)
	require.Len(t, rollups, 1)
	assert.Equal(t, 1, rollups[0].LaneID)
	assert.Equal(t, int64(3), rollups[0].Samples)
	assert.InDelta(t, 4.0, rollups[0].AvgOccupancy, 1e-9)
	assert.Equal(t, int64(6), rollups[0].MaxOccupancy)
	assert.InDelta(t, 8.0, rollups[0].AvgFlow, 1e-9)
}

func TestSessionLifecycle(t *testing.T) {
	db := newTestDB(t)

	started := time.Now().UTC().Add(-time.Minute)
	id, err := db.StartSession(started)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	summary := traffic.SessionSummary{
		Start:           started,
		DistinctTracks:  17,
		PeakOccupancy:   9,
		PeakAt:          started.Add(30 * time.Second),
		TotalIncidents:  1,
		TotalViolations: 4,
	}
	require.NoError(t, db.FinishSession(id, summary, time.Now().UTC()))

	var tracks, peak, violations int64
	err = db.QueryRow(
		`SELECT distinct_tracks, peak_occupancy, total_violations FROM sessions WHERE session_id = ?`, id,
	).Scan(&tracks, &peak, &violations)
	require.NoError(t, err)
	assert.Equal(t, int64(17), tracks)
	assert.Equal(t, int64(9), peak)
	assert.Equal(t, int64(4), violations)
}

func TestFinishUnknownSession(t *testing.T) {
	db := newTestDB(t)

	err := db.FinishSession("no-such-session", traffic.SessionSummary{}, time.Now().UTC())
	assert.Error(t, err)
}
