// Package db persists analytics events — speed violations, incidents, lane
// rollups and session summaries — to a local SQLite database. Writes happen
// on the host's event loop, never inside the analytics core.
package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/junction.report/internal/traffic"
)

type DB struct {
	*sql.DB
}

// NewDB opens (creating if necessary) the database at path and ensures the
// baseline schema exists. Migrations beyond the baseline are applied
// separately via MigrateUp.
func NewDB(path string) (*DB, error) {
	sqldb, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = sqldb.Exec(`
		CREATE TABLE IF NOT EXISTS violations (
			frame_id          BIGINT,
			track_id          BIGINT,
			lane_id           BIGINT,
			speed_kmh         DOUBLE,
			class             TEXT,
			timestamp         TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS incidents (
			frame_id          BIGINT,
			track_id          BIGINT,
			lane_id           BIGINT,
			cx                DOUBLE,
			cy                DOUBLE,
			duration_seconds  DOUBLE,
			timestamp         TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS lane_samples (
			frame_id          BIGINT,
			lane_id           BIGINT,
			total             BIGINT,
			los_grade         TEXT,
			flow_per_minute   DOUBLE,
			trend_sign        BIGINT,
			timestamp         TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS sessions (
			session_id        TEXT PRIMARY KEY,
			started_at        TIMESTAMP,
			ended_at          TIMESTAMP,
			distinct_tracks   BIGINT,
			peak_occupancy    BIGINT,
			peak_at           TIMESTAMP,
			total_incidents   BIGINT,
			total_violations  BIGINT
		);
	`)
	if err != nil {
		return nil, err
	}

	return &DB{sqldb}, nil
}

// RecordViolation stores one de-duplicated speed-camera event.
func (db *DB) RecordViolation(v traffic.Violation) error {
	_, err := db.Exec(
		`INSERT INTO violations (frame_id, track_id, lane_id, speed_kmh, class, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		v.FrameID, v.TrackID, v.Lane, v.SpeedKmh, string(v.Class), v.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to record violation: %w", err)
	}
	return nil
}

// RecordIncident stores one stopped-vehicle report.
func (db *DB) RecordIncident(frameID int64, inc traffic.Incident, at time.Time) error {
	_, err := db.Exec(
		`INSERT INTO incidents (frame_id, track_id, lane_id, cx, cy, duration_seconds, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		frameID, inc.TrackID, inc.Lane, inc.Position.X, inc.Position.Y, inc.Duration, at,
	)
	if err != nil {
		return fmt.Errorf("failed to record incident: %w", err)
	}
	return nil
}

// RecordLaneSample stores one per-lane rollup row for offline analysis.
func (db *DB) RecordLaneSample(frameID int64, report traffic.LaneReport, at time.Time) error {
	_, err := db.Exec(
		`INSERT INTO lane_samples (frame_id, lane_id, total, los_grade, flow_per_minute, trend_sign, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		frameID, report.LaneID, report.Total, report.Level.Grade, report.FlowPerMinute, report.TrendSign, at,
	)
	if err != nil {
		return fmt.Errorf("failed to record lane sample: %w", err)
	}
	return nil
}

// StartSession creates a session row and returns its generated ID.
func (db *DB) StartSession(startedAt time.Time) (string, error) {
	id := uuid.NewString()
	_, err := db.Exec(
		`INSERT INTO sessions (session_id, started_at) VALUES (?, ?)`,
		id, startedAt,
	)
	if err != nil {
		return "", fmt.Errorf("failed to start session: %w", err)
	}
	return id, nil
}

// FinishSession closes a session row with the final counters.
func (db *DB) FinishSession(sessionID string, summary traffic.SessionSummary, endedAt time.Time) error {
	res, err := db.Exec(
		`UPDATE sessions SET ended_at = ?, distinct_tracks = ?, peak_occupancy = ?,
		 peak_at = ?, total_incidents = ?, total_violations = ?
		 WHERE session_id = ?`,
		endedAt, summary.DistinctTracks, summary.PeakOccupancy, summary.PeakAt,
		summary.TotalIncidents, summary.TotalViolations, sessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("unknown session %q", sessionID)
	}
	return nil
}

// ViolationRow is a persisted violation as returned by RecentViolations.
type ViolationRow struct {
	FrameID   int64     `json:"frame_id"`
	TrackID   int64     `json:"track_id"`
	Lane      int       `json:"lane"`
	SpeedKmh  float64   `json:"speed_kmh"`
	Class     string    `json:"class"`
	Timestamp time.Time `json:"timestamp"`
}

// RecentViolations returns violations recorded within the last `days` days,
// newest first.
func (db *DB) RecentViolations(days int) ([]ViolationRow, error) {
	rows, err := db.Query(
		`SELECT frame_id, track_id, lane_id, speed_kmh, class, timestamp
		 FROM violations
		 WHERE timestamp >= datetime('now', ?)
		 ORDER BY timestamp DESC`,
		fmt.Sprintf("-%d days", days),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query violations: %w", err)
	}
	defer rows.Close()

	var out []ViolationRow
	for rows.Next() {
		var v ViolationRow
		if err := rows.Scan(&v.FrameID, &v.TrackID, &v.Lane, &v.SpeedKmh, &v.Class, &v.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan violation: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// LaneRollup is an aggregate over persisted lane samples.
type LaneRollup struct {
	LaneID       int     `json:"lane_id"`
	Samples      int64   `json:"samples"`
	AvgOccupancy float64 `json:"avg_occupancy"`
	MaxOccupancy int64   `json:"max_occupancy"`
	AvgFlow      float64 `json:"avg_flow_per_minute"`
}

// LaneRollups aggregates lane samples recorded within the last `days` days.
func (db *DB) LaneRollups(days int) ([]LaneRollup, error) {
	rows, err := db.Query(
		`SELECT lane_id, COUNT(*), AVG(total), MAX(total), AVG(flow_per_minute)
		 FROM lane_samples
		 WHERE timestamp >= datetime('now', ?)
		 GROUP BY lane_id
		 ORDER BY lane_id`,
		fmt.Sprintf("-%d days", days),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query lane samples: %w", err)
	}
	defer rows.Close()

	var out []LaneRollup
	for rows.Next() {
		var r LaneRollup
		if err := rows.Scan(&r.LaneID, &r.Samples, &r.AvgOccupancy, &r.MaxOccupancy, &r.AvgFlow); err != nil {
			return nil, fmt.Errorf("failed to scan lane rollup: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
