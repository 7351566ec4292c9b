package traffic

import "time"

// LaneReport is the published per-lane view for one frame.
type LaneReport struct {
	LaneID        int                  `json:"lane_id"`
	Counts        map[VehicleClass]int `json:"counts"`
	Total         int                  `json:"total"`
	Level         ServiceLevel         `json:"los"`
	TrendGlyph    string               `json:"trend"`
	TrendASCII    string               `json:"trend_ascii"`
	TrendSign     int                  `json:"trend_sign"`
	Slope         float64              `json:"trend_slope"`
	FlowPerMinute float64              `json:"flow_per_minute"`
	Status        string               `json:"status"`
}

// EmergencyState is the frame-level emergency signal. With multiple
// simultaneous candidates the lane is last-write-wins over the observation
// list — a documented non-determinism, not a defect.
type EmergencyState struct {
	Active bool `json:"active"`
	Lane   int  `json:"lane"`
}

// Snapshot is the complete derived state published after each frame. The
// engine builds a fresh Snapshot per frame and swaps it in under one lock,
// so a reader always observes a single frame's coherent state, never a mix
// of two. Nested maps and slices are never mutated after publication.
type Snapshot struct {
	FrameID      int64     `json:"frame_id"`
	Timestamp    time.Time `json:"timestamp"`
	FPS          float64   `json:"fps"`
	VehicleCount int       `json:"vehicle_count"`

	Lanes            []LaneReport   `json:"lanes"`
	Incidents        []Incident     `json:"incidents"`
	RecentViolations []Violation    `json:"recent_violations"`
	Emergency        EmergencyState `json:"emergency"`
	Signal           SignalStatus   `json:"signal"`
	Session          SessionSummary `json:"session"`
}

// HistorySample is one entry of the occupancy history ring backing the
// chart and history APIs.
type HistorySample struct {
	At         time.Time   `json:"t"`
	LaneTotals map[int]int `json:"lanes"`
}
