package traffic

import (
	"time"
)

// SessionStats accumulates process-lifetime counters. All counters are
// monotone; the struct is owned by the engine goroutine and published to
// readers only through snapshot copies, so it carries no lock of its own.
type SessionStats struct {
	start time.Time

	seen       map[int64]bool
	peakCount  int
	peakAt     time.Time
	incidents  int64
	violations int64
}

// NewSessionStats starts a session at the given time.
func NewSessionStats(start time.Time) *SessionStats {
	return &SessionStats{
		start: start,
		seen:  make(map[int64]bool),
	}
}

// FoldFrame accumulates one frame's results: the active-id set, the frame's
// total occupancy, and the number of incidents and new violations.
func (ss *SessionStats) FoldFrame(active map[int64]bool, totalOccupancy int, incidents, violations int, now time.Time) {
	for id := range active {
		ss.seen[id] = true
	}
	if totalOccupancy > ss.peakCount {
		ss.peakCount = totalOccupancy
		ss.peakAt = now
	}
	ss.incidents += int64(incidents)
	ss.violations += int64(violations)
}

// SessionSummary is the read-only view of the session counters.
type SessionSummary struct {
	Start           time.Time `json:"start"`
	DistinctTracks  int       `json:"distinct_tracks"`
	PeakOccupancy   int       `json:"peak_occupancy"`
	PeakAt          time.Time `json:"peak_at"`
	TotalIncidents  int64     `json:"total_incidents"`
	TotalViolations int64     `json:"total_violations"`
}

// Summary returns the current counter values.
func (ss *SessionStats) Summary() SessionSummary {
	return SessionSummary{
		Start:           ss.start,
		DistinctTracks:  len(ss.seen),
		PeakOccupancy:   ss.peakCount,
		PeakAt:          ss.peakAt,
		TotalIncidents:  ss.incidents,
		TotalViolations: ss.violations,
	}
}
