package traffic

import "time"

// Incident describes a vehicle that has been stationary past the configured
// timeout. Position is the last observed centroid; Duration is how long the
// vehicle has been still.
type Incident struct {
	TrackID  int64   `json:"track_id"`
	Lane     int     `json:"lane"`
	Position Point   `json:"position"`
	Duration float64 `json:"duration_seconds"`
}

type incidentRecord struct {
	pos        Point
	stillSince time.Time
	lane       int
}

// IncidentDetector flags vehicles that stop moving. Each track is implicitly
// in one of two states, moving or stationary: the still-since clock starts
// when displacement first falls at or under the tolerance, and any qualifying
// movement resets the record immediately — there is no hysteresis on exit.
type IncidentDetector struct {
	tolerancePx float64
	timeout     time.Duration
	records     map[int64]*incidentRecord
}

// NewIncidentDetector creates a detector with the given movement tolerance
// (pixels) and stationary timeout.
func NewIncidentDetector(tolerancePx float64, timeout time.Duration) *IncidentDetector {
	return &IncidentDetector{
		tolerancePx: tolerancePx,
		timeout:     timeout,
		records:     make(map[int64]*incidentRecord),
	}
}

// Observe folds one frame's centroid for the track and reports whether the
// vehicle currently qualifies as an incident. The lane is recorded alongside
// so a stalled vehicle keeps its lane attribution even if the tracker later
// loses the lane fix.
func (d *IncidentDetector) Observe(trackID int64, p Point, lane int, now time.Time) bool {
	rec, ok := d.records[trackID]
	if !ok {
		d.records[trackID] = &incidentRecord{pos: p, stillSince: now, lane: lane}
		return false
	}
	if p.DistanceTo(rec.pos) > d.tolerancePx {
		// Vehicle moved: back to the moving state, clock restarts.
		rec.pos = p
		rec.stillSince = now
		rec.lane = lane
		return false
	}
	return now.Sub(rec.stillSince) >= d.timeout
}

// StillDuration returns how long the track has been stationary. Zero for
// unknown tracks.
func (d *IncidentDetector) StillDuration(trackID int64, now time.Time) time.Duration {
	rec, ok := d.records[trackID]
	if !ok {
		return 0
	}
	return now.Sub(rec.stillSince)
}

// Evict purges records for tracks absent from the active-id set.
func (d *IncidentDetector) Evict(active map[int64]bool) {
	for id := range d.records {
		if !active[id] {
			delete(d.records, id)
		}
	}
}
