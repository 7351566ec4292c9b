package traffic

import (
	"time"

	"github.com/banshee-data/junction.report/internal/units"
)

// DefaultPositionHistoryDepth is the per-vehicle sample cap. Eight samples at
// typical frame cadence spans roughly a quarter second to a second of travel,
// enough displacement to average out per-frame detector jitter.
const DefaultPositionHistoryDepth = 8

type positionSample struct {
	pos Point
	at  time.Time
}

// PositionHistory keeps a bounded FIFO of centroid samples per track for
// speed estimation.
//
// The estimate is deliberately low-pass: it divides the displacement between
// the oldest and newest retained samples by the elapsed time between them, so
// a vehicle's reported speed lags rapid changes by up to the window depth.
// That smoothing is the point — raw frame-to-frame deltas are dominated by
// bounding-box jitter.
type PositionHistory struct {
	depth          int
	metersPerPixel float64
	samples        map[int64][]positionSample
}

// NewPositionHistory creates a history with the given per-track depth and
// linear pixel scale.
func NewPositionHistory(depth int, metersPerPixel float64) *PositionHistory {
	if depth < 2 {
		depth = DefaultPositionHistoryDepth
	}
	return &PositionHistory{
		depth:          depth,
		metersPerPixel: metersPerPixel,
		samples:        make(map[int64][]positionSample),
	}
}

// Observe appends one centroid sample for the track, trimming the FIFO to the
// configured depth.
func (ph *PositionHistory) Observe(trackID int64, p Point, now time.Time) {
	s := append(ph.samples[trackID], positionSample{pos: p, at: now})
	if len(s) > ph.depth {
		s = s[len(s)-ph.depth:]
	}
	ph.samples[trackID] = s
}

// SpeedKmh returns the window-averaged speed estimate for the track in km/h.
// Tracks with fewer than two samples, or with non-positive elapsed time
// between oldest and newest sample, report 0.
func (ph *PositionHistory) SpeedKmh(trackID int64) float64 {
	s := ph.samples[trackID]
	if len(s) < 2 {
		return 0
	}
	oldest, newest := s[0], s[len(s)-1]
	distPx := oldest.pos.DistanceTo(newest.pos)
	return units.KmhFromPixels(distPx, ph.metersPerPixel, newest.at.Sub(oldest.at))
}

// Evict drops sample histories for tracks no longer active.
func (ph *PositionHistory) Evict(active map[int64]bool) {
	for id := range ph.samples {
		if !active[id] {
			delete(ph.samples, id)
		}
	}
}

// Len returns how many tracks currently have history. Used by tests and the
// debug surface.
func (ph *PositionHistory) Len() int { return len(ph.samples) }
