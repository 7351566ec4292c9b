package traffic

import "time"

type flowEntry struct {
	trackID int64
	at      time.Time
}

// FlowTracker measures per-lane throughput as unique vehicles per minute over
// a sliding time window. Unlike the trend window this one is time-bounded:
// entries age out by wall clock, not by sample count. The two eviction
// policies are intentionally distinct and kept separate.
type FlowTracker struct {
	horizon time.Duration
	log     map[int][]flowEntry
}

// NewFlowTracker creates a tracker with the given time horizon.
func NewFlowTracker(horizon time.Duration) *FlowTracker {
	return &FlowTracker{
		horizon: horizon,
		log:     make(map[int][]flowEntry),
	}
}

// Record notes that the track was resolved into the lane this frame. A
// vehicle lingering across frames produces many entries but still counts once
// in RatePerMinute, which de-duplicates by track ID.
func (ft *FlowTracker) Record(lane int, trackID int64, now time.Time) {
	ft.log[lane] = append(ft.log[lane], flowEntry{trackID: trackID, at: now})
}

// RatePerMinute prunes entries older than the horizon and returns the number
// of distinct vehicles remaining, normalised to a per-minute rate. An empty
// window yields 0.
func (ft *FlowTracker) RatePerMinute(lane int, now time.Time) float64 {
	cutoff := now.Add(-ft.horizon)
	buf := ft.log[lane]

	drop := 0
	for drop < len(buf) && buf[drop].at.Before(cutoff) {
		drop++
	}
	if drop > 0 {
		buf = buf[drop:]
		ft.log[lane] = buf
	}
	if len(buf) == 0 {
		return 0
	}

	unique := make(map[int64]bool, len(buf))
	for _, e := range buf {
		unique[e.trackID] = true
	}
	return float64(len(unique)) / ft.horizon.Minutes()
}
