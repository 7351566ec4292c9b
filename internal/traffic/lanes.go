package traffic

// Lane is one configured monitoring region. Lanes are created at startup and
// never mutated afterwards. IDs are 1-based and assigned in configuration
// order.
type Lane struct {
	ID   int  `json:"id"`
	Rect Rect `json:"rect"`
}

// LaneIndex maps centroids to lanes and remembers each vehicle's last
// confirmed lane so that a vehicle briefly straddling a lane boundary does
// not flicker out of the statistics.
type LaneIndex struct {
	lanes []Lane

	// lastKnown carries the sticky lane assignment per track. Evicted
	// against the active-id set every frame to keep it bounded.
	lastKnown map[int64]int
}

// NewLaneIndex builds an index over the given rectangles. Rectangles are
// assumed non-overlapping; where they do overlap the lowest-indexed lane
// wins.
func NewLaneIndex(rects []Rect) *LaneIndex {
	lanes := make([]Lane, len(rects))
	for i, r := range rects {
		lanes[i] = Lane{ID: i + 1, Rect: r}
	}
	return &LaneIndex{
		lanes:     lanes,
		lastKnown: make(map[int64]int),
	}
}

// Lanes returns the configured lanes in ID order.
func (li *LaneIndex) Lanes() []Lane { return li.lanes }

// Count returns the number of configured lanes.
func (li *LaneIndex) Count() int { return len(li.lanes) }

// Locate returns the ID of the lowest-indexed lane containing p, or 0 when no
// lane contains it. Linear in the number of lanes.
func (li *LaneIndex) Locate(p Point) int {
	for _, lane := range li.lanes {
		if lane.Rect.Contains(p) {
			return lane.ID
		}
	}
	return 0
}

// Resolve locates the lane for a track's centroid this frame. A confirmed hit
// updates the sticky assignment; a miss falls back to the track's last known
// lane, which may still be 0 for a vehicle never seen inside any lane.
func (li *LaneIndex) Resolve(trackID int64, p Point) int {
	if id := li.Locate(p); id != 0 {
		li.lastKnown[trackID] = id
		return id
	}
	return li.lastKnown[trackID]
}

// Evict drops sticky assignments for tracks no longer reported by the
// tracker.
func (li *LaneIndex) Evict(active map[int64]bool) {
	for id := range li.lastKnown {
		if !active[id] {
			delete(li.lastKnown, id)
		}
	}
}
