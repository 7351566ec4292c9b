package traffic

import "time"

// Violation is one de-duplicated speed-camera event.
type Violation struct {
	Timestamp time.Time    `json:"timestamp"`
	FrameID   int64        `json:"frame_id"`
	TrackID   int64        `json:"track_id"`
	Lane      int          `json:"lane"`
	SpeedKmh  float64      `json:"speed_kmh"`
	Class     VehicleClass `json:"class"`
}

// speedBucketWidth groups speeds into 10 km/h buckets for de-duplication.
const speedBucketWidth = 10

// SpeedCamera flags vehicles exceeding the configured limit. Events are
// de-duplicated per vehicle by speed bucket: a steady over-limit vehicle
// fires once, and fires again only when its speed crosses into a different
// bucket. A vehicle at 55 then 66 km/h produces two events; dropping back to
// 61 produces none, because 66 and 61 share bucket 6.
type SpeedCamera struct {
	limitKmh float64
	buckets  map[int64]int
}

// NewSpeedCamera creates a camera with the given speed limit in km/h.
func NewSpeedCamera(limitKmh float64) *SpeedCamera {
	return &SpeedCamera{
		limitKmh: limitKmh,
		buckets:  make(map[int64]int),
	}
}

// LimitKmh returns the configured limit.
func (sc *SpeedCamera) LimitKmh() float64 { return sc.limitKmh }

// Check evaluates one vehicle's estimated speed and returns a Violation when
// a new event should fire, or nil otherwise.
func (sc *SpeedCamera) Check(frameID, trackID int64, lane int, speedKmh float64, class VehicleClass, now time.Time) *Violation {
	if speedKmh <= sc.limitKmh {
		return nil
	}
	bucket := int(speedKmh) / speedBucketWidth
	if prev, ok := sc.buckets[trackID]; ok && prev == bucket {
		return nil
	}
	sc.buckets[trackID] = bucket
	return &Violation{
		Timestamp: now,
		FrameID:   frameID,
		TrackID:   trackID,
		Lane:      lane,
		SpeedKmh:  speedKmh,
		Class:     class,
	}
}

// Evict drops bucket state for tracks no longer active.
func (sc *SpeedCamera) Evict(active map[int64]bool) {
	for id := range sc.buckets {
		if !active[id] {
			delete(sc.buckets, id)
		}
	}
}

// EmergencyClassifier spots probable emergency vehicles: a vehicle whose
// class is in the configured large-vehicle set moving faster than the
// emergency threshold. The heuristic stands in for siren or livery detection,
// which the upstream tracker does not provide.
type EmergencyClassifier struct {
	classes      map[VehicleClass]bool
	thresholdKmh float64
}

// NewEmergencyClassifier creates a classifier for the given class set and
// speed threshold.
func NewEmergencyClassifier(classes []VehicleClass, thresholdKmh float64) *EmergencyClassifier {
	set := make(map[VehicleClass]bool, len(classes))
	for _, c := range classes {
		set[c] = true
	}
	return &EmergencyClassifier{classes: set, thresholdKmh: thresholdKmh}
}

// Candidate reports whether the vehicle qualifies as an emergency candidate.
// Vehicles without a resolved lane never qualify: the signal controller could
// not act on them anyway.
func (ec *EmergencyClassifier) Candidate(class VehicleClass, speedKmh float64, lane int) bool {
	return lane != 0 && ec.classes[class] && speedKmh > ec.thresholdKmh
}
