// Package traffic implements the lane-analytics and signal-priority core of
// junction.report. An upstream detector/tracker supplies one list of tracked
// vehicle observations per video frame; this package turns that stream into
// per-lane occupancy, flow, congestion and trend metrics, detects stopped
// vehicles and speed violations, and drives an adaptive signal controller
// that decides which lane holds the green phase.
//
// The whole core is single-threaded: exactly one goroutine calls
// Engine.ProcessFrame, in frame order, with strictly increasing timestamps.
// Derived state is published to concurrent readers through an atomically
// swapped snapshot (see Engine.Snapshot).
package traffic

import "math"

// VehicleClass is a class label from the upstream tracker's fixed vocabulary.
type VehicleClass string

const (
	ClassCar       VehicleClass = "car"
	ClassBus       VehicleClass = "bus"
	ClassTruck     VehicleClass = "truck"
	ClassMotorbike VehicleClass = "motorbike"
)

// TrackedClasses lists every class the core accounts for, in display order.
var TrackedClasses = []VehicleClass{ClassCar, ClassBus, ClassTruck, ClassMotorbike}

// IsTracked reports whether c is one of the known vehicle classes.
func (c VehicleClass) IsTracked() bool {
	switch c {
	case ClassCar, ClassBus, ClassTruck, ClassMotorbike:
		return true
	}
	return false
}

// Point is a pixel position in the camera frame.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DistanceTo returns the Euclidean distance to p in pixels.
func (a Point) DistanceTo(p Point) float64 {
	return math.Hypot(a.X-p.X, a.Y-p.Y)
}

// Rect is an axis-aligned rectangle in pixel coordinates with X1 <= X2 and
// Y1 <= Y2.
type Rect struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Contains reports whether p lies inside the rectangle, edges inclusive.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X1 && p.X <= r.X2 && p.Y >= r.Y1 && p.Y <= r.Y2
}

// Center returns the rectangle's centroid.
func (r Rect) Center() Point {
	return Point{X: (r.X1 + r.X2) / 2, Y: (r.Y1 + r.Y2) / 2}
}

// Valid reports whether the rectangle has positive area.
func (r Rect) Valid() bool {
	return r.X2 > r.X1 && r.Y2 > r.Y1
}

// Observation is a single tracked vehicle in one frame, as handed over by the
// upstream tracker. Observations are transient; nothing retains them past the
// frame they arrive in.
type Observation struct {
	TrackID int64        `json:"track_id"`
	Class   VehicleClass `json:"class"`
	Box     Rect         `json:"bbox"`
}

// Centroid returns the centre of the observation's bounding box.
func (o Observation) Centroid() Point {
	return o.Box.Center()
}
