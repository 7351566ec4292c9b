package traffic

// ServiceLevel is a simplified Highway Capacity Manual level-of-service grade
// for a lane, derived purely from occupancy. Grades are recomputed fresh each
// frame with no hysteresis.
type ServiceLevel struct {
	Grade       string `json:"grade"`
	Color       string `json:"color"`
	Description string `json:"description"`
}

// GradeOccupancy maps a lane vehicle count onto its service level. Bounds are
// inclusive: 0-3 A, 4-6 B, 7-10 C, 11-15 D, 16-22 E, 23+ F.
func GradeOccupancy(count int) ServiceLevel {
	switch {
	case count <= 3:
		return ServiceLevel{Grade: "A", Color: "#4ade80", Description: "Free flow"}
	case count <= 6:
		return ServiceLevel{Grade: "B", Color: "#a3e635", Description: "Reasonable free flow"}
	case count <= 10:
		return ServiceLevel{Grade: "C", Color: "#facc15", Description: "Stable flow"}
	case count <= 15:
		return ServiceLevel{Grade: "D", Color: "#fb923c", Description: "Approaching unstable"}
	case count <= 22:
		return ServiceLevel{Grade: "E", Color: "#f87171", Description: "Unstable flow"}
	default:
		return ServiceLevel{Grade: "F", Color: "#dc2626", Description: "Forced / breakdown"}
	}
}

// CongestionStatus is the coarse display band for a lane total: CLEAR under
// 5 vehicles, MODERATE under 15, CONGESTED otherwise.
func CongestionStatus(count int) string {
	switch {
	case count < 5:
		return "CLEAR"
	case count < 15:
		return "MODERATE"
	default:
		return "CONGESTED"
	}
}
