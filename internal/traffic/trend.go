package traffic

import "gonum.org/v1/gonum/stat"

// Trend labels, human glyph form. The ASCII variants exist for sinks that
// cannot render Unicode arrows.
const (
	TrendRisingGlyph  = "↑" // ↑
	TrendFallingGlyph = "↓" // ↓
	TrendStableGlyph  = "→" // →

	TrendRisingASCII  = "^"
	TrendFallingASCII = "v"
	TrendStableASCII  = "-"
)

// TrendTracker keeps a rolling window of per-lane occupancy samples and fits
// a least-squares line through them. The window is sample-indexed, not
// time-indexed: one sample is appended per processed frame regardless of wall
// time, which keeps the slope unit (vehicles per sample) independent of frame
// rate.
type TrendTracker struct {
	window    int
	threshold float64
	samples   map[int][]float64
}

// NewTrendTracker creates a tracker with the given window size (samples) and
// slope threshold for calling a trend definite.
func NewTrendTracker(window int, threshold float64) *TrendTracker {
	return &TrendTracker{
		window:    window,
		threshold: threshold,
		samples:   make(map[int][]float64),
	}
}

// Record appends one occupancy sample for the lane, trimming to the window.
func (tt *TrendTracker) Record(lane int, occupancy int) {
	s := append(tt.samples[lane], float64(occupancy))
	if len(s) > tt.window {
		s = s[len(s)-tt.window:]
	}
	tt.samples[lane] = s
}

// Slope returns the least-squares regression slope of occupancy against
// sample index for the lane. Fewer than three samples yield 0 rather than an
// error: an empty or barely-started window has no trend.
func (tt *TrendTracker) Slope(lane int) float64 {
	s := tt.samples[lane]
	if len(s) < 3 {
		return 0
	}
	xs := make([]float64, len(s))
	for i := range xs {
		xs[i] = float64(i)
	}
	_, beta := stat.LinearRegression(xs, s, nil, false)
	return beta
}

// Sign returns the machine form of the trend: +1 rising, -1 falling, 0
// stable.
func (tt *TrendTracker) Sign(lane int) int {
	switch slope := tt.Slope(lane); {
	case slope > tt.threshold:
		return 1
	case slope < -tt.threshold:
		return -1
	default:
		return 0
	}
}

// Label returns the Unicode arrow for the lane's trend.
func (tt *TrendTracker) Label(lane int) string {
	switch tt.Sign(lane) {
	case 1:
		return TrendRisingGlyph
	case -1:
		return TrendFallingGlyph
	default:
		return TrendStableGlyph
	}
}

// LabelASCII returns the ASCII arrow for the lane's trend.
func (tt *TrendTracker) LabelASCII(lane int) string {
	switch tt.Sign(lane) {
	case 1:
		return TrendRisingASCII
	case -1:
		return TrendFallingASCII
	default:
		return TrendStableASCII
	}
}
