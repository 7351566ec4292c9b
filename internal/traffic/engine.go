package traffic

import (
	"fmt"
	"sync"
	"time"
)

// recentViolationTail bounds the violations list carried in the snapshot.
const recentViolationTail = 10

// FrameResult is what one frame produced, handed back to the caller for
// persistence and logging. The engine itself never touches I/O.
type FrameResult struct {
	FrameID    int64
	Violations []Violation
	Incidents  []Incident
	LaneTotals map[int]int
	Signal     SignalEvents
}

// Engine is the per-frame pipeline tying the analytics components together.
//
// Exactly one goroutine may call ProcessFrame, in frame order, with strictly
// increasing timestamps; the rolling windows and phase timers are corrupted
// by reordered input. Snapshot and History are safe to call from any
// goroutine and never block the processing path beyond the snapshot swap.
type Engine struct {
	cfg *Config

	lanes     *LaneIndex
	history   *PositionHistory
	incidents *IncidentDetector
	trend     *TrendTracker
	flow      *FlowTracker
	camera    *SpeedCamera
	emergency *EmergencyClassifier
	signal    *SignalController
	session   *SessionStats

	frameID     int64
	lastFrameAt time.Time
	violTail    []Violation

	mu   sync.RWMutex
	snap Snapshot
	ring []HistorySample
}

// NewEngine validates the configuration and builds the pipeline. A config
// that fails validation is a startup-fatal condition: the engine refuses to
// run rather than degrade silently.
func NewEngine(cfg *Config, start time.Time) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("traffic engine config: %w", err)
	}

	lanes := NewLaneIndex(cfg.LaneRects)
	laneIDs := make([]int, lanes.Count())
	for i := range laneIDs {
		laneIDs[i] = i + 1
	}

	return &Engine{
		cfg:       cfg,
		lanes:     lanes,
		history:   NewPositionHistory(cfg.GetPositionHistoryDepth(), cfg.GetMetersPerPixel()),
		incidents: NewIncidentDetector(cfg.GetIncidentTolerancePx(), cfg.GetIncidentTimeout()),
		trend:     NewTrendTracker(cfg.GetTrendWindow(), cfg.GetTrendThreshold()),
		flow:      NewFlowTracker(cfg.GetFlowHorizon()),
		camera:    NewSpeedCamera(cfg.GetSpeedLimitKmh()),
		emergency: NewEmergencyClassifier(cfg.GetEmergencyClasses(), cfg.GetEmergencySpeedKmh()),
		signal:    NewSignalController(SignalConfigFrom(cfg), laneIDs),
		session:   NewSessionStats(start),
	}, nil
}

// Lanes exposes the configured lanes for rendering collaborators.
func (e *Engine) Lanes() []Lane { return e.lanes.Lanes() }

// SpeedLimitKmh returns the configured speed-camera limit.
func (e *Engine) SpeedLimitKmh() float64 { return e.camera.LimitKmh() }

// Tuning returns the resolved configuration for the config debug surface.
func (e *Engine) Tuning() map[string]interface{} { return e.cfg.Effective() }

// ProcessFrame runs one frame of tracked observations through the full
// pipeline and publishes the resulting snapshot.
func (e *Engine) ProcessFrame(observations []Observation, now time.Time) FrameResult {
	e.frameID++

	active := make(map[int64]bool, len(observations))
	counts := make(map[int]map[VehicleClass]int, e.lanes.Count())
	for _, lane := range e.lanes.Lanes() {
		counts[lane.ID] = make(map[VehicleClass]int, len(TrackedClasses))
	}

	var frameIncidents []Incident
	var frameViolations []Violation
	emergencyLane := 0

	for _, obs := range observations {
		if !obs.Class.IsTracked() {
			continue
		}
		active[obs.TrackID] = true
		centroid := obs.Centroid()

		// Sticky lane resolution: a miss this frame falls back to the last
		// confirmed lane; a vehicle with neither stays out of lane-scoped
		// analytics but still counts toward session totals via active.
		lane := e.lanes.Resolve(obs.TrackID, centroid)

		e.history.Observe(obs.TrackID, centroid, now)
		speedKmh := e.history.SpeedKmh(obs.TrackID)

		if v := e.camera.Check(e.frameID, obs.TrackID, lane, speedKmh, obs.Class, now); v != nil {
			frameViolations = append(frameViolations, *v)
		}
		if e.emergency.Candidate(obs.Class, speedKmh, lane) {
			emergencyLane = lane // last write wins across candidates
		}

		if lane == 0 {
			continue
		}
		counts[lane][obs.Class]++
		e.flow.Record(lane, obs.TrackID, now)
		if e.incidents.Observe(obs.TrackID, centroid, lane, now) {
			frameIncidents = append(frameIncidents, Incident{
				TrackID:  obs.TrackID,
				Lane:     lane,
				Position: centroid,
				Duration: e.incidents.StillDuration(obs.TrackID, now).Seconds(),
			})
		}
	}

	e.lanes.Evict(active)
	e.history.Evict(active)
	e.incidents.Evict(active)
	e.camera.Evict(active)

	totals := make(map[int]int, len(counts))
	totalVehicles := 0
	for laneID, byClass := range counts {
		t := 0
		for _, n := range byClass {
			t += n
		}
		totals[laneID] = t
		totalVehicles += t
	}

	slopes := make(map[int]float64, len(totals))
	for _, lane := range e.lanes.Lanes() {
		e.trend.Record(lane.ID, totals[lane.ID])
		slopes[lane.ID] = e.trend.Slope(lane.ID)
	}

	sigStatus, sigEvents := e.signal.Update(SignalInput{
		Occupancy:     totals,
		Slope:         slopes,
		EmergencyLane: emergencyLane,
	}, now)

	e.session.FoldFrame(active, totalVehicles, len(frameIncidents), len(frameViolations), now)

	e.violTail = append(e.violTail, frameViolations...)
	if len(e.violTail) > recentViolationTail {
		e.violTail = e.violTail[len(e.violTail)-recentViolationTail:]
	}

	var fps float64
	if !e.lastFrameAt.IsZero() {
		if dt := now.Sub(e.lastFrameAt); dt > 0 {
			fps = 1 / dt.Seconds()
		}
	}
	e.lastFrameAt = now

	e.publish(counts, totals, slopes, frameIncidents, emergencyLane, sigStatus, fps, now)

	return FrameResult{
		FrameID:    e.frameID,
		Violations: frameViolations,
		Incidents:  frameIncidents,
		LaneTotals: totals,
		Signal:     sigEvents,
	}
}

// publish assembles the frame snapshot and swaps it in under one critical
// section, together with the history ring update, so readers observe either
// the fully-previous or fully-current frame.
func (e *Engine) publish(counts map[int]map[VehicleClass]int, totals map[int]int, slopes map[int]float64,
	incidents []Incident, emergencyLane int, sig SignalStatus, fps float64, now time.Time) {

	laneReports := make([]LaneReport, 0, e.lanes.Count())
	totalVehicles := 0
	for _, lane := range e.lanes.Lanes() {
		total := totals[lane.ID]
		totalVehicles += total
		laneReports = append(laneReports, LaneReport{
			LaneID:        lane.ID,
			Counts:        counts[lane.ID],
			Total:         total,
			Level:         GradeOccupancy(total),
			TrendGlyph:    e.trend.Label(lane.ID),
			TrendASCII:    e.trend.LabelASCII(lane.ID),
			TrendSign:     e.trend.Sign(lane.ID),
			Slope:         slopes[lane.ID],
			FlowPerMinute: e.flow.RatePerMinute(lane.ID, now),
			Status:        CongestionStatus(total),
		})
	}

	snap := Snapshot{
		FrameID:          e.frameID,
		Timestamp:        now,
		FPS:              fps,
		VehicleCount:     totalVehicles,
		Lanes:            laneReports,
		Incidents:        incidents,
		RecentViolations: append([]Violation(nil), e.violTail...),
		Emergency:        EmergencyState{Active: emergencyLane != 0, Lane: emergencyLane},
		Signal:           sig,
		Session:          e.session.Summary(),
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.snap = snap
	if e.frameID%int64(e.cfg.GetHistorySampleEvery()) == 0 {
		ltCopy := make(map[int]int, len(totals))
		for k, v := range totals {
			ltCopy[k] = v
		}
		e.ring = append(e.ring, HistorySample{At: now, LaneTotals: ltCopy})
		if size := e.cfg.GetHistoryRingSize(); len(e.ring) > size {
			e.ring = e.ring[len(e.ring)-size:]
		}
	}
}

// Snapshot returns the most recently published frame state. Safe for
// concurrent use; the returned value's nested data is immutable.
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snap
}

// History returns a copy of the occupancy history ring, oldest first.
func (e *Engine) History() []HistorySample {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]HistorySample(nil), e.ring...)
}

// SessionSummary returns the session counters, for the shutdown report.
func (e *Engine) SessionSummary() SessionSummary {
	return e.session.Summary()
}
