package traffic

import (
	"fmt"
	"time"

	"github.com/banshee-data/junction.report/internal/monitoring"
)

// TrimKind identifies which preemption rule shortened the active phase.
type TrimKind string

const (
	TrimEmergency  TrimKind = "emergency"
	TrimCongestion TrimKind = "congestion"
)

// SignalConfig holds the controller tunables, extracted from Config so the
// controller can be constructed and tested without a full core config.
type SignalConfig struct {
	PhaseMinSeconds        int
	PhaseMaxSeconds        int
	EmergencyTrimSeconds   int
	EmergencyFloorSeconds  int
	CongestionTrimSeconds  int
	CongestionFloorSeconds int
	Cooldown               time.Duration
	MinHold                time.Duration
	ClearThreshold         int
	BacklogThreshold       int
	StarvationCeiling      time.Duration
	WaitScale              float64
}

// SignalConfigFrom extracts the controller tunables from a core config.
func SignalConfigFrom(c *Config) SignalConfig {
	return SignalConfig{
		PhaseMinSeconds:        c.GetPhaseMinSeconds(),
		PhaseMaxSeconds:        c.GetPhaseMaxSeconds(),
		EmergencyTrimSeconds:   c.GetEmergencyTrimSeconds(),
		EmergencyFloorSeconds:  c.GetEmergencyFloorSeconds(),
		CongestionTrimSeconds:  c.GetCongestionTrimSeconds(),
		CongestionFloorSeconds: c.GetCongestionFloorSeconds(),
		Cooldown:               c.GetTrimCooldown(),
		MinHold:                c.GetMinHold(),
		ClearThreshold:         c.GetClearThreshold(),
		BacklogThreshold:       c.GetBacklogThreshold(),
		StarvationCeiling:      c.GetStarvationCeiling(),
		WaitScale:              c.GetWaitScale(),
	}
}

// SignalInput is the per-frame demand picture the controller decides on.
type SignalInput struct {
	// Occupancy and Slope are keyed by lane ID. Missing lanes read as zero.
	Occupancy map[int]int
	Slope     map[int]float64

	// EmergencyLane is the lane of an emergency candidate this frame, or 0.
	EmergencyLane int
}

// SignalStatus is the published phase state after one controller update.
type SignalStatus struct {
	ActiveLane       int     `json:"active_lane"`
	RemainingSeconds float64 `json:"remaining_seconds"`
	PhaseSeconds     float64 `json:"phase_seconds"`

	// EstimatedWaitSeconds maps each waiting lane to a rough wait estimate:
	// the active phase's remainder plus the estimated durations of the lanes
	// between, in cyclic index order. Advancement is priority-driven, so this
	// is a display heuristic, not a guarantee.
	EstimatedWaitSeconds map[int]float64 `json:"estimated_wait_seconds"`
}

// SignalEvents reports what the controller did during one update.
type SignalEvents struct {
	Advanced       bool
	Trim           TrimKind // empty when no trim fired
	TrimCutSeconds int
}

// priority is a comparison outcome for lane selection. A forced outcome
// (starvation override) ranks above every numeric score; among two forced or
// two unforced outcomes the larger score wins. Using a tag instead of an
// infinite float keeps the comparison unambiguous.
type priority struct {
	forced bool
	score  float64
}

func (p priority) beats(q priority) bool {
	if p.forced != q.forced {
		return p.forced
	}
	return p.score > q.score
}

// SignalController owns the signal phase state machine. Exactly one lane is
// active at any time; the rest wait. There is no terminal state — the
// controller runs until the host process halts.
//
// The controller is not safe for concurrent use; like the rest of the core it
// is driven by the single engine goroutine.
type SignalController struct {
	cfg     SignalConfig
	laneIDs []int

	initialised   bool
	active        int
	phaseStart    time.Time
	phaseDuration time.Duration

	// lastAdjust is the shared trim cooldown clock. The zero value means the
	// cooldown is open; it is reset to zero on every phase advance.
	lastAdjust time.Time

	lastGreen map[int]time.Time
}

// NewSignalController creates a controller over the given lanes. The first
// lane becomes active on the first Update, with a duration computed from its
// occupancy and trend at that moment.
func NewSignalController(cfg SignalConfig, laneIDs []int) *SignalController {
	if len(laneIDs) == 0 {
		panic("traffic: signal controller requires at least one lane")
	}
	return &SignalController{
		cfg:       cfg,
		laneIDs:   append([]int(nil), laneIDs...),
		lastGreen: make(map[int]time.Time),
	}
}

// ActiveLane returns the currently active lane ID, or 0 before the first
// update.
func (sc *SignalController) ActiveLane() int { return sc.active }

// phaseFor computes a phase duration from a lane's occupancy and trend
// slope: 3 seconds per queued vehicle, nudged by about 4 seconds per slope
// unit, clamped to the configured bounds.
func (sc *SignalController) phaseFor(occupancy int, slope float64) time.Duration {
	s := occupancy*3 + int(slope*4)
	if s < sc.cfg.PhaseMinSeconds {
		s = sc.cfg.PhaseMinSeconds
	}
	if s > sc.cfg.PhaseMaxSeconds {
		s = sc.cfg.PhaseMaxSeconds
	}
	return time.Duration(s) * time.Second
}

// waited returns how long the lane has gone without green. A lane that has
// never held green reads as exactly the starvation ceiling, which forces it
// to the front the first time it competes.
func (sc *SignalController) waited(lane int, now time.Time) time.Duration {
	green, ok := sc.lastGreen[lane]
	if !ok {
		return sc.cfg.StarvationCeiling
	}
	return now.Sub(green)
}

func (sc *SignalController) priorityOf(lane int, in SignalInput, now time.Time) priority {
	waited := sc.waited(lane, now)
	if waited >= sc.cfg.StarvationCeiling {
		return priority{forced: true}
	}
	score := float64(in.Occupancy[lane]) +
		2*in.Slope[lane] +
		waited.Seconds()/sc.cfg.WaitScale
	return priority{score: score}
}

// nextLane selects the waiting lane to receive green. Ties break to the
// first maximum in lane-ID order; with a single waiting lane the scores are
// irrelevant. Selection among equal scores is therefore iteration-order
// dependent, which is documented behaviour.
func (sc *SignalController) nextLane(in SignalInput, now time.Time) int {
	best := 0
	var bestPrio priority
	for _, lane := range sc.laneIDs {
		if lane == sc.active {
			continue
		}
		p := sc.priorityOf(lane, in, now)
		if best == 0 || p.beats(bestPrio) {
			best = lane
			bestPrio = p
		}
	}
	if best == 0 {
		// Single-lane configuration: the active lane is the only candidate.
		return sc.active
	}
	return best
}

// checkInvariants panics on states that cannot arise from correct logic.
func (sc *SignalController) checkInvariants() {
	valid := false
	for _, lane := range sc.laneIDs {
		if lane == sc.active {
			valid = true
			break
		}
	}
	if !valid {
		panic(fmt.Sprintf("traffic: active lane %d not in configured lanes %v", sc.active, sc.laneIDs))
	}
	min := time.Duration(sc.cfg.PhaseMinSeconds) * time.Second
	max := time.Duration(sc.cfg.PhaseMaxSeconds) * time.Second
	if sc.phaseDuration < min || sc.phaseDuration > max {
		panic(fmt.Sprintf("traffic: phase duration %v outside bounds [%v, %v]", sc.phaseDuration, min, max))
	}
}

// startPhase switches green to the lane and derives its duration from the
// frame's demand picture.
func (sc *SignalController) startPhase(lane int, in SignalInput, now time.Time) {
	sc.active = lane
	sc.lastGreen[lane] = now
	sc.phaseStart = now
	sc.phaseDuration = sc.phaseFor(in.Occupancy[lane], in.Slope[lane])
	sc.lastAdjust = time.Time{} // cooldown fully reset for the new phase
	sc.checkInvariants()
}

func (sc *SignalController) cooldownOpen(now time.Time) bool {
	return sc.lastAdjust.IsZero() || now.Sub(sc.lastAdjust) >= sc.cfg.Cooldown
}

// Update advances the state machine by one frame. Trims and phase advances
// both happen here; trims only ever shorten the remaining time, and the
// emergency trim takes precedence when both rules qualify in the same check.
func (sc *SignalController) Update(in SignalInput, now time.Time) (SignalStatus, SignalEvents) {
	var events SignalEvents

	if !sc.initialised {
		sc.initialised = true
		sc.startPhase(sc.laneIDs[0], in, now)
	}

	elapsed := now.Sub(sc.phaseStart)
	remaining := sc.phaseDuration - elapsed
	if remaining < 0 {
		remaining = 0
	}

	if trim, cut := sc.maybeTrim(in, elapsed, remaining, now); trim != "" {
		events.Trim = trim
		events.TrimCutSeconds = cut
		remaining = sc.phaseDuration - elapsed
		monitoring.Logf("signal: %s trim on lane %d, %ds cut, %.0fs remaining",
			trim, sc.active, cut, remaining.Seconds())
	}

	if elapsed >= sc.phaseDuration {
		next := sc.nextLane(in, now)
		sc.startPhase(next, in, now)
		events.Advanced = true
		elapsed = 0
		remaining = sc.phaseDuration
		monitoring.Logf("signal: lane %d green for %.0fs", sc.active, sc.phaseDuration.Seconds())
	}

	return SignalStatus{
		ActiveLane:           sc.active,
		RemainingSeconds:     remaining.Seconds(),
		PhaseSeconds:         sc.phaseDuration.Seconds(),
		EstimatedWaitSeconds: sc.estimateWaits(in, remaining),
	}, events
}

// maybeTrim applies at most one preemption rule against the shared cooldown.
// Returns the rule fired and the seconds actually cut, or ("", 0).
func (sc *SignalController) maybeTrim(in SignalInput, elapsed, remaining time.Duration, now time.Time) (TrimKind, int) {
	if !sc.cooldownOpen(now) {
		return "", 0
	}

	if in.EmergencyLane != 0 && in.EmergencyLane != sc.active {
		floor := time.Duration(sc.cfg.EmergencyFloorSeconds) * time.Second
		cut := time.Duration(sc.cfg.EmergencyTrimSeconds) * time.Second
		if newRemaining := maxDuration(floor, remaining-cut); newRemaining < remaining {
			sc.phaseDuration = elapsed + newRemaining
			sc.lastAdjust = now
			return TrimEmergency, int((remaining - newRemaining).Seconds())
		}
		return "", 0
	}

	floor := time.Duration(sc.cfg.CongestionFloorSeconds) * time.Second
	if elapsed < sc.cfg.MinHold || remaining <= floor {
		return "", 0
	}
	if in.Occupancy[sc.active] > sc.cfg.ClearThreshold {
		return "", 0
	}
	backlog := 0
	for _, lane := range sc.laneIDs {
		if lane != sc.active && in.Occupancy[lane] > backlog {
			backlog = in.Occupancy[lane]
		}
	}
	if backlog < sc.cfg.BacklogThreshold {
		return "", 0
	}
	cut := time.Duration(sc.cfg.CongestionTrimSeconds) * time.Second
	if newRemaining := maxDuration(floor, remaining-cut); newRemaining < remaining {
		sc.phaseDuration = elapsed + newRemaining
		sc.lastAdjust = now
		return TrimCongestion, int((remaining - newRemaining).Seconds())
	}
	return "", 0
}

// estimateWaits walks the lane ring from the active lane, accumulating
// estimated phase durations, to give each waiting lane a rough red time.
func (sc *SignalController) estimateWaits(in SignalInput, remaining time.Duration) map[int]float64 {
	waits := make(map[int]float64, len(sc.laneIDs)-1)

	activeIdx := 0
	for i, lane := range sc.laneIDs {
		if lane == sc.active {
			activeIdx = i
			break
		}
	}

	for i, lane := range sc.laneIDs {
		if lane == sc.active {
			continue
		}
		wait := remaining
		for j := (activeIdx + 1) % len(sc.laneIDs); j != i; j = (j + 1) % len(sc.laneIDs) {
			between := sc.laneIDs[j]
			wait += sc.phaseFor(in.Occupancy[between], in.Slope[between])
		}
		waits[lane] = wait.Seconds()
	}
	return waits
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}
