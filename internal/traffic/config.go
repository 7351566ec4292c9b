package traffic

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config is the JSON-loadable tuning surface for the analytics core. All
// tunables are pointers so a partial config file overrides only what it
// names; the Get* accessors supply defaults for everything else. Lane
// rectangles are the one mandatory field — a core with no lanes has nothing
// to schedule, and Validate treats that as startup-fatal.
type Config struct {
	// Geometry and calibration
	LaneRects      []Rect   `json:"lanes"`
	MetersPerPixel *float64 `json:"meters_per_pixel,omitempty"`

	// Speed camera and emergency detection
	SpeedLimitKmh     *float64       `json:"speed_limit_kmh,omitempty"`
	EmergencySpeedKmh *float64       `json:"emergency_speed_kmh,omitempty"`
	EmergencyClasses  []VehicleClass `json:"emergency_classes,omitempty"`

	// Incident detection
	IncidentTimeoutSeconds *float64 `json:"incident_timeout_seconds,omitempty"`
	IncidentTolerancePx    *float64 `json:"incident_tolerance_px,omitempty"`

	// Windowed statistics
	TrendWindow          *int     `json:"trend_window,omitempty"`
	TrendThreshold       *float64 `json:"trend_threshold,omitempty"`
	FlowHorizonSeconds   *float64 `json:"flow_horizon_seconds,omitempty"`
	PositionHistoryDepth *int     `json:"position_history_depth,omitempty"`

	// Signal controller
	PhaseMinSeconds          *int     `json:"phase_min_seconds,omitempty"`
	PhaseMaxSeconds          *int     `json:"phase_max_seconds,omitempty"`
	EmergencyTrimSeconds     *int     `json:"emergency_trim_seconds,omitempty"`
	EmergencyFloorSeconds    *int     `json:"emergency_floor_seconds,omitempty"`
	CongestionTrimSeconds    *int     `json:"congestion_trim_seconds,omitempty"`
	CongestionFloorSeconds   *int     `json:"congestion_floor_seconds,omitempty"`
	TrimCooldownSeconds      *float64 `json:"trim_cooldown_seconds,omitempty"`
	MinHoldSeconds           *float64 `json:"min_hold_seconds,omitempty"`
	ClearThreshold           *int     `json:"clear_threshold,omitempty"`
	BacklogThreshold         *int     `json:"backlog_threshold,omitempty"`
	StarvationCeilingSeconds *float64 `json:"starvation_ceiling_seconds,omitempty"`
	WaitScale                *float64 `json:"wait_scale,omitempty"`

	// Reporting
	HistoryRingSize    *int `json:"history_ring_size,omitempty"`
	HistorySampleEvery *int `json:"history_sample_every,omitempty"`
}

func secs(f float64) time.Duration { return time.Duration(f * float64(time.Second)) }

// Accessors with defaults. Defaults follow the calibration of the first
// deployed intersection installation.

func (c *Config) GetMetersPerPixel() float64 {
	if c.MetersPerPixel != nil {
		return *c.MetersPerPixel
	}
	return 0.05
}

func (c *Config) GetSpeedLimitKmh() float64 {
	if c.SpeedLimitKmh != nil {
		return *c.SpeedLimitKmh
	}
	return 50
}

func (c *Config) GetEmergencySpeedKmh() float64 {
	if c.EmergencySpeedKmh != nil {
		return *c.EmergencySpeedKmh
	}
	return 40
}

func (c *Config) GetEmergencyClasses() []VehicleClass {
	if c.EmergencyClasses != nil {
		return c.EmergencyClasses
	}
	return []VehicleClass{ClassBus, ClassTruck}
}

func (c *Config) GetIncidentTimeout() time.Duration {
	if c.IncidentTimeoutSeconds != nil {
		return secs(*c.IncidentTimeoutSeconds)
	}
	return 5 * time.Second
}

func (c *Config) GetIncidentTolerancePx() float64 {
	if c.IncidentTolerancePx != nil {
		return *c.IncidentTolerancePx
	}
	return 15
}

func (c *Config) GetTrendWindow() int {
	if c.TrendWindow != nil {
		return *c.TrendWindow
	}
	return 20
}

func (c *Config) GetTrendThreshold() float64 {
	if c.TrendThreshold != nil {
		return *c.TrendThreshold
	}
	return 0.15
}

func (c *Config) GetFlowHorizon() time.Duration {
	if c.FlowHorizonSeconds != nil {
		return secs(*c.FlowHorizonSeconds)
	}
	return 60 * time.Second
}

func (c *Config) GetPositionHistoryDepth() int {
	if c.PositionHistoryDepth != nil {
		return *c.PositionHistoryDepth
	}
	return DefaultPositionHistoryDepth
}

func (c *Config) GetPhaseMinSeconds() int {
	if c.PhaseMinSeconds != nil {
		return *c.PhaseMinSeconds
	}
	return 15
}

func (c *Config) GetPhaseMaxSeconds() int {
	if c.PhaseMaxSeconds != nil {
		return *c.PhaseMaxSeconds
	}
	return 90
}

func (c *Config) GetEmergencyTrimSeconds() int {
	if c.EmergencyTrimSeconds != nil {
		return *c.EmergencyTrimSeconds
	}
	return 20
}

func (c *Config) GetEmergencyFloorSeconds() int {
	if c.EmergencyFloorSeconds != nil {
		return *c.EmergencyFloorSeconds
	}
	return 10
}

func (c *Config) GetCongestionTrimSeconds() int {
	if c.CongestionTrimSeconds != nil {
		return *c.CongestionTrimSeconds
	}
	return 10
}

func (c *Config) GetCongestionFloorSeconds() int {
	if c.CongestionFloorSeconds != nil {
		return *c.CongestionFloorSeconds
	}
	return 15
}

func (c *Config) GetTrimCooldown() time.Duration {
	if c.TrimCooldownSeconds != nil {
		return secs(*c.TrimCooldownSeconds)
	}
	return 25 * time.Second
}

func (c *Config) GetMinHold() time.Duration {
	if c.MinHoldSeconds != nil {
		return secs(*c.MinHoldSeconds)
	}
	return 10 * time.Second
}

func (c *Config) GetClearThreshold() int {
	if c.ClearThreshold != nil {
		return *c.ClearThreshold
	}
	return 2
}

func (c *Config) GetBacklogThreshold() int {
	if c.BacklogThreshold != nil {
		return *c.BacklogThreshold
	}
	return 10
}

func (c *Config) GetStarvationCeiling() time.Duration {
	if c.StarvationCeilingSeconds != nil {
		return secs(*c.StarvationCeilingSeconds)
	}
	return 120 * time.Second
}

func (c *Config) GetWaitScale() float64 {
	if c.WaitScale != nil {
		return *c.WaitScale
	}
	return 5
}

func (c *Config) GetHistoryRingSize() int {
	if c.HistoryRingSize != nil {
		return *c.HistoryRingSize
	}
	return 40
}

func (c *Config) GetHistorySampleEvery() int {
	if c.HistorySampleEvery != nil {
		return *c.HistorySampleEvery
	}
	return 90
}

// Effective returns the resolved tuning values with defaults applied, keyed
// by their JSON names. Serves the config debug surface; not a substitute for
// the typed accessors.
func (c *Config) Effective() map[string]interface{} {
	return map[string]interface{}{
		"meters_per_pixel":           c.GetMetersPerPixel(),
		"speed_limit_kmh":            c.GetSpeedLimitKmh(),
		"emergency_speed_kmh":        c.GetEmergencySpeedKmh(),
		"emergency_classes":          c.GetEmergencyClasses(),
		"incident_timeout_seconds":   c.GetIncidentTimeout().Seconds(),
		"incident_tolerance_px":      c.GetIncidentTolerancePx(),
		"trend_window":               c.GetTrendWindow(),
		"trend_threshold":            c.GetTrendThreshold(),
		"flow_horizon_seconds":       c.GetFlowHorizon().Seconds(),
		"position_history_depth":     c.GetPositionHistoryDepth(),
		"phase_min_seconds":          c.GetPhaseMinSeconds(),
		"phase_max_seconds":          c.GetPhaseMaxSeconds(),
		"emergency_trim_seconds":     c.GetEmergencyTrimSeconds(),
		"emergency_floor_seconds":    c.GetEmergencyFloorSeconds(),
		"congestion_trim_seconds":    c.GetCongestionTrimSeconds(),
		"congestion_floor_seconds":   c.GetCongestionFloorSeconds(),
		"trim_cooldown_seconds":      c.GetTrimCooldown().Seconds(),
		"min_hold_seconds":           c.GetMinHold().Seconds(),
		"clear_threshold":            c.GetClearThreshold(),
		"backlog_threshold":          c.GetBacklogThreshold(),
		"starvation_ceiling_seconds": c.GetStarvationCeiling().Seconds(),
		"wait_scale":                 c.GetWaitScale(),
		"history_ring_size":          c.GetHistoryRingSize(),
		"history_sample_every":       c.GetHistorySampleEvery(),
	}
}

// Validate checks the configuration for conditions under which the core must
// refuse to run rather than degrade silently.
func (c *Config) Validate() error {
	if len(c.LaneRects) == 0 {
		return fmt.Errorf("no lanes configured: at least one lane rectangle is required")
	}
	for i, r := range c.LaneRects {
		if !r.Valid() {
			return fmt.Errorf("lane %d rectangle has non-positive area: %+v", i+1, r)
		}
	}
	if c.GetMetersPerPixel() <= 0 {
		return fmt.Errorf("meters_per_pixel must be positive, got %v", c.GetMetersPerPixel())
	}
	if c.GetSpeedLimitKmh() <= 0 {
		return fmt.Errorf("speed_limit_kmh must be positive, got %v", c.GetSpeedLimitKmh())
	}
	if c.GetIncidentTimeout() <= 0 {
		return fmt.Errorf("incident_timeout_seconds must be positive")
	}
	if c.GetIncidentTolerancePx() < 0 {
		return fmt.Errorf("incident_tolerance_px must be non-negative")
	}
	if c.GetTrendWindow() < 3 {
		return fmt.Errorf("trend_window must be at least 3, got %d", c.GetTrendWindow())
	}
	if c.GetFlowHorizon() <= 0 {
		return fmt.Errorf("flow_horizon_seconds must be positive")
	}
	if c.GetPositionHistoryDepth() < 2 {
		return fmt.Errorf("position_history_depth must be at least 2, got %d", c.GetPositionHistoryDepth())
	}
	if min, max := c.GetPhaseMinSeconds(), c.GetPhaseMaxSeconds(); min <= 0 || max < min {
		return fmt.Errorf("phase bounds invalid: min=%d max=%d", min, max)
	}
	if c.GetEmergencyFloorSeconds() <= 0 || c.GetCongestionFloorSeconds() <= 0 {
		return fmt.Errorf("trim floors must be positive")
	}
	if c.GetEmergencyTrimSeconds() <= 0 || c.GetCongestionTrimSeconds() <= 0 {
		return fmt.Errorf("trim amounts must be positive")
	}
	if c.GetStarvationCeiling() <= 0 {
		return fmt.Errorf("starvation_ceiling_seconds must be positive")
	}
	if c.GetWaitScale() <= 0 {
		return fmt.Errorf("wait_scale must be positive")
	}
	return nil
}

// LoadConfig loads a Config from a JSON file. Fields omitted from the file
// keep their defaults, so partial configs are safe. The file must have a
// .json extension and stay under 1MB.
func LoadConfig(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
