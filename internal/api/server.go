// Package api exposes the junction analytics state over HTTP: live
// snapshots, lane history, persisted violations and a simple charts page.
package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/junction.report/internal/db"
	"github.com/banshee-data/junction.report/internal/traffic"
	"github.com/banshee-data/junction.report/internal/units"
	"github.com/banshee-data/junction.report/internal/version"
)

// ANSI escape codes for request log colouring
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// StatsSource is the read side of the analytics engine. Implementations
// must return snapshots that are safe to retain after the call.
type StatsSource interface {
	Snapshot() traffic.Snapshot
	History() []traffic.HistorySample
	Lanes() []traffic.Lane
	SpeedLimitKmh() float64
	Tuning() map[string]interface{}
}

// SubmitFunc hands one frame of tracked observations to the analytics
// engine. It returns an error when the engine cannot accept the frame.
type SubmitFunc func(obs []traffic.Observation, at time.Time) error

type Server struct {
	engine StatsSource
	db     *db.DB
	submit SubmitFunc
	units  string
}

func NewServer(engine StatsSource, database *db.DB, submit SubmitFunc, speedUnits string) *Server {
	return &Server{
		engine: engine,
		db:     database,
		submit: submit,
		units:  speedUnits,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.showHealth)
	mux.HandleFunc("/api/stats", s.showStats)
	mux.HandleFunc("/api/history", s.showHistory)
	mux.HandleFunc("/api/violations", s.listViolations)
	mux.HandleFunc("/api/lane_stats", s.showLaneStats)
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/api/frame", s.ingestFrame)
	mux.HandleFunc("/charts/lanes", s.showLaneCharts)
	return mux
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (s *Server) showHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"version": version.Version,
		"git_sha": version.GitSHA,
	})
}

// convertSnapshotSpeeds rewrites the km/h figures in a snapshot copy into
// the server's configured units. The snapshot is a value, so mutating the
// violation slice requires a fresh backing array.
func (s *Server) convertSnapshotSpeeds(snap traffic.Snapshot) traffic.Snapshot {
	if s.units == units.KMPH || s.units == units.KPH {
		return snap
	}
	converted := make([]traffic.Violation, len(snap.RecentViolations))
	for i, v := range snap.RecentViolations {
		v.SpeedKmh = units.ConvertFromKmh(v.SpeedKmh, s.units)
		converted[i] = v
	}
	snap.RecentViolations = converted
	return snap
}

func (s *Server) showStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	payload := struct {
		traffic.Snapshot
		Units string `json:"units"`
	}{
		Snapshot: s.convertSnapshotSpeeds(s.engine.Snapshot()),
		Units:    s.units,
	}

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write stats")
		return
	}
}

func (s *Server) showHistory(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	samples := s.engine.History()
	if samples == nil {
		samples = []traffic.HistorySample{}
	}
	if err := json.NewEncoder(w).Encode(samples); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write history")
		return
	}
}

func parseDays(r *http.Request) (int, error) {
	days := 1
	if d := r.URL.Query().Get("days"); d != "" {
		parsed, err := strconv.Atoi(d)
		if err != nil || parsed < 1 {
			return 0, fmt.Errorf("invalid 'days' parameter")
		}
		days = parsed
	}
	return days, nil
}

func (s *Server) listViolations(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	days, err := parseDays(r)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid 'days' parameter")
		return
	}

	rows, err := s.db.RecentViolations(days)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve violations: %v", err))
		return
	}

	for i := range rows {
		rows[i].SpeedKmh = units.ConvertFromKmh(rows[i].SpeedKmh, s.units)
	}
	if rows == nil {
		rows = []db.ViolationRow{}
	}

	if err := json.NewEncoder(w).Encode(rows); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write violations")
		return
	}
}

func (s *Server) showLaneStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	days, err := parseDays(r)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid 'days' parameter")
		return
	}

	rollups, err := s.db.LaneRollups(days)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve lane stats: %v", err))
		return
	}
	if rollups == nil {
		rollups = []db.LaneRollup{}
	}

	if err := json.NewEncoder(w).Encode(rollups); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write lane stats")
		return
	}
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	config := map[string]interface{}{
		"units":       s.units,
		"lanes":       s.engine.Lanes(),
		"speed_limit": units.ConvertFromKmh(s.engine.SpeedLimitKmh(), s.units),
		"tuning":      s.engine.Tuning(),
	}

	if err := json.NewEncoder(w).Encode(config); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write config")
		return
	}
}

// frameRequest is one frame of tracked detections as posted by a capture
// process or the replay tool.
type frameRequest struct {
	Timestamp    *time.Time            `json:"timestamp,omitempty"`
	Observations []traffic.Observation `json:"observations"`
}

func (s *Server) ingestFrame(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.submit == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "Frame ingest not enabled")
		return
	}

	var req frameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Invalid frame: %v", err))
		return
	}

	at := time.Now()
	if req.Timestamp != nil {
		at = *req.Timestamp
	}

	if err := s.submit(req.Observations, at); err != nil {
		s.writeJSONError(w, http.StatusServiceUnavailable,
			fmt.Sprintf("Failed to submit frame: %v", err))
		return
	}

	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]int{"observations": len(req.Observations)})
}
