package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/junction.report/internal/api"
	"github.com/banshee-data/junction.report/internal/db"
	"github.com/banshee-data/junction.report/internal/traffic"
	"github.com/banshee-data/junction.report/internal/units"
	"github.com/banshee-data/junction.report/internal/version"
)

var (
	listen        = flag.String("listen", ":8080", "Listen address")
	configPath    = flag.String("config", "junction.json", "Path to the junction config file (JSON)")
	dbFile        = flag.String("db", "junction_data.db", "Path to the SQLite database")
	speedUnits    = flag.String("units", units.KMPH, "Speed units for API output (mps, mph, kmph, kph)")
	migrationsDir = flag.String("migrations", "internal/db/migrations", "Path to the migrations directory")
	migrateAction = flag.String("migrate", "", "Run a migration action and exit (up, down, version)")
)

// frameQueueSize bounds how many ingest frames may be waiting on the engine.
// Posting frames faster than the engine drains them returns 503 to the
// capture process rather than growing without bound.
const frameQueueSize = 16

type frame struct {
	observations []traffic.Observation
	at           time.Time
}

func runMigrateAction(database *db.DB, action string) error {
	switch action {
	case "up":
		return database.MigrateUp(*migrationsDir)
	case "down":
		return database.MigrateDown(*migrationsDir)
	case "version":
		version, dirty, err := database.MigrateVersion(*migrationsDir)
		if err != nil {
			return err
		}
		log.Printf("schema version=%d dirty=%v", version, dirty)
		return nil
	default:
		return fmt.Errorf("unknown migrate action %q (want up, down, or version)", action)
	}
}

// persistFrameEvents writes the durable artefacts of one processed frame.
// Failures are logged, not fatal: the live snapshot stays authoritative.
func persistFrameEvents(database *db.DB, result traffic.FrameResult, at time.Time) {
	for _, v := range result.Violations {
		if err := database.RecordViolation(v); err != nil {
			log.Printf("failed to record violation: %v", err)
		}
	}
	for _, inc := range result.Incidents {
		if err := database.RecordIncident(result.FrameID, inc, at); err != nil {
			log.Printf("failed to record incident: %v", err)
		}
	}
}

func persistLaneSamples(database *db.DB, snap traffic.Snapshot) {
	for _, report := range snap.Lanes {
		if err := database.RecordLaneSample(snap.FrameID, report, snap.Timestamp); err != nil {
			log.Printf("failed to record lane sample: %v", err)
		}
	}
}

func main() {
	flag.Parse()
	log.Printf("junction.report %s (%s)", version.Version, version.GitSHA)

	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	if !units.IsValid(*speedUnits) {
		log.Fatalf("invalid units %q (want one of %s)", *speedUnits, units.ValidUnitsString())
	}

	cfg, err := traffic.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	database, err := db.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	if *migrateAction != "" {
		if err := runMigrateAction(database, *migrateAction); err != nil {
			log.Fatalf("migration failed: %v", err)
		}
		return
	}

	if err := database.MigrateUp(*migrationsDir); err != nil {
		log.Fatalf("failed to apply migrations: %v", err)
	}

	start := time.Now()
	engine, err := traffic.NewEngine(cfg, start)
	if err != nil {
		log.Fatalf("failed to build analytics engine: %v", err)
	}

	sessionID, err := database.StartSession(start)
	if err != nil {
		log.Fatalf("failed to start session: %v", err)
	}
	log.Printf("session %s started, monitoring %d lanes", sessionID, len(engine.Lanes()))

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	frames := make(chan frame, frameQueueSize)
	submit := func(obs []traffic.Observation, at time.Time) error {
		select {
		case frames <- frame{observations: obs, at: at}:
			return nil
		default:
			return fmt.Errorf("frame queue full")
		}
	}

	// Analytics goroutine. The engine is single-writer: all frames flow
	// through this loop in arrival order.
	wg.Add(1)
	go func() {
		defer wg.Done()
		sampleEvery := int64(cfg.GetHistorySampleEvery())
		for {
			select {
			case f := <-frames:
				result := engine.ProcessFrame(f.observations, f.at)
				persistFrameEvents(database, result, f.at)
				if result.FrameID%sampleEvery == 0 {
					persistLaneSamples(database, engine.Snapshot())
				}
			case <-ctx.Done():
				log.Printf("analytics routine terminated")
				return
			}
		}
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := api.NewServer(engine, database, submit, *speedUnits).ServeMux()

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		// Start server in a goroutine so it doesn't block
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()
		log.Printf("listening on %s", *listen)

		// Wait for context cancellation to shut down server
		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}

		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()

	summary := engine.SessionSummary()
	if err := database.FinishSession(sessionID, summary, time.Now()); err != nil {
		log.Printf("failed to finish session: %v", err)
	}
	log.Printf("session %s closed: %d vehicles, peak %d, %d incidents, %d violations",
		sessionID, summary.DistinctTracks, summary.PeakOccupancy,
		summary.TotalIncidents, summary.TotalViolations)
	log.Printf("Graceful shutdown complete")
}
