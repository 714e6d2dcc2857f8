package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/furrow-data/fieldline/internal/agent"
	"github.com/furrow-data/fieldline/internal/api"
	"github.com/furrow-data/fieldline/internal/boundary"
	"github.com/furrow-data/fieldline/internal/config"
	"github.com/furrow-data/fieldline/internal/coverage"
	"github.com/furrow-data/fieldline/internal/db"
	"github.com/furrow-data/fieldline/internal/field"
	"github.com/furrow-data/fieldline/internal/fsutil"
	"github.com/furrow-data/fieldline/internal/geo"
	"github.com/furrow-data/fieldline/internal/guidance"
	"github.com/furrow-data/fieldline/internal/sim"
	"github.com/furrow-data/fieldline/internal/timeutil"
	"github.com/furrow-data/fieldline/internal/units"
	"github.com/furrow-data/fieldline/internal/version"
)

var (
	devMode    = flag.Bool("dev", false, "Run in dev mode with the simulated vehicle")
	listen     = flag.String("listen", ":8080", "HTTP listen address")
	fieldsDir  = flag.String("fields-dir", "fields", "Directory holding saved fields")
	dbFile     = flag.String("db", "fieldline.db", "Path to the SQLite session database")
	configPath = flag.String("config", "", "Path to a tuning JSON file (compiled defaults when empty)")
	fieldName  = flag.String("field", "", "Field to load from the fields directory")
	lineName   = flag.String("line", "", "Track to select at startup")
	speedUnits = flag.String("speed-units", units.KMPH, "Display speed units (mps, kmph, mph)")
	areaUnits  = flag.String("area-units", units.Hectares, "Display area units (m2, ha, acres)")
	timezone   = flag.String("timezone", "UTC", "Display timezone for timestamps")
)

// discardSink drops steer commands when no actuator is attached.
type discardSink struct{}

func (discardSink) Steer(guidance.Output) {}

// demoField is the built-in dev field: a 200 m AB line inside a rectangular
// boundary, enough to watch the simulator acquire and hold the line.
func demoField(covCfg coverage.Config) *field.Field {
	f := field.New("sim", covCfg)

	track, err := guidance.NewABTrack("sim ab", geo.Point{E: 0, N: 0}, geo.Point{E: 0, N: 200})
	if err != nil {
		log.Fatalf("failed to build demo track: %v", err)
	}
	f.AddTrack(track)

	outer := boundary.Ring{
		{E: -50, N: -30}, {E: 50, N: -30}, {E: 50, N: 230}, {E: -50, N: 230},
	}
	b, err := boundary.NewBoundary(outer)
	if err != nil {
		log.Fatalf("failed to build demo boundary: %v", err)
	}
	f.Boundary = b
	return f
}

// simStart places the simulated vehicle near the start of the selected
// track, a little off the line so acquisition is visible.
func simStart(f *field.Field, line string) geo.PointH {
	t := f.Track(line)
	if t == nil && len(f.Tracks) > 0 {
		t = f.Tracks[0]
	}
	if t == nil || len(t.Points) == 0 {
		return geo.PointH{}
	}
	p := t.Points[0]
	return geo.PointH{E: p.E + 2, N: p.N - 5, Heading: p.Heading}
}

// Main
func main() {
	flag.Parse()

	// "fieldline migrate <up|down|to|force|version|status> ..." manages the
	// session database schema and exits.
	if args := flag.Args(); len(args) > 0 && args[0] == "migrate" {
		db.RunMigrateCommand(args[1:], *dbFile)
		return
	}

	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	if !units.IsValidSpeedUnit(*speedUnits) {
		log.Fatalf("Invalid speed units %q (want one of: %s)", *speedUnits, units.SpeedUnitsString())
	}
	if !units.IsValidAreaUnit(*areaUnits) {
		log.Fatalf("Invalid area units %q (want one of: %s)", *areaUnits, units.AreaUnitsString())
	}
	if !units.IsTimezoneValid(*timezone) {
		log.Fatalf("Invalid timezone %q", *timezone)
	}

	log.Printf("fieldline %s (%s, built %s)", version.Version, version.GitSHA, version.BuildTime)

	tuning := config.EmptyTuningConfig()
	if *configPath != "" {
		var err error
		tuning, err = config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load tuning config: %v", err)
		}
	}
	agentCfg, err := tuning.AgentConfig()
	if err != nil {
		log.Fatalf("Invalid tuning config: %v", err)
	}

	store := field.NewStore(*fieldsDir, fsutil.OSFileSystem{}, tuning.CoverageConfig())

	var f *field.Field
	switch {
	case *fieldName != "":
		f, err = store.Open(*fieldName)
		if err != nil {
			log.Fatalf("Failed to open field %q: %v", *fieldName, err)
		}
	case *devMode:
		f = demoField(tuning.CoverageConfig())
	default:
		log.Fatal("A field is required outside dev mode (use -field)")
	}

	// A failed headland offset leaves the boundary usable, so it only warns.
	if w := tuning.GetHeadlandWidthM(); w > 0 && f.Boundary != nil {
		err := boundary.BuildHeadland(f.Boundary, w, tuning.GetHeadlandPasses(),
			boundary.JoinRound, boundary.DefaultOffsetConfig())
		if err != nil {
			log.Printf("headland build failed: %v", err)
		}
	}

	database, err := db.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	clock := timeutil.RealClock{}

	// In dev mode the simulated vehicle is both the pose source and the
	// steer actuator, closing the guidance loop end to end. Without a
	// source the agent idles and the server answers from the loaded field
	// and recorded sessions.
	var source agent.PoseSource
	var sink agent.SteerSink = discardSink{}
	if *devMode {
		simCfg := sim.DefaultConfig()
		simCfg.WheelbaseMeters = agentCfg.Guidance.WheelbaseMeters
		simCfg.SpeedMPS = tuning.GetSimSpeedMPS()
		simCfg.RateHz = tuning.GetSimRateHz()
		simCfg.MaxSteerRateDegPerSec = tuning.GetSimSteerRateDegPerSec()
		simCfg.Start = simStart(f, *lineName)
		vehicle := sim.New(simCfg, clock)
		source = vehicle
		sink = vehicle
	}

	var rec *db.Recorder
	var recorder agent.Recorder
	sessionID := ""
	if source != nil {
		session := &db.Session{
			FieldName: f.Name,
			SteerLaw:  agentCfg.Guidance.Law.String(),
		}
		if err := database.CreateSession(session); err != nil {
			log.Fatalf("Failed to create session: %v", err)
		}
		sessionID = session.SessionID
		log.Printf("recording session %s on field %q", sessionID, f.Name)

		opts := db.RecorderOptions{
			FlushInterval: tuning.GetFlushInterval(),
			BatchSize:     tuning.GetRecordBatchSize(),
		}
		if f.Boundary != nil {
			opts.FieldAreaM2 = f.Boundary.AreaM2()
		}
		rec = db.NewRecorder(database, sessionID, opts)
		rec.Start()
		recorder = rec
	}

	a := agent.New(agentCfg, f, source, sink, recorder, clock)

	if *lineName != "" {
		if err := a.SetTrack(*lineName); err != nil {
			log.Fatalf("Failed to select track: %v", err)
		}
		if *devMode {
			if err := a.Engage(true); err != nil {
				log.Printf("failed to engage: %v", err)
			}
		}
	}

	// Wait group for the guidance loop and HTTP server routines
	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if source != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.Run(ctx); err != nil && err != context.Canceled {
				log.Printf("guidance loop error: %v", err)
			}
			log.Print("guidance routine terminated")
		}()
	}

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()

		// mount the admin debugging routes (tailsql browser, debug index,
		// backup download)
		database.AttachAdminRoutes(mux)

		// mount the guidance API
		apiMux := api.NewServer(a, database, *speedUnits, *areaUnits, *timezone).ServeMux()
		mux.Handle("/api/", http.StripPrefix("/api", apiMux))

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		// Start server in a goroutine so it doesn't block
		go func() {
			log.Printf("listening on %s", *listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		// Wait for context cancellation to shut down server
		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		// Create a shutdown context with a timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}

		log.Printf("HTTP server routine stopped")
	}()

	// Wait for all goroutines to finish
	wg.Wait()

	if rec != nil {
		if err := rec.Close(); err != nil {
			log.Printf("recorder close error: %v", err)
		}
		if err := database.EndSession(sessionID, time.Now()); err != nil {
			log.Printf("failed to end session: %v", err)
		}
	}
	if err := store.Save(f); err != nil {
		log.Printf("failed to save field: %v", err)
	}
	log.Printf("Graceful shutdown complete")
}
