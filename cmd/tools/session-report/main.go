// Package main generates post-run reports for recorded guidance sessions:
// PNG plots, an interactive HTML chart page, and printed summary statistics.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/furrow-data/fieldline/internal/db"
	"github.com/furrow-data/fieldline/internal/report"
	"github.com/furrow-data/fieldline/internal/units"
)

// Config holds configuration for the report generator.
type Config struct {
	DBPath     string
	SessionID  string
	OutputDir  string
	Timezone   string
	OutputJSON string
}

// ReportResult holds everything written for one session.
type ReportResult struct {
	Session *db.Session  `json:"session"`
	Stats   report.Stats `json:"stats"`
	Files   []string     `json:"files"`
}

func main() {
	cfg := parseFlags()

	database, err := db.NewDBWithMigrationCheck(cfg.DBPath, false)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	// With no session named, list recent sessions and exit.
	if cfg.SessionID == "" {
		if err := listSessions(database, cfg.Timezone); err != nil {
			log.Fatalf("Failed to list sessions: %v", err)
		}
		return
	}

	// Create output directory if needed
	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	result, err := runReport(database, cfg)
	if err != nil {
		log.Fatalf("Report failed: %v", err)
	}

	printResults(result, cfg.Timezone)

	// Export JSON if requested
	if cfg.OutputJSON != "" {
		outputPath := filepath.Join(cfg.OutputDir, cfg.OutputJSON)
		if err := exportJSON(result, outputPath); err != nil {
			log.Printf("Warning: failed to export JSON: %v", err)
		} else {
			log.Printf("Stats exported to: %s", outputPath)
		}
	}
}

func parseFlags() Config {
	cfg := Config{}

	flag.StringVar(&cfg.DBPath, "db", "fieldline.db", "Path to the session database")
	flag.StringVar(&cfg.SessionID, "session", "", "Session ID to report on (omit to list recent sessions)")
	flag.StringVar(&cfg.OutputDir, "out", "session-report", "Output directory for plots and HTML")
	flag.StringVar(&cfg.Timezone, "timezone", "UTC", "Display timezone for timestamps")
	flag.StringVar(&cfg.OutputJSON, "json", "", "Stats JSON filename (e.g., stats.json)")

	flag.Parse()

	if !units.IsTimezoneValid(cfg.Timezone) {
		log.Fatalf("Invalid timezone %q", cfg.Timezone)
	}

	return cfg
}

func listSessions(database *db.DB, timezone string) error {
	sessions, err := database.ListSessions(10)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("No recorded sessions.")
		return nil
	}

	fmt.Println("\n=== Recent Sessions ===")
	for _, s := range sessions {
		duration := "running"
		if s.EndedUnix != nil {
			duration = fmt.Sprintf("%.0fs", *s.EndedUnix-s.StartedUnix)
		}
		fmt.Printf("%s  field=%s law=%s started=%s duration=%s\n",
			s.SessionID, s.FieldName, s.SteerLaw, formatUnix(s.StartedUnix, timezone), duration)
	}
	return nil
}

func formatUnix(unix float64, timezone string) string {
	t := time.Unix(0, int64(unix*1e9)).UTC()
	if timezone != "" {
		if local, err := units.ConvertTime(t, timezone); err == nil {
			t = local
		}
	}
	return t.Format("2006-01-02 15:04:05 MST")
}

func runReport(database *db.DB, cfg Config) (*ReportResult, error) {
	ctx := context.Background()

	session, err := database.GetSession(cfg.SessionID)
	if err != nil {
		return nil, err
	}

	ticks, err := database.TickSeries(ctx, cfg.SessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to read ticks: %w", err)
	}
	if len(ticks) == 0 {
		return nil, fmt.Errorf("session %s has no recorded ticks", cfg.SessionID)
	}
	covStats, err := database.CoverageSeries(ctx, cfg.SessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to read coverage stats: %w", err)
	}

	series := report.BuildSeries(ticks)
	stats := report.ComputeStats(ticks)

	files, err := report.PlotSession(series, cfg.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to render plots: %w", err)
	}

	htmlPath := filepath.Join(cfg.OutputDir, "report.html")
	var buf bytes.Buffer
	if err := report.ChartsHTML(&buf, session, series, stats, covStats, cfg.Timezone); err != nil {
		return nil, fmt.Errorf("failed to render charts: %w", err)
	}
	if err := os.WriteFile(htmlPath, buf.Bytes(), 0644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", htmlPath, err)
	}
	files = append(files, htmlPath)

	return &ReportResult{
		Session: session,
		Stats:   stats,
		Files:   files,
	}, nil
}

func printResults(result *ReportResult, timezone string) {
	s := result.Session
	st := result.Stats

	fmt.Println("\n=== Session Report ===")
	fmt.Printf("Session: %s\n", s.SessionID)
	fmt.Printf("Field: %s\n", s.FieldName)
	fmt.Printf("Steer Law: %s\n", s.SteerLaw)
	fmt.Printf("Started: %s\n", formatUnix(s.StartedUnix, timezone))
	fmt.Printf("Ticks: %d\n", st.TickCount)
	fmt.Printf("Duration: %.1fs\n", st.DurationSec)
	fmt.Printf("Distance: %.1f m\n", st.DistanceM)
	fmt.Printf("Engaged: %.1f%%\n", st.EngagedFraction*100)

	fmt.Println("\n--- Cross Track Error (engaged) ---")
	fmt.Printf("Mean |XTE|: %.3f m\n", st.XTEMeanAbsM)
	fmt.Printf("RMS: %.3f m\n", st.XTERMSM)
	fmt.Printf("95th Percentile: %.3f m\n", st.XTEP95M)
	fmt.Printf("Max |XTE|: %.3f m\n", st.XTEMaxAbsM)

	fmt.Println("\n--- Steering ---")
	fmt.Printf("Mean Angle: %.2f deg\n", st.SteerMeanDeg)
	fmt.Printf("Std Dev: %.2f deg\n", st.SteerStdDevDeg)

	fmt.Println("\n--- Coverage ---")
	fmt.Printf("Worked Area: %.1f m2 (%.3f ha)\n",
		st.WorkedAreaM2, units.ConvertArea(st.WorkedAreaM2, units.Hectares))

	fmt.Println("\n--- Output Files ---")
	for _, f := range result.Files {
		fmt.Println(f)
	}
}

func exportJSON(result *ReportResult, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}
