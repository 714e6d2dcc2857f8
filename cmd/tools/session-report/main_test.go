package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/furrow-data/fieldline/internal/db"
)

func seedSession(t *testing.T, database *db.DB, sessionID string, tickCount int) {
	t.Helper()

	session := &db.Session{
		SessionID:   sessionID,
		FieldName:   "east paddock",
		SteerLaw:    "purepursuit",
		StartedUnix: 1700000000,
	}
	if err := database.CreateSession(session); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	ctx := context.Background()
	var ticks []db.Tick
	for i := 0; i < tickCount; i++ {
		ticks = append(ticks, db.Tick{
			SessionID:    sessionID,
			TUnix:        1700000000 + float64(i)*0.5,
			Easting:      0.05,
			Northing:     float64(i),
			SpeedMPS:     2,
			Engaged:      true,
			TrackName:    "ab 1",
			CrossTrackM:  0.05,
			WorkedAreaM2: float64(i) * 3,
		})
	}
	if err := database.InsertTicks(ctx, ticks); err != nil {
		t.Fatalf("InsertTicks failed: %v", err)
	}
	stat := db.CoverageStat{SessionID: sessionID, TUnix: 1700000005, WorkedAreaM2: float64(tickCount-1) * 3}
	if err := database.InsertCoverageStat(ctx, stat); err != nil {
		t.Fatalf("InsertCoverageStat failed: %v", err)
	}
}

func TestRunReportEndToEnd(t *testing.T) {
	testingDir := t.TempDir()

	database, err := db.NewDB(filepath.Join(testingDir, "fieldline.db"))
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	defer func() {
		if err := database.Close(); err != nil {
			t.Errorf("Failed to close test database: %v", err)
		}
	}()

	seedSession(t, database, "s-report", 20)

	cfg := Config{
		SessionID: "s-report",
		OutputDir: filepath.Join(testingDir, "out"),
		Timezone:  "UTC",
	}
	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		t.Fatalf("Failed to create output dir: %v", err)
	}

	result, err := runReport(database, cfg)
	if err != nil {
		t.Fatalf("runReport failed: %v", err)
	}

	if result.Stats.TickCount != 20 {
		t.Errorf("Expected 20 ticks, got %d", result.Stats.TickCount)
	}
	if result.Session.FieldName != "east paddock" {
		t.Errorf("Expected field 'east paddock', got %q", result.Session.FieldName)
	}

	// 3 PNG plots plus the HTML page
	if len(result.Files) != 4 {
		t.Fatalf("Expected 4 output files, got %d: %v", len(result.Files), result.Files)
	}
	for _, f := range result.Files {
		info, err := os.Stat(f)
		if err != nil {
			t.Errorf("Missing output file %s: %v", f, err)
			continue
		}
		if info.Size() == 0 {
			t.Errorf("Empty output file %s", f)
		}
	}

	// JSON export round-trips
	jsonPath := filepath.Join(cfg.OutputDir, "stats.json")
	if err := exportJSON(result, jsonPath); err != nil {
		t.Fatalf("exportJSON failed: %v", err)
	}
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatalf("Failed to read exported JSON: %v", err)
	}
	var decoded ReportResult
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Failed to decode exported JSON: %v", err)
	}
	if decoded.Stats.TickCount != 20 {
		t.Errorf("Expected 20 ticks in JSON, got %d", decoded.Stats.TickCount)
	}
}

func TestRunReportNoTicks(t *testing.T) {
	testingDir := t.TempDir()

	database, err := db.NewDB(filepath.Join(testingDir, "fieldline.db"))
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	defer database.Close()

	session := &db.Session{SessionID: "s-empty", FieldName: "bare"}
	if err := database.CreateSession(session); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	cfg := Config{SessionID: "s-empty", OutputDir: testingDir, Timezone: "UTC"}
	if _, err := runReport(database, cfg); err == nil {
		t.Error("Expected error for session with no ticks, got nil")
	}
}

func TestRunReportMissingSession(t *testing.T) {
	testingDir := t.TempDir()

	database, err := db.NewDB(filepath.Join(testingDir, "fieldline.db"))
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	defer database.Close()

	cfg := Config{SessionID: "nope", OutputDir: testingDir, Timezone: "UTC"}
	if _, err := runReport(database, cfg); err == nil {
		t.Error("Expected error for missing session, got nil")
	}
}
