package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/furrow-data/fieldline/internal/agent"
	"github.com/furrow-data/fieldline/internal/coverage"
	"github.com/furrow-data/fieldline/internal/guidance"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for tuning parameters.
// All fields are optional; anything omitted from the JSON falls back to
// the compiled defaults, so partial per-vehicle configs are safe.
type TuningConfig struct {
	// Vehicle and steering params
	WheelbaseM              *float64 `json:"wheelbase_m,omitempty"`
	MaxSteerDeg             *float64 `json:"max_steer_deg,omitempty"`
	SteerLaw                *string  `json:"steer_law,omitempty"` // "purepursuit" or "stanley"
	LookAheadSeconds        *float64 `json:"look_ahead_seconds,omitempty"`
	MinLookAheadM           *float64 `json:"min_look_ahead_m,omitempty"`
	MaxLookAheadM           *float64 `json:"max_look_ahead_m,omitempty"`
	AcquireDistanceM        *float64 `json:"acquire_distance_m,omitempty"`
	AcquireFactor           *float64 `json:"acquire_factor,omitempty"`
	IntegralGain            *float64 `json:"integral_gain,omitempty"`
	StanleyHeadingGain      *float64 `json:"stanley_heading_gain,omitempty"`
	StanleyDistanceGain     *float64 `json:"stanley_distance_gain,omitempty"`
	StanleyIntegralTriggerM *float64 `json:"stanley_integral_trigger_m,omitempty"`
	SideHillCompFactor      *float64 `json:"side_hill_comp_factor,omitempty"`
	SearchWindow            *int     `json:"search_window,omitempty"`

	// Tool and section params
	ToolWidthM         *float64 `json:"tool_width_m,omitempty"`
	ToolOffsetM        *float64 `json:"tool_offset_m,omitempty"`
	ToolHitchM         *float64 `json:"tool_hitch_m,omitempty"`
	Sections           *int     `json:"sections,omitempty"`
	SectionLookOn      *string  `json:"section_look_on,omitempty"`  // duration string like "1s"
	SectionLookOff     *string  `json:"section_look_off,omitempty"` // duration string like "500ms"
	MinSectionSpeedMPS *float64 `json:"min_section_speed_mps,omitempty"`

	// Headland params
	HeadlandWidthM *float64 `json:"headland_width_m,omitempty"` // 0 disables headland building
	HeadlandPasses *int     `json:"headland_passes,omitempty"`

	// Coverage params
	CoverageCellSizeM *float64 `json:"coverage_cell_size_m,omitempty"`
	MinVisualSpacingM *float64 `json:"min_visual_spacing_m,omitempty"`
	CoveredThreshold  *float64 `json:"covered_threshold,omitempty"`

	// Recorder params
	FlushInterval   *string `json:"flush_interval,omitempty"` // duration string like "2s"
	RecordBatchSize *int    `json:"record_batch_size,omitempty"`

	// Simulator params (optional)
	SimSpeedMPS            *float64 `json:"sim_speed_mps,omitempty"`
	SimRateHz              *float64 `json:"sim_rate_hz,omitempty"`
	SimSteerRateDegPerSec  *float64 `json:"sim_steer_rate_deg_per_sec,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from a config file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	// Validate the config file path.
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON into empty config. Unset fields fall back to compiled
	// defaults when the typed configs are built.
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.WheelbaseM != nil && *c.WheelbaseM <= 0 {
		return fmt.Errorf("wheelbase_m must be positive, got %f", *c.WheelbaseM)
	}
	if c.MaxSteerDeg != nil && (*c.MaxSteerDeg <= 0 || *c.MaxSteerDeg > 60) {
		return fmt.Errorf("max_steer_deg must be in (0, 60], got %f", *c.MaxSteerDeg)
	}
	if c.SteerLaw != nil {
		if _, err := guidance.ParseLaw(*c.SteerLaw); err != nil {
			return fmt.Errorf("invalid steer_law: %w", err)
		}
	}
	if c.SearchWindow != nil && *c.SearchWindow < 1 {
		return fmt.Errorf("search_window must be at least 1, got %d", *c.SearchWindow)
	}
	if c.ToolWidthM != nil && *c.ToolWidthM <= 0 {
		return fmt.Errorf("tool_width_m must be positive, got %f", *c.ToolWidthM)
	}
	if c.Sections != nil && (*c.Sections < 1 || *c.Sections > 64) {
		return fmt.Errorf("sections must be in [1, 64], got %d", *c.Sections)
	}
	if c.HeadlandWidthM != nil && *c.HeadlandWidthM < 0 {
		return fmt.Errorf("headland_width_m must not be negative, got %f", *c.HeadlandWidthM)
	}
	if c.HeadlandPasses != nil && *c.HeadlandPasses < 1 {
		return fmt.Errorf("headland_passes must be at least 1, got %d", *c.HeadlandPasses)
	}
	if c.CoverageCellSizeM != nil && *c.CoverageCellSizeM <= 0 {
		return fmt.Errorf("coverage_cell_size_m must be positive, got %f", *c.CoverageCellSizeM)
	}
	if c.MinVisualSpacingM != nil && *c.MinVisualSpacingM < 0 {
		return fmt.Errorf("min_visual_spacing_m must not be negative, got %f", *c.MinVisualSpacingM)
	}
	if c.CoveredThreshold != nil && (*c.CoveredThreshold <= 0 || *c.CoveredThreshold > 1) {
		return fmt.Errorf("covered_threshold must be in (0, 1], got %f", *c.CoveredThreshold)
	}

	// Validate duration strings can be parsed if set
	if c.SectionLookOn != nil && *c.SectionLookOn != "" {
		if _, err := time.ParseDuration(*c.SectionLookOn); err != nil {
			return fmt.Errorf("invalid section_look_on '%s': %w", *c.SectionLookOn, err)
		}
	}
	if c.SectionLookOff != nil && *c.SectionLookOff != "" {
		if _, err := time.ParseDuration(*c.SectionLookOff); err != nil {
			return fmt.Errorf("invalid section_look_off '%s': %w", *c.SectionLookOff, err)
		}
	}
	if c.FlushInterval != nil && *c.FlushInterval != "" {
		if _, err := time.ParseDuration(*c.FlushInterval); err != nil {
			return fmt.Errorf("invalid flush_interval '%s': %w", *c.FlushInterval, err)
		}
	}

	if c.RecordBatchSize != nil && *c.RecordBatchSize < 1 {
		return fmt.Errorf("record_batch_size must be positive, got %d", *c.RecordBatchSize)
	}
	if c.SimRateHz != nil && *c.SimRateHz <= 0 {
		return fmt.Errorf("sim_rate_hz must be positive, got %f", *c.SimRateHz)
	}

	return nil
}

// GetFlushInterval parses and returns the FlushInterval as a time.Duration.
func (c *TuningConfig) GetFlushInterval() time.Duration {
	if c.FlushInterval == nil || *c.FlushInterval == "" {
		return 2 * time.Second // default
	}
	d, err := time.ParseDuration(*c.FlushInterval)
	if err != nil {
		return 2 * time.Second // default on parse error
	}
	return d
}

// GetSectionLookOn parses and returns the SectionLookOn horizon.
func (c *TuningConfig) GetSectionLookOn() time.Duration {
	if c.SectionLookOn == nil || *c.SectionLookOn == "" {
		return 1 * time.Second // default
	}
	d, err := time.ParseDuration(*c.SectionLookOn)
	if err != nil {
		return 1 * time.Second // default on parse error
	}
	return d
}

// GetSectionLookOff parses and returns the SectionLookOff horizon.
func (c *TuningConfig) GetSectionLookOff() time.Duration {
	if c.SectionLookOff == nil || *c.SectionLookOff == "" {
		return 500 * time.Millisecond // default
	}
	d, err := time.ParseDuration(*c.SectionLookOff)
	if err != nil {
		return 500 * time.Millisecond // default on parse error
	}
	return d
}

// GetHeadlandWidthM returns the headland_width_m value or the default.
// Zero means no headland is built.
func (c *TuningConfig) GetHeadlandWidthM() float64 {
	if c.HeadlandWidthM == nil {
		return 0
	}
	return *c.HeadlandWidthM
}

// GetHeadlandPasses returns the headland_passes value or the default.
func (c *TuningConfig) GetHeadlandPasses() int {
	if c.HeadlandPasses == nil {
		return 1
	}
	return *c.HeadlandPasses
}

// GetRecordBatchSize returns the record_batch_size value or the default.
func (c *TuningConfig) GetRecordBatchSize() int {
	if c.RecordBatchSize == nil {
		return 64 // default
	}
	return *c.RecordBatchSize
}

// GetSimSpeedMPS returns the sim_speed_mps value or the default.
func (c *TuningConfig) GetSimSpeedMPS() float64 {
	if c.SimSpeedMPS == nil {
		return 2.0
	}
	return *c.SimSpeedMPS
}

// GetSimRateHz returns the sim_rate_hz value or the default.
func (c *TuningConfig) GetSimRateHz() float64 {
	if c.SimRateHz == nil {
		return 10.0
	}
	return *c.SimRateHz
}

// GetSimSteerRateDegPerSec returns the sim_steer_rate_deg_per_sec value
// or the default. Zero applies steer commands instantly.
func (c *TuningConfig) GetSimSteerRateDegPerSec() float64 {
	if c.SimSteerRateDegPerSec == nil {
		return 0
	}
	return *c.SimSteerRateDegPerSec
}

// GuidanceConfig overlays the set vehicle and steering fields on the
// compiled guidance defaults and validates the result.
func (c *TuningConfig) GuidanceConfig() (guidance.Config, error) {
	cfg := guidance.DefaultConfig()
	if c.WheelbaseM != nil {
		cfg.WheelbaseMeters = *c.WheelbaseM
	}
	if c.MaxSteerDeg != nil {
		cfg.MaxSteerAngleDeg = *c.MaxSteerDeg
	}
	if c.SteerLaw != nil {
		law, err := guidance.ParseLaw(*c.SteerLaw)
		if err != nil {
			return cfg, err
		}
		cfg.Law = law
	}
	if c.LookAheadSeconds != nil {
		cfg.LookAheadSeconds = *c.LookAheadSeconds
	}
	if c.MinLookAheadM != nil {
		cfg.MinLookAheadMeters = *c.MinLookAheadM
	}
	if c.MaxLookAheadM != nil {
		cfg.MaxLookAheadMeters = *c.MaxLookAheadM
	}
	if c.AcquireDistanceM != nil {
		cfg.AcquireDistanceMeters = *c.AcquireDistanceM
	}
	if c.AcquireFactor != nil {
		cfg.AcquireFactor = *c.AcquireFactor
	}
	if c.IntegralGain != nil {
		cfg.IntegralGain = *c.IntegralGain
	}
	if c.StanleyHeadingGain != nil {
		cfg.StanleyHeadingGain = *c.StanleyHeadingGain
	}
	if c.StanleyDistanceGain != nil {
		cfg.StanleyDistanceGain = *c.StanleyDistanceGain
	}
	if c.StanleyIntegralTriggerM != nil {
		cfg.StanleyIntegralTriggerMeters = *c.StanleyIntegralTriggerM
	}
	if c.SideHillCompFactor != nil {
		cfg.SideHillCompFactor = *c.SideHillCompFactor
	}
	if c.SearchWindow != nil {
		cfg.SearchWindow = *c.SearchWindow
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ToolConfig overlays the set tool and section fields on the compiled
// tool defaults.
func (c *TuningConfig) ToolConfig() agent.ToolConfig {
	cfg := agent.DefaultToolConfig()
	if c.ToolWidthM != nil {
		cfg.WidthMeters = *c.ToolWidthM
	}
	if c.ToolOffsetM != nil {
		cfg.OffsetMeters = *c.ToolOffsetM
	}
	if c.ToolHitchM != nil {
		cfg.HitchMeters = *c.ToolHitchM
	}
	if c.Sections != nil {
		cfg.Sections = *c.Sections
	}
	cfg.LookAheadOnSec = c.GetSectionLookOn().Seconds()
	cfg.LookAheadOffSec = c.GetSectionLookOff().Seconds()
	if c.MinSectionSpeedMPS != nil {
		cfg.MinSpeedMPS = *c.MinSectionSpeedMPS
	}
	return cfg
}

// CoverageConfig overlays the set coverage fields on the compiled
// coverage defaults.
func (c *TuningConfig) CoverageConfig() coverage.Config {
	cfg := coverage.DefaultConfig()
	if c.CoverageCellSizeM != nil {
		cfg.CellSizeMeters = *c.CoverageCellSizeM
	}
	if c.MinVisualSpacingM != nil {
		cfg.MinVisualSpacingMeters = *c.MinVisualSpacingM
	}
	if c.CoveredThreshold != nil {
		cfg.CoveredThreshold = *c.CoveredThreshold
	}
	return cfg
}

// AgentConfig builds the full agent configuration from the tuning file.
func (c *TuningConfig) AgentConfig() (agent.Config, error) {
	gcfg, err := c.GuidanceConfig()
	if err != nil {
		return agent.Config{}, err
	}
	return agent.Config{
		Guidance: gcfg,
		Tool:     c.ToolConfig(),
	}, nil
}
