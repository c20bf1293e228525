// Package config holds the runtime configuration for the depth controller
// daemon. Values load from a YAML file; omitted fields keep their defaults
// and the whole structure is validated before the mission may start.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// maxConfigFileSize guards against accidentally pointing the daemon at a
// large unrelated file.
const maxConfigFileSize = 1 << 20

// Duration is a time.Duration that unmarshals from YAML duration strings
// like "500ms" or "10s", or from bare numbers interpreted as seconds.
type Duration time.Duration

// D returns the value as a time.Duration.
func (d Duration) D() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}

	var secs float64
	if err := value.Decode(&secs); err != nil {
		return fmt.Errorf("invalid duration value %q", value.Value)
	}
	*d = Duration(time.Duration(secs * float64(time.Second)))
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Config is the complete runtime configuration.
type Config struct {
	// Safety thresholds (metres of altitude above the seafloor).
	WarningAltitude   float64 `yaml:"warning_altitude"`
	EmergencyAltitude float64 `yaml:"emergency_altitude"`
	// SafetyMargin is how far above the emergency threshold the altitude
	// must climb before an emergency may clear.
	SafetyMargin float64 `yaml:"safety_margin"`
	// AltitudeStalenessWindow is the maximum age of an altitude reading
	// before it is treated as missing.
	AltitudeStalenessWindow Duration `yaml:"altitude_staleness_window"`
	// SafetyHysteresisDuration is how long conditions must hold before an
	// emergency clears and before suspended phase progress resumes.
	SafetyHysteresisDuration Duration `yaml:"safety_hysteresis_duration"`

	// Error compensation.
	GainP        float64 `yaml:"gain_p"`
	GainI        float64 `yaml:"gain_i"`
	MaxComp      float64 `yaml:"max_comp"`
	ErrorHistory int     `yaml:"error_history"`

	// Trajectory shaping.
	BlendWindow     Duration `yaml:"blend_window"`
	HoldTimeout     Duration `yaml:"hold_timeout"`
	ControlPeriod   Duration `yaml:"control_period"`
	MaxAngleDegrees float64  `yaml:"max_angle_degrees"`
	DepthTolerance  float64  `yaml:"depth_tolerance"`

	// Commanded depth limits (metres below surface).
	MinDepth float64 `yaml:"min_depth"`
	MaxDepth float64 `yaml:"max_depth"`

	// Navigation bridge TCP listen address.
	BridgeListenAddr string `yaml:"bridge_listen_addr"`

	// Backseat driver API.
	BackseatHost            string   `yaml:"backseat_host"`
	BackseatPort            int      `yaml:"backseat_port"`
	BackseatTimeout         Duration `yaml:"backseat_timeout"`
	OverloadCommandDuration Duration `yaml:"overload_command_duration"`

	// Line-start detection tolerances.
	LineStartToleranceMeters  float64 `yaml:"line_start_tolerance_meters"`
	LineStartToleranceDepth   float64 `yaml:"line_start_tolerance_depth_meters"`
	LineStartToleranceHeading float64 `yaml:"line_start_tolerance_heading_degrees"`
	// WaypointToleranceMeters applies to segment start/end coordinate checks.
	WaypointToleranceMeters float64 `yaml:"waypoint_tolerance_meters"`

	// Mission parameter files directory.
	ParamsDirectory string `yaml:"params_directory"`

	// Simulated altitude source for bench testing.
	SimMode               bool    `yaml:"sim_mode"`
	SimInitialBottomDepth float64 `yaml:"sim_initial_bottom_depth"`
}

// Default returns the configuration defaults. Load starts from these, so a
// partial YAML file is safe.
func Default() Config {
	return Config{
		WarningAltitude:          5.0,
		EmergencyAltitude:        2.0,
		SafetyMargin:             0.5,
		AltitudeStalenessWindow:  Duration(3 * time.Second),
		SafetyHysteresisDuration: Duration(10 * time.Second),

		GainP:        0.4,
		GainI:        0.05,
		MaxComp:      1.0,
		ErrorHistory: 50,

		BlendWindow:     Duration(5 * time.Second),
		HoldTimeout:     Duration(120 * time.Second),
		ControlPeriod:   Duration(time.Second),
		MaxAngleDegrees: 15.0,
		DepthTolerance:  0.25,

		MinDepth: 1.0,
		MaxDepth: 95.0,

		BridgeListenAddr: ":29471",

		BackseatHost:            "127.0.0.1",
		BackseatPort:            8000,
		BackseatTimeout:         Duration(2 * time.Second),
		OverloadCommandDuration: Duration(5 * time.Second),

		LineStartToleranceMeters:  15.0,
		LineStartToleranceDepth:   2.0,
		LineStartToleranceHeading: 20.0,
		WaypointToleranceMeters:   10.0,

		ParamsDirectory: "params",

		SimMode:               false,
		SimInitialBottomDepth: 20.0,
	}
}

// Load reads a YAML config file over the defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".yaml" && ext != ".yml" {
		return cfg, fmt.Errorf("config file must have .yaml extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return cfg, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return cfg, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration values. A failure here is fatal to
// mission start.
func (c *Config) Validate() error {
	if c.EmergencyAltitude <= 0 {
		return fmt.Errorf("emergency_altitude must be positive, got %v", c.EmergencyAltitude)
	}
	if c.EmergencyAltitude >= c.WarningAltitude {
		return fmt.Errorf("emergency_altitude (%v) must be below warning_altitude (%v)",
			c.EmergencyAltitude, c.WarningAltitude)
	}
	if c.SafetyMargin < 0 {
		return fmt.Errorf("safety_margin must be non-negative, got %v", c.SafetyMargin)
	}
	if c.AltitudeStalenessWindow <= 0 {
		return fmt.Errorf("altitude_staleness_window must be positive, got %v", c.AltitudeStalenessWindow)
	}
	if c.SafetyHysteresisDuration <= 0 {
		return fmt.Errorf("safety_hysteresis_duration must be positive, got %v", c.SafetyHysteresisDuration)
	}
	if c.MaxComp < 0 {
		return fmt.Errorf("max_comp must be non-negative, got %v", c.MaxComp)
	}
	if c.ErrorHistory < 1 {
		return fmt.Errorf("error_history must be >= 1, got %d", c.ErrorHistory)
	}
	if c.BlendWindow <= 0 {
		return fmt.Errorf("blend_window must be positive, got %v", c.BlendWindow)
	}
	if c.HoldTimeout <= 0 {
		return fmt.Errorf("hold_timeout must be positive, got %v", c.HoldTimeout)
	}
	if c.ControlPeriod <= 0 {
		return fmt.Errorf("control_period must be positive, got %v", c.ControlPeriod)
	}
	if c.MaxAngleDegrees <= 0 || c.MaxAngleDegrees > 90 {
		return fmt.Errorf("max_angle_degrees must be in (0, 90], got %v", c.MaxAngleDegrees)
	}
	if c.DepthTolerance <= 0 {
		return fmt.Errorf("depth_tolerance must be positive, got %v", c.DepthTolerance)
	}
	if c.MinDepth < 0 || c.MaxDepth <= c.MinDepth {
		return fmt.Errorf("depth limits invalid: min=%v max=%v", c.MinDepth, c.MaxDepth)
	}
	if c.BackseatPort < 1 || c.BackseatPort > 65535 {
		return fmt.Errorf("backseat_port out of range: %d", c.BackseatPort)
	}
	if c.BackseatTimeout <= 0 {
		return fmt.Errorf("backseat_timeout must be positive, got %v", c.BackseatTimeout)
	}
	return nil
}
