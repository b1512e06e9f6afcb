// Package config loads the pipeline parameters. Every field is optional;
// the Get* accessors fall back to the flight-tested defaults.
package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/vision.nav/internal/occupancy"
)

// DefaultConfigPath is the canonical defaults file, relative to the
// repository root.
const DefaultConfigPath = "config/vision.defaults.json"

const maxFileSize = 1 * 1024 * 1024 // 1MB

// VisionConfig is the on-disk configuration. The key names match the
// parameter names used on the autopilot side so one file can serve both.
type VisionConfig struct {
	// Pipeline switches
	Enable        *bool    `json:"vision_enable,omitempty" yaml:"vision_enable,omitempty"`
	PublishPos    *bool    `json:"vision_pub_pos,omitempty" yaml:"vision_pub_pos,omitempty"`
	PublishSpeed  *bool    `json:"vision_pub_speed,omitempty" yaml:"vision_pub_speed,omitempty"`
	SpeedLowpass  *float64 `json:"vision_speed_lowpass,omitempty" yaml:"vision_speed_lowpass,omitempty"`
	AttLowpass    *float64 `json:"vision_attitude_lowpass,omitempty" yaml:"vision_attitude_lowpass,omitempty"`
	OffsetX       *float64 `json:"vision_x_offset,omitempty" yaml:"vision_x_offset,omitempty"`                // body forward, metres
	OffsetY       *float64 `json:"vision_y_offset,omitempty" yaml:"vision_y_offset,omitempty"`                // body right
	OffsetZ       *float64 `json:"vision_z_offset,omitempty" yaml:"vision_z_offset,omitempty"`                // body down
	DetectorCycle *int     `json:"vision_detector_cycle,omitempty" yaml:"vision_detector_cycle,omitempty"`    // ms, 0 disables mapping
	Debug         *bool    `json:"vision_debug,omitempty" yaml:"vision_debug,omitempty"`

	// Initialisation and gating
	InitWindow       *string  `json:"init_window,omitempty" yaml:"init_window,omitempty"`                  // duration string like "600ms"
	MinBiasSamples   *int     `json:"min_bias_samples,omitempty" yaml:"min_bias_samples,omitempty"`
	ReinitCooldown   *string  `json:"reinit_cooldown,omitempty" yaml:"reinit_cooldown,omitempty"`
	MinQuality       *int     `json:"min_quality,omitempty" yaml:"min_quality,omitempty"`
	MaxTracks        *int     `json:"max_tracks,omitempty" yaml:"max_tracks,omitempty"`
	RetryBudget      *int     `json:"quality_retry_budget,omitempty" yaml:"quality_retry_budget,omitempty"`
	MaxSpeed         *float64 `json:"max_speed,omitempty" yaml:"max_speed,omitempty"`
	MaxRotationSpeed *float64 `json:"max_rotation_speed,omitempty" yaml:"max_rotation_speed,omitempty"`
	HeadingTolerance *float64 `json:"heading_tolerance,omitempty" yaml:"heading_tolerance,omitempty"`
	ReinitLogEvery   *int     `json:"reinit_log_every,omitempty" yaml:"reinit_log_every,omitempty"`

	// Link
	PublishErrorBudget *int    `json:"publish_error_budget,omitempty" yaml:"publish_error_budget,omitempty"`
	PublishSpacing     *string `json:"publish_spacing,omitempty" yaml:"publish_spacing,omitempty"`
	HeartbeatInterval  *string `json:"heartbeat_interval,omitempty" yaml:"heartbeat_interval,omitempty"`
	TransferInterval   *string `json:"transfer_interval,omitempty" yaml:"transfer_interval,omitempty"`
	TransferMaxCells   *int    `json:"transfer_max_cells,omitempty" yaml:"transfer_max_cells,omitempty"`

	// Occupancy mapping
	MapMinAltitude *float64 `json:"map_min_altitude,omitempty" yaml:"map_min_altitude,omitempty"`
	MapMaxDistance *float64 `json:"map_max_distance,omitempty" yaml:"map_max_distance,omitempty"`
	MapHorizonRow  *int     `json:"map_horizon_row,omitempty" yaml:"map_horizon_row,omitempty"`
	MapRowStep     *int     `json:"map_row_step,omitempty" yaml:"map_row_step,omitempty"`
	MapRowSamples  *int     `json:"map_row_samples,omitempty" yaml:"map_row_samples,omitempty"`
	GridResolution *float64 `json:"grid_resolution,omitempty" yaml:"grid_resolution,omitempty"`
	GridExtent     *float64 `json:"grid_extent,omitempty" yaml:"grid_extent,omitempty"`

	// Flight recorder keeps one status sample in RecordEvery.
	RecordEvery *int `json:"record_every,omitempty" yaml:"record_every,omitempty"`

	Serial *SerialConfig `json:"serial,omitempty" yaml:"serial,omitempty"`
}

// SerialConfig selects the autopilot serial port.
type SerialConfig struct {
	Port     string `json:"port" yaml:"port"`
	BaudRate int    `json:"baud_rate" yaml:"baud_rate"`
	DataBits int    `json:"data_bits" yaml:"data_bits"`
	StopBits int    `json:"stop_bits" yaml:"stop_bits"`
	Parity   string `json:"parity" yaml:"parity"`
}

// LoadVisionConfig reads a .json, .yaml or .yml file. Omitted fields keep
// their defaults, so partial configs are safe.
func LoadVisionConfig(path string) (*VisionConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &VisionConfig{}
	if ext == ".json" {
		err = json.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", strings.TrimPrefix(ext, "."), err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath from the current directory
// or one of its parents. It panics if the file cannot be loaded and is meant
// for test setup.
func MustLoadDefaultConfig() *VisionConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadVisionConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks the fields that are set.
func (c *VisionConfig) Validate() error {
	for name, v := range map[string]*float64{
		"vision_speed_lowpass":    c.SpeedLowpass,
		"vision_attitude_lowpass": c.AttLowpass,
	} {
		if v != nil && (*v < 0 || *v >= 1) {
			return fmt.Errorf("%s must be in [0, 1), got %f", name, *v)
		}
	}

	for name, v := range map[string]*string{
		"init_window":        c.InitWindow,
		"reinit_cooldown":    c.ReinitCooldown,
		"publish_spacing":    c.PublishSpacing,
		"heartbeat_interval": c.HeartbeatInterval,
		"transfer_interval":  c.TransferInterval,
	} {
		if v == nil || *v == "" {
			continue
		}
		d, err := time.ParseDuration(*v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must not be negative, got %s", name, *v)
		}
	}

	if c.MinQuality != nil && (*c.MinQuality < 0 || *c.MinQuality > 100) {
		return fmt.Errorf("min_quality must be between 0 and 100, got %d", *c.MinQuality)
	}

	for name, v := range map[string]*int{
		"max_tracks":       c.MaxTracks,
		"map_row_samples":  c.MapRowSamples,
		"min_bias_samples": c.MinBiasSamples,
		"reinit_log_every": c.ReinitLogEvery,
		"record_every":     c.RecordEvery,
	} {
		if v != nil && *v < 1 {
			return fmt.Errorf("%s must be at least 1, got %d", name, *v)
		}
	}

	for name, v := range map[string]*int{
		"quality_retry_budget":  c.RetryBudget,
		"publish_error_budget":  c.PublishErrorBudget,
		"vision_detector_cycle": c.DetectorCycle,
		"transfer_max_cells":    c.TransferMaxCells,
		"map_horizon_row":       c.MapHorizonRow,
		"map_row_step":          c.MapRowStep,
	} {
		if v != nil && *v < 0 {
			return fmt.Errorf("%s must not be negative, got %d", name, *v)
		}
	}

	for name, v := range map[string]*float64{
		"max_speed":          c.MaxSpeed,
		"max_rotation_speed": c.MaxRotationSpeed,
		"heading_tolerance":  c.HeadingTolerance,
		"map_max_distance":   c.MapMaxDistance,
		"grid_resolution":    c.GridResolution,
		"grid_extent":        c.GridExtent,
	} {
		if v != nil && *v <= 0 {
			return fmt.Errorf("%s must be positive, got %f", name, *v)
		}
	}

	if c.GetGridExtent() < c.GetGridResolution() {
		return fmt.Errorf("grid_extent %.2f is smaller than grid_resolution %.2f", c.GetGridExtent(), c.GetGridResolution())
	}
	if side := math.Ceil(c.GetGridExtent() / c.GetGridResolution()); side > occupancy.MaxSize {
		return fmt.Errorf("grid_extent/grid_resolution gives %.0f cells per side, max %d", side, occupancy.MaxSize)
	}

	if c.Serial != nil {
		if _, err := c.SerialOptions().Normalize(); err != nil {
			return fmt.Errorf("invalid serial options: %w", err)
		}
	}
	return nil
}

func getBool(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

func getFloat(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

func getInt(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func getDuration(p *string, def time.Duration) time.Duration {
	if p == nil || *p == "" {
		return def
	}
	d, err := time.ParseDuration(*p)
	if err != nil {
		return def
	}
	return d
}

func (c *VisionConfig) GetEnable() bool {
	return getBool(c.Enable, true)
}

func (c *VisionConfig) GetPublishPos() bool {
	return getBool(c.PublishPos, true)
}

func (c *VisionConfig) GetPublishSpeed() bool {
	return getBool(c.PublishSpeed, true)
}

func (c *VisionConfig) GetSpeedLowpass() float64 {
	return getFloat(c.SpeedLowpass, 0)
}

func (c *VisionConfig) GetAttLowpass() float64 {
	return getFloat(c.AttLowpass, 0)
}

func (c *VisionConfig) GetDebug() bool {
	return getBool(c.Debug, false)
}

// GetOffset returns the camera mount offset in body axes (forward, right,
// down).
func (c *VisionConfig) GetOffset() (forward, right, down float64) {
	return getFloat(c.OffsetX, 0), getFloat(c.OffsetY, 0), getFloat(c.OffsetZ, 0)
}

// GetDetectorCycle returns the mapping period. Zero disables mapping.
func (c *VisionConfig) GetDetectorCycle() time.Duration {
	return time.Duration(getInt(c.DetectorCycle, 0)) * time.Millisecond
}

func (c *VisionConfig) GetInitWindow() time.Duration {
	return getDuration(c.InitWindow, 600*time.Millisecond)
}

func (c *VisionConfig) GetMinBiasSamples() int {
	return getInt(c.MinBiasSamples, 1)
}

func (c *VisionConfig) GetReinitCooldown() time.Duration {
	return getDuration(c.ReinitCooldown, 600*time.Millisecond)
}

func (c *VisionConfig) GetMinQuality() int {
	return getInt(c.MinQuality, 15)
}

func (c *VisionConfig) GetMaxTracks() int {
	return getInt(c.MaxTracks, 160)
}

func (c *VisionConfig) GetRetryBudget() int {
	return getInt(c.RetryBudget, 5)
}

func (c *VisionConfig) GetMaxSpeed() float64 {
	return getFloat(c.MaxSpeed, 15)
}

func (c *VisionConfig) GetMaxRotationSpeed() float64 {
	return getFloat(c.MaxRotationSpeed, 4)
}

func (c *VisionConfig) GetHeadingTolerance() float64 {
	return getFloat(c.HeadingTolerance, 0.1)
}

func (c *VisionConfig) GetReinitLogEvery() int {
	return getInt(c.ReinitLogEvery, 1)
}

func (c *VisionConfig) GetPublishErrorBudget() int {
	return getInt(c.PublishErrorBudget, 3)
}

func (c *VisionConfig) GetTransferMaxCells() int {
	return getInt(c.TransferMaxCells, 64)
}

func (c *VisionConfig) GetMapMinAltitude() float64 {
	return getFloat(c.MapMinAltitude, 0.3)
}

func (c *VisionConfig) GetMapMaxDistance() float64 {
	return getFloat(c.MapMaxDistance, 3.0)
}

func (c *VisionConfig) GetMapHorizonRow() int {
	return getInt(c.MapHorizonRow, 180)
}

func (c *VisionConfig) GetMapRowStep() int {
	return getInt(c.MapRowStep, 5)
}

func (c *VisionConfig) GetMapRowSamples() int {
	return getInt(c.MapRowSamples, 7)
}

func (c *VisionConfig) GetGridResolution() float64 {
	return getFloat(c.GridResolution, 0.1)
}

func (c *VisionConfig) GetGridExtent() float64 {
	return getFloat(c.GridExtent, 40)
}

func (c *VisionConfig) GetRecordEvery() int {
	return getInt(c.RecordEvery, 10)
}

func (c *VisionConfig) GetPublishSpacing() time.Duration {
	return getDuration(c.PublishSpacing, 2*time.Millisecond)
}

func (c *VisionConfig) GetHeartbeatInterval() time.Duration {
	return getDuration(c.HeartbeatInterval, 500*time.Millisecond)
}

func (c *VisionConfig) GetTransferInterval() time.Duration {
	return getDuration(c.TransferInterval, 50*time.Millisecond)
}

// GetSerialPort returns the configured device path, or "" when none is set.
func (c *VisionConfig) GetSerialPort() string {
	if c.Serial == nil {
		return ""
	}
	return c.Serial.Port
}
