package config

import (
	"github.com/banshee-data/vision.nav/internal/estimator"
	"github.com/banshee-data/vision.nav/internal/occupancy"
	"github.com/banshee-data/vision.nav/internal/serialmux"
	"github.com/banshee-data/vision.nav/internal/telemetry"
)

// EstimatorConfig returns the pipeline parameters.
func (c *VisionConfig) EstimatorConfig() estimator.Config {
	forward, right, down := c.GetOffset()
	return estimator.Config{
		Enabled:          c.GetEnable(),
		SpeedAlpha:       c.GetSpeedLowpass(),
		AttitudeAlpha:    c.GetAttLowpass(),
		MountOffset:      estimator.MountOffset(forward, right, down),
		InitWindow:       c.GetInitWindow(),
		MinBiasSamples:   c.GetMinBiasSamples(),
		ReinitCooldown:   c.GetReinitCooldown(),
		MinQuality:       estimator.QualityScore(c.GetMinQuality()),
		MaxTracks:        c.GetMaxTracks(),
		RetryBudget:      c.GetRetryBudget(),
		MaxSpeed:         c.GetMaxSpeed(),
		MaxRotationSpeed: c.GetMaxRotationSpeed(),
		HeadingTolerance: c.GetHeadingTolerance(),
		ReinitLogEvery:   c.GetReinitLogEvery(),
		DetectorCycle:    c.GetDetectorCycle(),
	}
}

// PublisherConfig returns the link output settings.
func (c *VisionConfig) PublisherConfig() telemetry.PublisherConfig {
	return telemetry.PublisherConfig{
		PublishPosition: c.GetPublishPos(),
		PublishVelocity: c.GetPublishSpeed(),
		ErrorBudget:     c.GetPublishErrorBudget(),
		Spacing:         c.GetPublishSpacing(),
		NoticeEvery:     c.GetReinitLogEvery(),
	}
}

// UpdaterConfig returns the scan-line sampling for the occupancy updater.
func (c *VisionConfig) UpdaterConfig() occupancy.UpdaterConfig {
	return occupancy.UpdaterConfig{
		HorizonRow:  c.GetMapHorizonRow(),
		RowStep:     c.GetMapRowStep(),
		RowSamples:  c.GetMapRowSamples(),
		MaxDistance: c.GetMapMaxDistance(),
		MinAltitude: c.GetMapMinAltitude(),
	}
}

// SerialOptions returns the port settings for the serial mux. Unset values
// are filled in by PortOptions.Normalize.
func (c *VisionConfig) SerialOptions() serialmux.PortOptions {
	if c.Serial == nil {
		return serialmux.PortOptions{}
	}
	return serialmux.PortOptions{
		BaudRate: c.Serial.BaudRate,
		DataBits: c.Serial.DataBits,
		StopBits: c.Serial.StopBits,
		Parity:   c.Serial.Parity,
	}
}
