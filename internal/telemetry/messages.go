// Package telemetry carries estimator output to the autopilot link and the
// autopilot's vehicle state back into the estimator.
package telemetry

import (
	"github.com/banshee-data/vision.nav/internal/occupancy"
)

// Message types as they appear in the "type" field on the link.
const (
	TypePosition     = "vision_position_estimate"
	TypeVelocity     = "vision_speed_estimate"
	TypeStatus       = "msp_vision"
	TypeNotice       = "statustext"
	TypeTimeSync     = "timesync"
	TypeSystemStatus = "msp_status"
	TypeGrid         = "msp_micro_grid"
	TypeAttitude     = "attitude"
	TypeLocalPos     = "local_position"
)

// Message is anything a Sink can carry.
type Message interface {
	MessageType() string
}

// PositionEstimate is the fused NED position and attitude.
type PositionEstimate struct {
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Z           float64 `json:"z"`
	Roll        float64 `json:"roll"`
	Pitch       float64 `json:"pitch"`
	Yaw         float64 `json:"yaw"`
	TimestampUS int64   `json:"usec"`
}

func (PositionEstimate) MessageType() string { return TypePosition }

// VelocityEstimate is the fused NED velocity.
type VelocityEstimate struct {
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Z           float64 `json:"z"`
	Valid       bool    `json:"valid"`
	TimestampUS int64   `json:"usec"`
}

func (VelocityEstimate) MessageType() string { return TypeVelocity }

// Flags report which estimates were published in a frame.
type Flags uint8

const (
	FlagPosition Flags = 1 << iota
	FlagVelocity
)

// VisionStatus is the per-frame heartbeat of the estimator.
type VisionStatus struct {
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Z           float64 `json:"z"`
	VX          float64 `json:"vx"`
	VY          float64 `json:"vy"`
	VZ          float64 `json:"vz"`
	Roll        float64 `json:"r"`
	Pitch       float64 `json:"p"`
	Yaw         float64 `json:"yaw"`
	HeadingDeg  float64 `json:"h"`
	Quality     int     `json:"quality"`
	FPS         float64 `json:"fps"`
	Errors      int     `json:"errors"`
	Flags       Flags   `json:"flags"`
	State       string  `json:"state"`
	TimestampUS int64   `json:"tms"`
}

func (VisionStatus) MessageType() string { return TypeStatus }

// Severity follows the autopilot's syslog-style levels.
type Severity int

const (
	SeverityError   Severity = 3
	SeverityWarning Severity = 4
	SeverityNotice  Severity = 5
	SeverityInfo    Severity = 6
)

// LogNotice is a one-line message for the ground station log.
type LogNotice struct {
	Severity    Severity `json:"severity"`
	Text        string   `json:"text"`
	TimestampUS int64    `json:"usec"`
}

func (LogNotice) MessageType() string { return TypeNotice }

// TimeSync lets the autopilot estimate the link clock offset.
type TimeSync struct {
	TC1 int64 `json:"tc1"`
	TS1 int64 `json:"ts1"`
}

func (TimeSync) MessageType() string { return TypeTimeSync }

// SystemStatus describes the companion process.
type SystemStatus struct {
	UptimeMS    int64   `json:"uptime_ms"`
	Goroutines  int     `json:"goroutines"`
	HeapMB      float64 `json:"heap_mb"`
	Version     string  `json:"version"`
	LinkErrors  int     `json:"link_errors"`
	VisionState string  `json:"vision_state"`
}

func (SystemStatus) MessageType() string { return TypeSystemStatus }

// GridTransfer carries changed occupancy cells to the autopilot.
type GridTransfer struct {
	Resolution float64          `json:"resolution"`
	Extent     float64          `json:"extent"`
	Cells      []occupancy.Cell `json:"cells"`
}

func (GridTransfer) MessageType() string { return TypeGrid }
