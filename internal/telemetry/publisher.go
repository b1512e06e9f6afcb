package telemetry

import (
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/vision.nav/internal/geometry"
	"github.com/banshee-data/vision.nav/internal/monitoring"
	"github.com/banshee-data/vision.nav/internal/timeutil"
	"github.com/banshee-data/vision.nav/internal/units"
)

// PublisherConfig controls which estimates go out and how failures are
// handled.
type PublisherConfig struct {
	PublishPosition bool
	PublishVelocity bool
	// ErrorBudget is the number of consecutive failed frames tolerated
	// before one frame of position/velocity output is skipped.
	ErrorBudget int
	// Spacing is slept between the estimates and the status message.
	Spacing time.Duration
	// NoticeEvery coalesces send failures into one log line per N.
	NoticeEvery int
}

// Estimate is the estimator state handed to the publisher once per frame.
type Estimate struct {
	Position r3.Vec // NED, metres
	Velocity r3.Vec // NED, m/s
	Attitude geometry.Euler
	Quality  int
	FPS      float64
	Errors   int
	State    string
	// Enabled is false while odometry is switched off.
	Enabled bool
	// Fresh is true when this frame passed the gate and the estimate is new.
	Fresh bool
}

// Publisher emits estimates and the status heartbeat. It is driven from the
// frame goroutine only.
type Publisher struct {
	sink     Sink
	clock    timeutil.Clock
	cfg      PublisherConfig
	failing  int
	failures *monitoring.Coalescer
}

// NewPublisher returns a publisher writing to sink.
func NewPublisher(sink Sink, clock timeutil.Clock, cfg PublisherConfig) *Publisher {
	return &Publisher{
		sink:     sink,
		clock:    clock,
		cfg:      cfg,
		failures: monitoring.NewCoalescer(cfg.NoticeEvery),
	}
}

// Publish sends position and velocity for a fresh, enabled estimate and then
// the status message, which goes out every call. It returns the status as
// sent.
func (p *Publisher) Publish(e Estimate) VisionStatus {
	var flags Flags
	wanted := e.Fresh && e.Enabled && (p.cfg.PublishPosition || p.cfg.PublishVelocity)
	if wanted {
		if p.failing > p.cfg.ErrorBudget {
			monitoring.Debugf("[vis] skipping estimates after %d failed frames", p.failing)
			p.failing = 0
		} else {
			flags = p.sendEstimates(e)
		}
		p.clock.Sleep(p.cfg.Spacing)
	}

	status := statusOf(e, flags, p.clock.Now())
	if err := p.sink.Send(status); err != nil {
		p.fail(err)
	}
	return status
}

func (p *Publisher) sendEstimates(e Estimate) Flags {
	var flags Flags
	failed := false
	usec := p.clock.Now().UnixMicro()

	if p.cfg.PublishPosition {
		err := p.sink.Send(PositionEstimate{
			X: e.Position.X, Y: e.Position.Y, Z: e.Position.Z,
			Roll: e.Attitude.Roll, Pitch: e.Attitude.Pitch, Yaw: e.Attitude.Yaw,
			TimestampUS: usec,
		})
		if err != nil {
			p.fail(err)
			failed = true
		} else {
			flags |= FlagPosition
		}
	}
	if p.cfg.PublishVelocity {
		err := p.sink.Send(VelocityEstimate{
			X: e.Velocity.X, Y: e.Velocity.Y, Z: e.Velocity.Z,
			Valid:       true,
			TimestampUS: usec,
		})
		if err != nil {
			p.fail(err)
			failed = true
		} else {
			flags |= FlagVelocity
		}
	}

	if failed {
		p.failing++
	} else {
		p.failing = 0
	}
	return flags
}

// Notice sends a log line to the ground station.
func (p *Publisher) Notice(sev Severity, text string) {
	err := p.sink.Send(LogNotice{Severity: sev, Text: text, TimestampUS: p.clock.Now().UnixMicro()})
	if err != nil {
		p.fail(err)
	}
}

// Failures returns the total number of failed sends.
func (p *Publisher) Failures() int { return p.failures.Count() }

func (p *Publisher) fail(err error) {
	if total, report := p.failures.Hit(); report {
		monitoring.Logf("[link] publish failed (%d total): %v", total, err)
	}
}

func statusOf(e Estimate, flags Flags, now time.Time) VisionStatus {
	return VisionStatus{
		X: e.Position.X, Y: e.Position.Y, Z: e.Position.Z,
		VX: e.Velocity.X, VY: e.Velocity.Y, VZ: e.Velocity.Z,
		Roll: e.Attitude.Roll, Pitch: e.Attitude.Pitch, Yaw: e.Attitude.Yaw,
		HeadingDeg:  units.HeadingDegrees(e.Attitude.Yaw),
		Quality:     e.Quality,
		FPS:         e.FPS,
		Errors:      e.Errors,
		Flags:       flags,
		State:       e.State,
		TimestampUS: now.UnixMicro(),
	}
}
