package estimator

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/vision.nav/internal/geometry"
	"github.com/banshee-data/vision.nav/internal/monitoring"
	"github.com/banshee-data/vision.nav/internal/occupancy"
	"github.com/banshee-data/vision.nav/internal/odometry"
	"github.com/banshee-data/vision.nav/internal/telemetry"
	"github.com/banshee-data/vision.nav/internal/timeutil"
)

// Config holds the pipeline parameters. It is read once at construction.
type Config struct {
	Enabled          bool
	SpeedAlpha       float64
	AttitudeAlpha    float64
	MountOffset      r3.Vec // vision axes, see MountOffset
	InitWindow       time.Duration
	MinBiasSamples   int
	ReinitCooldown   time.Duration
	MinQuality       QualityScore
	MaxTracks        int
	RetryBudget      int
	MaxSpeed         float64
	MaxRotationSpeed float64
	HeadingTolerance float64
	ReinitLogEvery   int
	DetectorCycle    time.Duration // 0 disables map updates
}

// DefaultConfig returns the flight-tested defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:          true,
		InitWindow:       600 * time.Millisecond,
		MinBiasSamples:   1,
		ReinitCooldown:   600 * time.Millisecond,
		MinQuality:       15,
		MaxTracks:        160,
		RetryBudget:      5,
		MaxSpeed:         15,
		MaxRotationSpeed: 4,
		HeadingTolerance: 0.1,
		ReinitLogEvery:   1,
	}
}

// VehicleSource supplies the autopilot's view of the vehicle.
type VehicleSource interface {
	Vehicle() telemetry.VehicleState
}

// Publisher is the outbound side of the pipeline.
type Publisher interface {
	Publish(telemetry.Estimate) telemetry.VisionStatus
	Notice(sev telemetry.Severity, text string)
}

// MapUpdater consumes accepted frames for obstacle mapping.
type MapUpdater interface {
	Update(proj occupancy.PixelProjector, width, height int, navPose geometry.RigidTransform) int
	ResetOrigin(localNED r3.Vec) bool
}

// Command changes the pipeline from outside the frame loop.
type Command int

const (
	CommandEnable Command = iota + 1
	CommandDisable
	CommandReset
)

func (c Command) String() string {
	switch c {
	case CommandEnable:
		return "enable"
	case CommandDisable:
		return "disable"
	case CommandReset:
		return "reset"
	default:
		return fmt.Sprintf("command(%d)", int(c))
	}
}

// Outcome classifies what happened to a frame.
type Outcome int

const (
	OutcomeDisabled Outcome = iota
	OutcomeFaulting
	OutcomeLearning
	OutcomeSkipped
	OutcomeRejected
	OutcomeAccepted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDisabled:
		return "disabled"
	case OutcomeFaulting:
		return "faulting"
	case OutcomeLearning:
		return "learning"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeRejected:
		return "rejected"
	case OutcomeAccepted:
		return "accepted"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// FrameResult describes one processed frame.
type FrameResult struct {
	Outcome Outcome
	State   State // state after the frame
	Quality QualityScore
	Err     error // *RejectError when Outcome is OutcomeRejected
	Reinit  bool  // a re-init was executed during the frame
	Status  telemetry.VisionStatus
	Mapped  int // occupancy updates written
}

// Estimator runs the pose-fusion pipeline. ProcessFrame, Start and command
// handling must all run on one goroutine; Status and CurrentState are safe
// from any goroutine.
type Estimator struct {
	cfg     Config
	engine  odometry.Engine
	vehicle VehicleSource
	pub     Publisher
	mapper  MapUpdater
	clock   timeutil.Clock

	machine  *Machine
	gate     Gate
	bias     *BiasAccumulator
	velocity LowPass
	attitude AttitudeLowPass
	fps      FPSMeter
	notices  *monitoring.Coalescer

	enabled    bool
	quality    QualityScore
	errorCount int
	nedPos     r3.Vec
	prevNav    r3.Vec
	prevTime   time.Time
	hasPrev    bool
	lastDetect time.Time

	commands chan Command
	status   atomic.Pointer[telemetry.VisionStatus]
	state    atomic.Int32
}

// Option configures an Estimator.
type Option func(*Estimator)

// WithMap feeds accepted frames to m every Config.DetectorCycle.
func WithMap(m MapUpdater) Option {
	return func(e *Estimator) { e.mapper = m }
}

// WithClock replaces the real clock.
func WithClock(c timeutil.Clock) Option {
	return func(e *Estimator) { e.clock = c }
}

// New wires an estimator. Start must be called before frames are processed.
func New(cfg Config, engine odometry.Engine, vehicle VehicleSource, pub Publisher, opts ...Option) *Estimator {
	e := &Estimator{
		cfg:      cfg,
		engine:   engine,
		vehicle:  vehicle,
		pub:      pub,
		clock:    timeutil.RealClock{},
		bias:     NewBiasAccumulator(),
		velocity: LowPass{Alpha: cfg.SpeedAlpha},
		attitude: AttitudeLowPass{Alpha: cfg.AttitudeAlpha},
		notices:  monitoring.NewCoalescer(cfg.ReinitLogEvery),
		enabled:  cfg.Enabled,
		commands: make(chan Command, 8),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.gate = Gate{
		MinQuality:       cfg.MinQuality,
		RetryBudget:      cfg.RetryBudget,
		MaxRotationSpeed: cfg.MaxRotationSpeed,
		MaxSpeed:         cfg.MaxSpeed,
		HeadingTolerance: cfg.HeadingTolerance,
	}
	e.machine = NewMachine(e.clock, cfg.ReinitCooldown)
	e.state.Store(int32(e.machine.State()))
	e.status.Store(&telemetry.VisionStatus{State: e.machine.State().String()})
	return e
}

// Start performs the start-up re-init, bypassing the cooldown.
func (e *Estimator) Start() {
	monitoring.Logf("[vis] odometry enabled=%v speed_lowpass=%.2f attitude_lowpass=%.2f offset=%v",
		e.enabled, e.cfg.SpeedAlpha, e.cfg.AttitudeAlpha, e.cfg.MountOffset)
	e.reinit("StartUp", true)
}

// Submit queues a command for the frame goroutine.
func (e *Estimator) Submit(c Command) error {
	select {
	case e.commands <- c:
		return nil
	default:
		return ErrCommandQueueFull
	}
}

// Status returns the last published status.
func (e *Estimator) Status() telemetry.VisionStatus {
	return *e.status.Load()
}

// CurrentState returns the state as of the last frame or command.
func (e *Estimator) CurrentState() State {
	return State(e.state.Load())
}

// Run processes frames until ctx is done or frames is closed. Commands are
// applied between frames.
func (e *Estimator) Run(ctx context.Context, frames <-chan odometry.Frame) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c := <-e.commands:
			e.apply(c)
		case f, ok := <-frames:
			if !ok {
				return nil
			}
			e.ProcessFrame(f)
		}
	}
}

func (e *Estimator) drainCommands() {
	for {
		select {
		case c := <-e.commands:
			e.apply(c)
		default:
			return
		}
	}
}

func (e *Estimator) apply(c Command) {
	monitoring.Debugf("[vis] command %s", c)
	switch c {
	case CommandEnable:
		e.enabled = true
		e.reinit("Init", false)
	case CommandDisable:
		e.enabled = false
	case CommandReset:
		e.reinit("msp reset", true)
	}
}

// reinit resets the engine and all pipeline memory and enters Initializing.
// A non-forced request is dropped inside the cooldown. It reports whether
// the re-init ran.
func (e *Estimator) reinit(reason string, force bool) bool {
	if !e.enabled {
		return false
	}
	if force {
		e.machine.ForceReinit()
	} else if !e.machine.RequestReinit() {
		return false
	}
	e.state.Store(int32(e.machine.State()))

	e.errorCount++
	if total, report := e.notices.Hit(); report {
		msg := fmt.Sprintf("[vis] reset odometry: %s", reason)
		e.pub.Notice(telemetry.SeverityNotice, msg)
		monitoring.Logf("%s (%d total)", msg, total)
	}

	e.engine.Reset()
	e.gate.Reset()
	e.bias.Reset()
	e.velocity.Reset()
	e.attitude.Reset()
	e.fps.Reset()
	e.quality = 0
	e.nedPos = r3.Vec{}
	e.hasPrev = false

	e.publish(false)

	if e.mapper != nil {
		e.lastDetect = e.clock.Now()
		e.mapper.ResetOrigin(e.vehicle.Vehicle().Position)
	}
	return true
}

func (e *Estimator) publish(fresh bool) telemetry.VisionStatus {
	st := e.pub.Publish(telemetry.Estimate{
		Position: e.nedPos,
		Velocity: e.velocity.Value(),
		Attitude: e.attitude.Value(),
		Quality:  int(e.quality),
		FPS:      e.fps.FPS(),
		Errors:   e.errorCount,
		State:    e.machine.State().String(),
		Enabled:  e.enabled,
		Fresh:    fresh,
	})
	e.status.Store(&st)
	e.state.Store(int32(e.machine.State()))
	return st
}

// ProcessFrame runs one frame through the pipeline. Gate rejections are
// handled internally and reported in the result, never returned as errors.
func (e *Estimator) ProcessFrame(f odometry.Frame) FrameResult {
	e.drainCommands()

	var res FrameResult
	switch {
	case !e.enabled:
		res.Outcome = OutcomeDisabled
	case e.machine.State() == Faulting:
		res.Outcome = OutcomeFaulting
		res.Reinit = e.reinit("Faulting", false)
	default:
		res = e.track(f)
	}

	if !res.Reinit {
		res.Status = e.publish(res.Outcome == OutcomeAccepted)
	} else {
		res.Status = e.Status()
	}
	res.State = e.machine.State()
	res.Quality = e.quality
	return res
}

// track runs the gate, converter and filters on an Initializing or Running
// frame.
func (e *Estimator) track(f odometry.Frame) FrameResult {
	now := e.clock.Now()
	e.fps.Tick(now)
	veh := e.vehicle.Vehicle()

	if err := e.gate.CheckRotation(veh.Rates); err != nil {
		return e.rejectFrame(err)
	}
	if err := e.processEngine(f); err != nil {
		return e.rejectFrame(err)
	}
	e.quality = NormalizeQuality(e.engine.Quality(), e.cfg.MaxTracks)

	if e.machine.State() == Initializing {
		return e.learn(now, veh)
	}

	skip, err := e.gate.CheckQuality(e.quality)
	if err != nil {
		return e.rejectFrame(err)
	}
	if skip {
		return FrameResult{Outcome: OutcomeSkipped}
	}

	est, err := e.estimate(now, veh)
	if errors.Is(err, errNoElapsed) {
		monitoring.Debugf("[vis] no time elapsed since last accepted frame, skipped")
		return FrameResult{Outcome: OutcomeSkipped}
	}
	if err != nil {
		return e.rejectFrame(err)
	}
	e.commit(est)

	res := FrameResult{Outcome: OutcomeAccepted}
	res.Mapped = e.updateMap(now, f, veh)
	return res
}

// processEngine calls the engine and folds a false return, an error or a
// panic into one tracking failure.
func (e *Estimator) processEngine(f odometry.Frame) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = reject(ErrTrackingFailure, fmt.Sprintf("engine panic: %v", r), 0, 0)
		}
	}()
	ok, perr := e.engine.Process(f.Gray, f.Depth)
	if perr != nil {
		return reject(ErrTrackingFailure, perr.Error(), 0, 0)
	}
	if !ok {
		return reject(ErrTrackingFailure, "odometry", 0, 0)
	}
	return nil
}

// learn adds a bias sample and leaves Initializing once the window is over.
func (e *Estimator) learn(now time.Time, veh telemetry.VehicleState) FrameResult {
	if e.quality > e.cfg.MinQuality {
		e.bias.Add(veh.Attitude)
	}
	if now.Sub(e.machine.Entered()) < e.cfg.InitWindow {
		return FrameResult{Outcome: OutcomeLearning}
	}
	if e.bias.Samples() < e.cfg.MinBiasSamples {
		e.machine.ExtendWindow()
		monitoring.Debugf("[vis] no usable bias samples, extending init window")
		return FrameResult{Outcome: OutcomeLearning}
	}

	if _, err := e.machine.Fire(EventBiasReady); err != nil {
		monitoring.Logf("[vis] %v", err)
		return FrameResult{Outcome: OutcomeLearning}
	}
	e.velocity.Reset()
	e.attitude.Reset()
	e.gate.Reset()
	e.nedPos = r3.Vec{}
	e.hasPrev = false
	mean := e.bias.Mean()
	monitoring.Debugf("[vis] bias learned from %d samples: roll=%.3f pitch=%.3f yaw=%.3f",
		e.bias.Samples(), mean.Roll, mean.Pitch, mean.Yaw)
	return FrameResult{Outcome: OutcomeLearning}
}

// frameEstimate holds everything a frame would change. It is committed only
// after every gate check passed.
type frameEstimate struct {
	now      time.Time
	dt       float64
	navPos   r3.Vec
	velocity r3.Vec // raw NED
	attitude geometry.Euler
}

func (e *Estimator) estimate(now time.Time, veh telemetry.VehicleState) (frameEstimate, error) {
	nav := ToNav(e.engine.CameraToWorld(), e.bias.Bias(), e.cfg.MountOffset)
	est := frameEstimate{now: now, navPos: nav.T}

	if e.hasPrev {
		dt := now.Sub(e.prevTime).Seconds()
		if dt <= 0 {
			return est, errNoElapsed
		}
		v := r3.Scale(1/dt, r3.Sub(nav.T, e.prevNav))
		if err := e.gate.CheckSpeed(v); err != nil {
			return est, err
		}
		est.dt = dt
		est.velocity = geometry.ToNED(v)
	}

	est.attitude = nav.R.Euler()
	if err := e.gate.CheckHeading(est.attitude.Yaw, veh.Attitude.Yaw); err != nil {
		return est, err
	}
	return est, nil
}

func (e *Estimator) commit(est frameEstimate) {
	v := e.velocity.Update(est.velocity)
	e.nedPos = r3.Add(e.nedPos, r3.Scale(est.dt, v))
	e.attitude.Update(est.attitude)
	e.prevNav = est.navPos
	e.prevTime = est.now
	e.hasPrev = true
}

func (e *Estimator) rejectFrame(err error) FrameResult {
	var rej *RejectError
	if errors.As(err, &rej) {
		monitoring.Debugf("[vis] %v", rej)
	}
	if _, ferr := e.machine.Fire(EventReject); ferr != nil {
		monitoring.Logf("[vis] %v", ferr)
	}
	reason := err.Error()
	if rej != nil {
		reason = rej.Reason
	}
	return FrameResult{Outcome: OutcomeRejected, Err: err, Reinit: e.reinit(reason, false)}
}

func (e *Estimator) updateMap(now time.Time, f odometry.Frame, veh telemetry.VehicleState) int {
	if e.mapper == nil || e.cfg.DetectorCycle <= 0 {
		return 0
	}
	if now.Sub(e.lastDetect) <= e.cfg.DetectorCycle {
		return 0
	}
	e.lastDetect = now
	pose := geometry.RigidTransform{
		R: geometry.RotationFromEuler(veh.Attitude),
		T: geometry.FromNED(veh.Position),
	}
	return e.mapper.Update(e.engine, f.Width(), f.Height(), pose)
}
