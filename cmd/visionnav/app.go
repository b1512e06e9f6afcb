package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/banshee-data/vision.nav/internal/api"
	"github.com/banshee-data/vision.nav/internal/config"
	"github.com/banshee-data/vision.nav/internal/db"
	"github.com/banshee-data/vision.nav/internal/estimator"
	"github.com/banshee-data/vision.nav/internal/geometry"
	"github.com/banshee-data/vision.nav/internal/monitoring"
	"github.com/banshee-data/vision.nav/internal/occupancy"
	"github.com/banshee-data/vision.nav/internal/odometry"
	"github.com/banshee-data/vision.nav/internal/serialmux"
	"github.com/banshee-data/vision.nav/internal/telemetry"
	"github.com/banshee-data/vision.nav/internal/timeutil"
	"github.com/banshee-data/vision.nav/internal/version"
)

const (
	frameWidth    = 320
	frameHeight   = 240
	frameInterval = time.Second / 30

	vehicleFeedInterval = 20 * time.Millisecond
	healthInterval      = 250 * time.Millisecond
	snapshotInterval    = 60 * time.Second
)

type options struct {
	ConfigPath string
	Port       string
	Dev        bool
	Listen     string
	GRPCListen string
	DBPath     string
	Debug      bool

	// link replaces the serial port when set.
	link serialmux.Mux
}

// app owns every long-running component of the companion process.
type app struct {
	opts  options
	cfg   *config.VisionConfig
	clock timeutil.Clock

	link      serialmux.Mux
	vehicle   *telemetry.VehicleTracker
	synthetic *odometry.Synthetic
	grid      *occupancy.Grid
	est       *estimator.Estimator
	publisher *telemetry.Publisher
	router    *serialmux.Router
	heartbeat *telemetry.Heartbeat
	health    *api.Health
	server    *api.Server

	db       *db.DB
	recorder *db.Recorder
}

func loadConfig(path string) (*config.VisionConfig, error) {
	if path != "" {
		return config.LoadVisionConfig(path)
	}
	if _, err := os.Stat(config.DefaultConfigPath); err == nil {
		return config.LoadVisionConfig(config.DefaultConfigPath)
	}
	return &config.VisionConfig{}, nil
}

func newApp(opts options) (*app, error) {
	cfg, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	monitoring.SetDebug(opts.Debug || cfg.GetDebug())

	a := &app{
		opts:  opts,
		cfg:   cfg,
		clock: timeutil.RealClock{},
	}

	switch {
	case opts.link != nil:
		a.link = opts.link
	case opts.Dev:
		a.link = serialmux.NewDisabledSerialMux()
	default:
		path := opts.Port
		if path == "" {
			path = cfg.GetSerialPort()
		}
		if path == "" {
			return nil, errors.New("serial port is required outside dev mode")
		}
		link, err := serialmux.NewRealSerialMux(path, cfg.SerialOptions())
		if err != nil {
			return nil, err
		}
		a.link = link
		log.Printf("opened autopilot link on %s", path)
	}

	// The camera driver is linked by the deployment. Without it only dev mode
	// gets an engine; a live autopilot never sees synthetic estimates.
	estCfg := cfg.EstimatorConfig()
	var engine odometry.Engine = odometry.Unavailable{}
	if opts.Dev {
		a.synthetic = odometry.NewSynthetic(time.Now().UnixNano())
		engine = a.synthetic
	} else {
		estCfg.Enabled = false
		monitoring.Logf("[vis] no camera driver linked, odometry disabled")
	}

	a.vehicle = telemetry.NewVehicleTracker(a.clock)
	a.grid = occupancy.NewGrid(cfg.GetGridResolution(), cfg.GetGridExtent())

	var sink telemetry.Sink = telemetry.NewLinkSink(a.link)
	if opts.DBPath != "" {
		if a.db, err = db.Open(opts.DBPath); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to open flight recorder: %w", err)
		}
		a.recorder = db.NewRecorder(a.db, a.clock, db.RecorderConfig{RecordEvery: cfg.GetRecordEvery()})
		raw, err := json.Marshal(cfg)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to encode config for the session: %w", err)
		}
		if _, err := a.recorder.StartSession(version.String(), string(raw)); err != nil {
			a.Close()
			return nil, err
		}
		sink = telemetry.Tee{Primary: sink, Secondary: a.recorder}
	}

	a.publisher = telemetry.NewPublisher(sink, a.clock, cfg.PublisherConfig())
	a.est = estimator.New(estCfg, engine, a.vehicle, a.publisher,
		estimator.WithClock(a.clock),
		estimator.WithMap(occupancy.NewUpdater(a.grid, cfg.UpdaterConfig())),
	)

	a.server = api.NewServer(a.est, a.grid, "rad")
	if a.recorder != nil {
		a.server.SetTrajectorySource(a.recorder)
	}
	a.router = &serialmux.Router{Vehicle: a.vehicle, OnCommand: a.server.ApplyCommand}
	a.heartbeat = &telemetry.Heartbeat{
		Sink:             sink,
		Clock:            a.clock,
		Status:           a.est,
		Grid:             a.grid,
		Interval:         cfg.GetHeartbeatInterval(),
		TransferInterval: cfg.GetTransferInterval(),
		MaxCells:         cfg.GetTransferMaxCells(),
		Version:          version.String(),
		LinkErrors:       a.publisher.Failures,
	}
	a.health = api.NewHealth(a.est.CurrentState, a.clock)
	return a, nil
}

// Handler returns the HTTP API with the debug routes mounted.
func (a *app) Handler() (http.Handler, error) {
	mux := a.server.ServeMux()
	a.link.AttachAdminRoutes(mux)
	if a.db != nil {
		if err := a.db.AttachAdminRoutes(mux); err != nil {
			return nil, err
		}
	}
	return api.LoggingMiddleware(mux), nil
}

// Run starts every component and blocks until ctx is done and they have
// all stopped.
func (a *app) Run(ctx context.Context) error {
	handler, err := a.Handler()
	if err != nil {
		return err
	}
	lis, err := net.Listen("tcp", a.opts.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.opts.Listen, err)
	}

	var wg sync.WaitGroup
	goRun := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("%s: %v", name, err)
			}
			monitoring.Debugf("%s routine terminated", name)
		}()
	}

	goRun("monitor", a.link.Monitor)
	goRun("router", func(ctx context.Context) error { return a.router.Run(ctx, a.link) })
	goRun("heartbeat", a.heartbeat.Run)
	goRun("health", func(ctx context.Context) error { return a.health.Run(ctx, healthInterval) })
	if a.opts.GRPCListen != "" {
		goRun("grpc", func(ctx context.Context) error { return a.health.ListenAndServe(ctx, a.opts.GRPCListen) })
	}
	if a.recorder != nil {
		goRun("recorder", a.recorder.Run)
		goRun("snapshots", a.snapshotLoop)
	}
	if a.synthetic != nil {
		goRun("vehicle", a.feedSyntheticVehicle)
	}

	frames := make(chan odometry.Frame, 1)
	source := odometry.FrameSource{Width: frameWidth, Height: frameHeight, Interval: frameInterval}
	goRun("frames", func(ctx context.Context) error { return source.Run(ctx, frames) })
	goRun("estimator", func(ctx context.Context) error {
		a.est.Start()
		return a.est.Run(ctx, frames)
	})

	goRun("http", func(ctx context.Context) error { return serveHTTP(ctx, lis, handler) })
	log.Printf("listening on %s", lis.Addr())

	wg.Wait()
	a.finishRecording()
	return nil
}

func serveHTTP(ctx context.Context, lis net.Listener, h http.Handler) error {
	server := &http.Server{Handler: h}
	errc := make(chan error, 1)
	go func() { errc <- server.Serve(lis) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	log.Println("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// feedSyntheticVehicle stands in for the autopilot in dev mode by reporting
// the synthetic engine's true heading and position.
func (a *app) feedSyntheticVehicle(ctx context.Context) error {
	t := a.clock.NewTicker(vehicleFeedInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C():
			a.vehicle.Set(telemetry.VehicleState{
				Attitude: geometry.Euler{Yaw: a.synthetic.Heading()},
				Position: a.synthetic.PositionNED(),
			})
		}
	}
}

func (a *app) snapshotLoop(ctx context.Context) error {
	t := a.clock.NewTicker(snapshotInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C():
			if _, err := a.recorder.SaveGridSnapshot(a.grid); err != nil {
				monitoring.Logf("[db] grid snapshot: %v", err)
			}
		}
	}
}

func (a *app) finishRecording() {
	if a.recorder == nil || a.recorder.Session() == "" {
		return
	}
	if _, err := a.recorder.SaveGridSnapshot(a.grid); err != nil {
		monitoring.Logf("[db] final grid snapshot: %v", err)
	}
	if err := a.recorder.EndSession(); err != nil {
		monitoring.Logf("[db] end session: %v", err)
	}
	if n := a.recorder.Dropped(); n > 0 {
		monitoring.Logf("[db] %d messages dropped by the recorder", n)
	}
}

// Close releases the link and the database.
func (a *app) Close() {
	if a.link != nil {
		if err := a.link.Close(); err != nil {
			log.Printf("failed to close link: %v", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			log.Printf("failed to close database: %v", err)
		}
	}
}
