package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/banshee-data/vision.nav/internal/monitoring"
	"github.com/banshee-data/vision.nav/internal/version"
)

var (
	configPath = flag.String("config", "", "Path to a .json or .yaml vision config (defaults apply when empty)")
	port       = flag.String("port", "", "Autopilot serial port, overrides the config file (ignored in dev mode)")
	devMode    = flag.Bool("dev", false, "Run against the synthetic odometry engine with no autopilot link")
	listen     = flag.String("listen", ":8080", "HTTP listen address")
	grpcListen = flag.String("grpc-listen", ":50051", "gRPC health listen address, empty to disable")
	dbPath     = flag.String("db", "visionnav.db", "Flight recorder database, empty to disable")
	logFile    = flag.String("log-file", "", "Write logs to this size-rotated file as well as stderr")
	debug      = flag.Bool("debug", false, "Enable debug logging")
)

func main() {
	flag.Parse()

	if *logFile != "" {
		closer, err := monitoring.RotatingOutput(*logFile, true)
		if err != nil {
			log.Fatalf("failed to open log file: %v", err)
		}
		defer closer.Close()
	}

	opts := options{
		ConfigPath: *configPath,
		Port:       *port,
		Dev:        *devMode,
		Listen:     *listen,
		GRPCListen: *grpcListen,
		DBPath:     *dbPath,
		Debug:      *debug,
	}
	if opts.Listen == "" {
		log.Fatal("Listen address is required")
	}

	log.Printf("visionnav %s built %s", version.String(), version.BuildTime)
	a, err := newApp(opts)
	if err != nil {
		log.Fatalf("failed to start: %v", err)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil {
		log.Printf("exited with error: %v", err)
	}
	log.Printf("Graceful shutdown complete")
}
