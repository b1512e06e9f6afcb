// Package api serves the estimator status, operator commands and the
// occupancy grid over HTTP.
package api

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/banshee-data/vision.nav/internal/db"
	"github.com/banshee-data/vision.nav/internal/estimator"
	"github.com/banshee-data/vision.nav/internal/fsutil"
	"github.com/banshee-data/vision.nav/internal/monitoring"
	"github.com/banshee-data/vision.nav/internal/occupancy"
	"github.com/banshee-data/vision.nav/internal/serialmux"
	"github.com/banshee-data/vision.nav/internal/telemetry"
)

// ANSI escape codes for request logging
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Vision is the estimator as seen by the API.
type Vision interface {
	Status() telemetry.VisionStatus
	Submit(estimator.Command) error
}

// Grid is the occupancy grid as seen by the API.
type Grid interface {
	Snapshot() []occupancy.Cell
	Resolution() float64
	Extent() float64
	Invalidate()
}

// TrajectorySource is the flight recorder as seen by the API.
type TrajectorySource interface {
	Session() string
	Trajectory(sessionID string, limit int) ([]db.Sample, error)
}

// ErrNoGrid is returned by ApplyCommand for grid commands when no grid is
// attached.
var ErrNoGrid = errors.New("occupancy grid disabled")

type Server struct {
	vision     Vision
	grid       Grid
	trajectory TrajectorySource
	units      string
	fs         fsutil.FileSystem
	exportDirs []string
}

// NewServer returns a server for vision. grid may be nil.
func NewServer(vision Vision, grid Grid, units string) *Server {
	return &Server{
		vision:     vision,
		grid:       grid,
		units:      units,
		fs:         fsutil.OSFileSystem{},
		exportDirs: []string{os.TempDir()},
	}
}

// SetTrajectorySource enables the trajectory endpoints.
func (s *Server) SetTrajectorySource(t TrajectorySource) { s.trajectory = t }

// SetExport replaces where grid exports are written. The first directory is
// the default destination.
func (s *Server) SetExport(fs fsutil.FileSystem, dirs []string) {
	s.fs = fs
	s.exportDirs = dirs
}

// ApplyCommand carries out a link or operator command.
func (s *Server) ApplyCommand(c serialmux.Command) error {
	switch c {
	case serialmux.CommandVisionEnable:
		return s.vision.Submit(estimator.CommandEnable)
	case serialmux.CommandVisionDisable:
		return s.vision.Submit(estimator.CommandDisable)
	case serialmux.CommandVisionReset:
		return s.vision.Submit(estimator.CommandReset)
	case serialmux.CommandGridTransfer:
		if s.grid == nil {
			return ErrNoGrid
		}
		s.grid.Invalidate()
		return nil
	}
	return fmt.Errorf("unsupported command %s", c)
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/vision", s.showVision)
	mux.HandleFunc("/api/vision/command", s.sendCommand)
	mux.HandleFunc("/api/grid", s.showGrid)
	mux.HandleFunc("/api/grid.png", s.showGridPNG)
	mux.HandleFunc("/api/grid.html", s.showGridHTML)
	mux.HandleFunc("/api/grid/export", s.exportGrid)
	mux.HandleFunc("/api/trajectory", s.showTrajectory)
	mux.HandleFunc("/api/trajectory.html", s.showTrajectoryHTML)
	return mux
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, status and duration of each request.
// Status polling is only logged in debug mode.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		logf := monitoring.Logf
		if r.URL.Path == "/api/vision" && lrw.statusCode < 400 {
			logf = monitoring.Debugf
		}
		logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}
