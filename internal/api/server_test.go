package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/vision.nav/internal/db"
	"github.com/banshee-data/vision.nav/internal/estimator"
	"github.com/banshee-data/vision.nav/internal/fsutil"
	"github.com/banshee-data/vision.nav/internal/occupancy"
	"github.com/banshee-data/vision.nav/internal/serialmux"
	"github.com/banshee-data/vision.nav/internal/telemetry"
)

type fakeVision struct {
	status    telemetry.VisionStatus
	submitted []estimator.Command
	err       error
}

func (f *fakeVision) Status() telemetry.VisionStatus { return f.status }

func (f *fakeVision) Submit(c estimator.Command) error {
	if f.err != nil {
		return f.err
	}
	f.submitted = append(f.submitted, c)
	return nil
}

type fakeTrajectory struct {
	session string
	samples []db.Sample
	gotID   string
	gotN    int
}

func (f *fakeTrajectory) Session() string { return f.session }

func (f *fakeTrajectory) Trajectory(id string, limit int) ([]db.Sample, error) {
	f.gotID, f.gotN = id, limit
	if id == "" && f.session == "" {
		return nil, db.ErrNoSession
	}
	return f.samples, nil
}

func newTestGrid() *occupancy.Grid {
	g := occupancy.NewGrid(1, 20)
	g.Update(r3.Vec{}, r3.Vec{X: 3, Y: 2, Z: -1.5})
	g.Update(r3.Vec{}, r3.Vec{X: -4, Y: 1, Z: -0.5})
	return g
}

func do(t *testing.T, h http.Handler, method, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestShowVision(t *testing.T) {
	v := &fakeVision{status: telemetry.VisionStatus{X: 1, Yaw: 0.5, Roll: -0.25, Quality: 80, State: "running"}}
	mux := NewServer(v, nil, "rad").ServeMux()

	tests := []struct {
		name    string
		target  string
		code    int
		wantYaw float64
		units   string
	}{
		{"default units", "/api/vision", http.StatusOK, 0.5, "rad"},
		{"degrees", "/api/vision?units=deg", http.StatusOK, 0.5 * 180 / 3.141592653589793, "deg"},
		{"bad units", "/api/vision?units=grad", http.StatusBadRequest, 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, mux, http.MethodGet, tt.target, nil)
			require.Equal(t, tt.code, rec.Code)
			if tt.code != http.StatusOK {
				return
			}
			var got visionResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
			assert.InDelta(t, tt.wantYaw, got.Yaw, 1e-9)
			assert.Equal(t, tt.units, got.Units)
			assert.Equal(t, 1.0, got.X)
			assert.Equal(t, 80, got.Quality)
			assert.Equal(t, "running", got.State)
		})
	}

	rec := do(t, mux, http.MethodPost, "/api/vision", url.Values{})
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestSendCommand(t *testing.T) {
	v := &fakeVision{}
	grid := newTestGrid()
	grid.Transfer(100)
	mux := NewServer(v, grid, "rad").ServeMux()

	for _, line := range []string{"vision enable", "VISION  disable", "vision reset"} {
		rec := do(t, mux, http.MethodPost, "/api/vision/command", url.Values{"command": {line}})
		assert.Equal(t, http.StatusAccepted, rec.Code, line)
	}
	assert.Equal(t, []estimator.Command{estimator.CommandEnable, estimator.CommandDisable, estimator.CommandReset}, v.submitted)

	require.Zero(t, grid.Pending())
	rec := do(t, mux, http.MethodPost, "/api/vision/command", url.Values{"command": {"microslam transfer"}})
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 2, grid.Pending())

	rec = do(t, mux, http.MethodPost, "/api/vision/command", url.Values{"command": {"vision explode"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, mux, http.MethodGet, "/api/vision/command", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestSendCommandErrors(t *testing.T) {
	v := &fakeVision{err: estimator.ErrCommandQueueFull}
	mux := NewServer(v, nil, "rad").ServeMux()

	rec := do(t, mux, http.MethodPost, "/api/vision/command", url.Values{"command": {"vision reset"}})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(t, mux, http.MethodPost, "/api/vision/command", url.Values{"command": {"microslam transfer"}})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	v.err = errors.New("boom")
	rec = do(t, mux, http.MethodPost, "/api/vision/command", url.Values{"command": {"vision enable"}})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestApplyCommandRejectsUnknown(t *testing.T) {
	s := NewServer(&fakeVision{}, nil, "rad")
	assert.Error(t, s.ApplyCommand(serialmux.Command(99)))
}

func TestShowGrid(t *testing.T) {
	mux := NewServer(&fakeVision{}, newTestGrid(), "rad").ServeMux()

	rec := do(t, mux, http.MethodGet, "/api/grid", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got gridResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, 1.0, got.Resolution)
	assert.Equal(t, 20.0, got.Extent)
	assert.Len(t, got.Cells, 2)

	rec = do(t, mux, http.MethodGet, "/api/grid.png", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))

	rec = do(t, mux, http.MethodGet, "/api/grid.html", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Occupancy Grid")
}

func TestShowGridEmptyAndDisabled(t *testing.T) {
	rec := do(t, NewServer(&fakeVision{}, occupancy.NewGrid(1, 10), "rad").ServeMux(), http.MethodGet, "/api/grid", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"cells":[]`)

	mux := NewServer(&fakeVision{}, nil, "rad").ServeMux()
	for _, target := range []string{"/api/grid", "/api/grid.png", "/api/grid.html"} {
		assert.Equal(t, http.StatusNotFound, do(t, mux, http.MethodGet, target, nil).Code, target)
	}
}

func TestExportGrid(t *testing.T) {
	dir := t.TempDir()
	mem := fsutil.NewMemoryFileSystem()
	s := NewServer(&fakeVision{}, newTestGrid(), "rad")
	s.SetExport(mem, []string{dir})
	s.SetTrajectorySource(&fakeTrajectory{session: "a1/b2"})
	mux := s.ServeMux()

	t.Run("explicit path", func(t *testing.T) {
		path := filepath.Join(dir, "out", "grid.png")
		rec := do(t, mux, http.MethodPost, "/api/grid/export", url.Values{"path": {path}})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		data, err := mem.ReadFile(path)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))
		assert.True(t, mem.IsDir(filepath.Join(dir, "out")))
	})

	t.Run("default name uses session", func(t *testing.T) {
		rec := do(t, mux, http.MethodPost, "/api/grid/export", url.Values{})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		_, err := mem.ReadFile(filepath.Join(dir, "grid-a1_b2.png"))
		assert.NoError(t, err)
	})

	t.Run("escape rejected", func(t *testing.T) {
		rec := do(t, mux, http.MethodPost, "/api/grid/export", url.Values{"path": {filepath.Join(dir, "..", "grid.png")}})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("wrong extension", func(t *testing.T) {
		rec := do(t, mux, http.MethodPost, "/api/grid/export", url.Values{"path": {filepath.Join(dir, "grid.txt")}})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("get not allowed", func(t *testing.T) {
		assert.Equal(t, http.StatusMethodNotAllowed, do(t, mux, http.MethodGet, "/api/grid/export", nil).Code)
	})
}

func TestTrajectoryEndpoints(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	src := &fakeTrajectory{session: "s1", samples: []db.Sample{
		{Time: start, X: 0, Y: 0, Quality: 90},
		{Time: start.Add(time.Second), X: 0.5, Y: 0.1, Quality: 60},
	}}
	s := NewServer(&fakeVision{}, nil, "rad")
	mux := s.ServeMux()

	assert.Equal(t, http.StatusNotFound, do(t, mux, http.MethodGet, "/api/trajectory", nil).Code)
	s.SetTrajectorySource(src)

	rec := do(t, mux, http.MethodGet, "/api/trajectory?limit=10&session=s0", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "s0", src.gotID)
	assert.Equal(t, 10, src.gotN)
	var got []db.Sample
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, src.samples, got)

	rec = do(t, mux, http.MethodGet, "/api/trajectory.html", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, defaultTrajectoryLimit, src.gotN)
	assert.Contains(t, rec.Body.String(), "Vision Trajectory")

	assert.Equal(t, http.StatusBadRequest, do(t, mux, http.MethodGet, "/api/trajectory?limit=0", nil).Code)

	src.session = ""
	assert.Equal(t, http.StatusNotFound, do(t, mux, http.MethodGet, "/api/trajectory", nil).Code)
}

func TestLoggingMiddlewarePassesThrough(t *testing.T) {
	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := do(t, h, http.MethodGet, "/api/other", nil)
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Contains(t, statusCodeColor(418), "418")
}
