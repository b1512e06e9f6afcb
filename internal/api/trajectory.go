package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/vision.nav/internal/db"
	"github.com/banshee-data/vision.nav/internal/httputil"
)

const defaultTrajectoryLimit = 2000

func (s *Server) loadTrajectory(w http.ResponseWriter, r *http.Request) ([]db.Sample, bool) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return nil, false
	}
	if s.trajectory == nil {
		httputil.NotFound(w, "flight recorder disabled")
		return nil, false
	}
	limit := defaultTrajectoryLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 1 {
			httputil.BadRequest(w, "invalid 'limit' parameter")
			return nil, false
		}
		limit = n
	}
	samples, err := s.trajectory.Trajectory(r.URL.Query().Get("session"), limit)
	if errors.Is(err, db.ErrNoSession) {
		httputil.NotFound(w, err.Error())
		return nil, false
	}
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to load trajectory: %v", err))
		return nil, false
	}
	return samples, true
}

func (s *Server) showTrajectory(w http.ResponseWriter, r *http.Request) {
	samples, ok := s.loadTrajectory(w, r)
	if !ok {
		return
	}
	if samples == nil {
		samples = []db.Sample{}
	}
	httputil.WriteJSONOK(w, samples)
}

func (s *Server) showTrajectoryHTML(w http.ResponseWriter, r *http.Request) {
	samples, ok := s.loadTrajectory(w, r)
	if !ok {
		return
	}
	httputil.WriteRendered(w, "text/html; charset=utf-8", func(out io.Writer) error {
		return renderTrajectory(out, samples)
	})
}

// renderTrajectory plots recorded positions top-down, east against north,
// coloured by tracking quality.
func renderTrajectory(w io.Writer, samples []db.Sample) error {
	points := make([]opts.ScatterData, 0, len(samples))
	for _, s := range samples {
		points = append(points, opts.ScatterData{
			Value: []interface{}{s.Y, s.X, s.Quality},
			Name:  s.Time.Format("15:04:05.000"),
		})
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Vision Trajectory", Theme: "dark", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: "Vision Trajectory", Subtitle: fmt.Sprintf("samples=%d", len(samples))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "East (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: "North (m)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        100,
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: []string{"#d73027", "#fee08b", "#1a9850"}},
		}),
	)
	scatter.AddSeries("position", points, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}))
	return scatter.Render(w)
}
