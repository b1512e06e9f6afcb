package api

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/banshee-data/vision.nav/internal/httputil"
	"github.com/banshee-data/vision.nav/internal/monitoring"
	"github.com/banshee-data/vision.nav/internal/occupancy"
	"github.com/banshee-data/vision.nav/internal/security"
)

type gridResponse struct {
	Resolution float64          `json:"resolution"`
	Extent     float64          `json:"extent"`
	Cells      []occupancy.Cell `json:"cells"`
}

func (s *Server) requireGrid(w http.ResponseWriter, r *http.Request, method string) bool {
	if !httputil.RequireMethod(w, r, method) {
		return false
	}
	if s.grid == nil {
		httputil.NotFound(w, ErrNoGrid.Error())
		return false
	}
	return true
}

func (s *Server) showGrid(w http.ResponseWriter, r *http.Request) {
	if !s.requireGrid(w, r, http.MethodGet) {
		return
	}
	cells := s.grid.Snapshot()
	if cells == nil {
		cells = []occupancy.Cell{}
	}
	httputil.WriteJSONOK(w, gridResponse{
		Resolution: s.grid.Resolution(),
		Extent:     s.grid.Extent(),
		Cells:      cells,
	})
}

func (s *Server) showGridPNG(w http.ResponseWriter, r *http.Request) {
	if !s.requireGrid(w, r, http.MethodGet) {
		return
	}
	cells, extent := s.grid.Snapshot(), s.grid.Extent()
	httputil.WriteRendered(w, "image/png", func(out io.Writer) error {
		return occupancy.RenderPNG(out, cells, extent)
	})
}

func (s *Server) showGridHTML(w http.ResponseWriter, r *http.Request) {
	if !s.requireGrid(w, r, http.MethodGet) {
		return
	}
	cells, extent := s.grid.Snapshot(), s.grid.Extent()
	httputil.WriteRendered(w, "text/html; charset=utf-8", func(out io.Writer) error {
		return occupancy.RenderHTML(out, cells, extent)
	})
}

// exportGrid writes the grid PNG to the "path" form value, or to a file
// named after the recording session in the default export directory.
func (s *Server) exportGrid(w http.ResponseWriter, r *http.Request) {
	if !s.requireGrid(w, r, http.MethodPost) {
		return
	}
	if len(s.exportDirs) == 0 {
		httputil.NotFound(w, "grid export disabled")
		return
	}

	path := r.FormValue("path")
	if path == "" {
		name := "grid"
		if s.trajectory != nil && s.trajectory.Session() != "" {
			name += "-" + s.trajectory.Session()
		}
		path = filepath.Join(s.exportDirs[0], security.SanitizeFilename(name)+".png")
	}
	if !strings.EqualFold(filepath.Ext(path), ".png") {
		httputil.BadRequest(w, "export path must end in .png")
		return
	}
	if err := security.ValidatePathWithinAllowedDirs(path, s.exportDirs); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	cells := s.grid.Snapshot()
	if err := s.writePNG(path, cells); err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	monitoring.Logf("[api] exported %d grid cells to %s", len(cells), path)
	httputil.WriteJSONOK(w, map[string]interface{}{"path": path, "cells": len(cells)})
}

func (s *Server) writePNG(path string, cells []occupancy.Cell) error {
	if err := s.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}
	f, err := s.fs.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := occupancy.RenderPNG(f, cells, s.grid.Extent()); err != nil {
		f.Close()
		return fmt.Errorf("render grid: %w", err)
	}
	return f.Close()
}
