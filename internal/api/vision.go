package api

import (
	"errors"
	"net/http"

	"github.com/banshee-data/vision.nav/internal/estimator"
	"github.com/banshee-data/vision.nav/internal/httputil"
	"github.com/banshee-data/vision.nav/internal/serialmux"
	"github.com/banshee-data/vision.nav/internal/telemetry"
	"github.com/banshee-data/vision.nav/internal/units"
)

type visionResponse struct {
	telemetry.VisionStatus
	Units string `json:"units"`
}

func (s *Server) showVision(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	u := s.units
	if q := r.URL.Query().Get("units"); q != "" {
		u = q
	}
	if !units.IsValid(u) {
		httputil.BadRequest(w, "invalid 'units' parameter, want one of: "+units.GetValidUnitsString())
		return
	}

	st := s.vision.Status()
	st.Roll = units.ConvertAngle(st.Roll, u)
	st.Pitch = units.ConvertAngle(st.Pitch, u)
	st.Yaw = units.ConvertAngle(st.Yaw, u)
	httputil.WriteJSONOK(w, visionResponse{VisionStatus: st, Units: u})
}

func (s *Server) sendCommand(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodPost) {
		return
	}
	cmd, err := serialmux.ParseCommand(r.FormValue("command"))
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	switch err := s.ApplyCommand(cmd); {
	case errors.Is(err, estimator.ErrCommandQueueFull):
		httputil.ServiceUnavailable(w, err.Error())
		return
	case errors.Is(err, ErrNoGrid):
		httputil.NotFound(w, err.Error())
		return
	case err != nil:
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"command": cmd.String()})
}
