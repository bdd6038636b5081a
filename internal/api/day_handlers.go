package api

import (
	"log/slog"
	"net/http"

	"github.com/BTreeMap/Cockpit/internal/models"
	"github.com/BTreeMap/Cockpit/internal/schedule"
)

type dayStartRequest struct {
	Target string `json:"target,omitempty"`
}

func (s *Server) dayStartHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if !allowMethod(w, r, "dayStartHandler", http.MethodPost) {
		return
	}
	var req dayStartRequest
	if err := decodeBody(r, &req); err != nil {
		slog.Warn("Server.dayStartHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	snap, err := s.StartDay(req.Target)
	if err != nil {
		writeError(w, "dayStartHandler", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Day started", snap))
}

type rescheduleRequest struct {
	ShiftMinutes *int   `json:"shift_minutes"`
	From         string `json:"from,omitempty"`
}

func (s *Server) rescheduleHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if !allowMethod(w, r, "rescheduleHandler", http.MethodPost) {
		return
	}
	var req rescheduleRequest
	if err := decodeBody(r, &req); err != nil {
		slog.Warn("Server.rescheduleHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.ShiftMinutes == nil || *req.ShiftMinutes == 0 {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing required field: shift_minutes"))
		return
	}
	if s.days == nil {
		writeError(w, "rescheduleHandler", errNoSchedule)
		return
	}

	date, err := schedule.Resolve(schedule.TargetToday, s.clock.Now())
	if err != nil {
		writeError(w, "rescheduleHandler", err)
		return
	}
	day, err := s.days.Reschedule(date, req.From, *req.ShiftMinutes)
	if err != nil {
		writeError(w, "rescheduleHandler", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Schedule updated", day))
}
