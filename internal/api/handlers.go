package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/BTreeMap/Cockpit/internal/models"
	"github.com/BTreeMap/Cockpit/internal/store"
	"github.com/BTreeMap/Cockpit/internal/timer"
)

// decodeBody decodes an optional JSON body. An empty body leaves v untouched.
func decodeBody(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, "healthHandler", http.MethodGet) {
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]string{
		"service":    "cockpit",
		"run_status": string(s.engine.Status().Status),
	}))
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, "statusHandler", http.MethodGet) {
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(s.engine.Status()))
}

func (s *Server) profilesHandler(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, "profilesHandler", http.MethodGet) {
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(s.engine.Profiles()))
}

func (s *Server) startHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if !allowMethod(w, r, "startHandler", http.MethodPost) {
		return
	}
	var req timer.StartRequest
	if err := decodeBody(r, &req); err != nil {
		slog.Warn("Server.startHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.Cycles < 0 {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("cycles must not be negative"))
		return
	}
	snap, err := s.engine.Start(req)
	if err != nil {
		writeError(w, "startHandler", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Timer started", snap))
}

// commandHandler serves the body-less POST commands.
func (s *Server) commandHandler(name string, fn func() (models.RunSnapshot, error)) http.HandlerFunc {
	handler := name + "Handler"
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			defer r.Body.Close()
		}
		if !allowMethod(w, r, handler, http.MethodPost) {
			return
		}
		snap, err := fn()
		if err != nil {
			writeError(w, handler, err)
			return
		}
		writeJSONResponse(w, http.StatusOK, models.Success(snap))
	}
}

type confirmRequest struct {
	Completed *bool `json:"completed"`
}

func (s *Server) confirmHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if !allowMethod(w, r, "confirmHandler", http.MethodPost) {
		return
	}
	var req confirmRequest
	if err := decodeBody(r, &req); err != nil {
		slog.Warn("Server.confirmHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.Completed == nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing required field: completed"))
		return
	}
	snap, err := s.engine.Confirm(*req.Completed)
	if err != nil {
		writeError(w, "confirmHandler", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(snap))
}

func (s *Server) historyHandler(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, "historyHandler", http.MethodGet) {
		return
	}
	limit := store.DefaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("limit must be a positive integer"))
			return
		}
		limit = n
	}
	records, err := s.history.ListRunRecords(limit)
	if err != nil {
		writeError(w, "historyHandler", err)
		return
	}
	if records == nil {
		records = []models.RunRecord{}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(records))
}

func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, "statsHandler", http.MethodGet) {
		return
	}
	now := s.clock.Now()
	since := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if v := r.URL.Query().Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("since must be an RFC3339 timestamp"))
			return
		}
		since = t
	}
	totals, err := s.history.FocusTotals(since)
	if err != nil {
		writeError(w, "statsHandler", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(totals))
}
