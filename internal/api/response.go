package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/BTreeMap/Cockpit/internal/models"
	"github.com/BTreeMap/Cockpit/internal/schedule"
	"github.com/BTreeMap/Cockpit/internal/timer"
)

var errNoSchedule = errors.New("no schedule directory configured")

// Pre-marshaled fallback responses to avoid runtime JSON encoding failures
var (
	fallbackErrorResponse []byte
)

// init validates that our fallback responses can be marshaled
func init() {
	var err error
	fallbackErrorResponse, err = json.Marshal(models.Error("Internal server error"))
	if err != nil {
		panic(fmt.Sprintf("Failed to marshal fallback error response at startup: %v", err))
	}
}

// writeJSONResponse writes a JSON response to the http.ResponseWriter with the given status code.
func writeJSONResponse(w http.ResponseWriter, statusCode int, response interface{}) {
	// Marshal first so encoding errors surface before headers are written.
	jsonData, err := json.Marshal(response)
	if err != nil {
		slog.Error("Server.writeJSONResponse: failed to marshal JSON response", "error", err)
		jsonData = fallbackErrorResponse
		statusCode = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, writeErr := w.Write(jsonData); writeErr != nil {
		slog.Error("Server.writeJSONResponse: failed to write JSON response", "error", writeErr)
	}
}

// errorStatus maps engine and schedule errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, timer.ErrAlreadyRunning),
		errors.Is(err, timer.ErrInvalidTransition),
		errors.Is(err, timer.ErrNoPendingConfirmation):
		return http.StatusConflict
	case errors.Is(err, timer.ErrUnknownProfile),
		errors.Is(err, schedule.ErrDayNotFound),
		errors.Is(err, errNoSchedule):
		return http.StatusNotFound
	case errors.Is(err, timer.ErrEmptyPlan),
		errors.Is(err, timer.ErrInvalidBlock),
		errors.Is(err, schedule.ErrInvalidTarget),
		errors.Is(err, schedule.ErrInvalidDay),
		errors.Is(err, schedule.ErrShiftOutOfDay),
		errors.Is(err, models.ErrInvalidClock),
		errors.Is(err, models.ErrPhaseTooLong):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes err in the error envelope. Unmapped errors are logged and
// reported without detail.
func writeError(w http.ResponseWriter, handler string, err error) {
	code := errorStatus(err)
	if code == http.StatusInternalServerError {
		slog.Error("Server."+handler+": internal error", "error", err)
		writeJSONResponse(w, code, models.Error("Internal server error"))
		return
	}
	slog.Warn("Server."+handler+": request rejected", "error", err, "status", code)
	writeJSONResponse(w, code, models.Error(err.Error()))
}

// allowMethod answers 405 with an Allow header unless r uses method.
func allowMethod(w http.ResponseWriter, r *http.Request, handler, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	slog.Warn("Server."+handler+": method not allowed", "method", r.Method)
	writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
	return false
}
