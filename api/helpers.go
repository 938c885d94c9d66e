package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"cricket-sim/scoring"
	"cricket-sim/simulation"
	"cricket-sim/store"

	"github.com/gorilla/mux"
)

const maxBodyBytes = 1 << 20

// APIError is the body of every error response
type APIError struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.WithError(err).Error("Error encoding JSON")
	}
}

// writeError maps err onto a status code and writes it
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	s.writeJSON(w, status, APIError{Error: err.Error(), Code: code})
}

// statusFor sorts errors into not found, bad input, wrong moment and everything else
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, scoring.ErrInvalidSettings),
		errors.Is(err, scoring.ErrInvalidBall),
		errors.Is(err, scoring.ErrInvalidSelection),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, scoring.ErrBowlerNotSelected),
		errors.Is(err, scoring.ErrStrikerNotSelected),
		errors.Is(err, scoring.ErrMatchFinished),
		errors.Is(err, scoring.ErrNothingToUndo),
		errors.Is(err, scoring.ErrImpactPlayerUsed):
		return http.StatusConflict, "conflict"
	case errors.Is(err, simulation.ErrNoStrategy),
		errors.Is(err, simulation.ErrMalformedResponse):
		return http.StatusBadGateway, "simulation_failed"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

var errBadRequest = errors.New("bad request")

// decodeJSON reads a bounded JSON body into dst
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
	}
	return nil
}

// parseIntParam safely parses an integer query parameter
func parseIntParam(param string, defaultValue int) int {
	if param == "" {
		return defaultValue
	}
	if val, err := strconv.Atoi(param); err == nil {
		return val
	}
	return defaultValue
}

func matchID(r *http.Request) string {
	return mux.Vars(r)["id"]
}

// contextWithTimeout bounds a request's work. A zero timeout leaves it unbounded.
func contextWithTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, d)
}

func formatUptime(d time.Duration) string {
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	} else if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	} else if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
