package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/GriffinCanCode/blinkguard/internal/blink"
	apperrors "github.com/GriffinCanCode/blinkguard/internal/errors"
	"github.com/GriffinCanCode/blinkguard/internal/orchestrator"
	"github.com/GriffinCanCode/blinkguard/internal/trace"
)

type secondsRequest struct {
	Seconds float64 `json:"seconds"`
}

type thresholdsRequest struct {
	Close float64 `json:"close"`
	Open  float64 `json:"open"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

func (s *Server) handleActive(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.ctrl.SetActive(active); err != nil {
			writeError(w, r, err)
			return
		}
		trace.Logger(r.Context()).Info("active changed", "active", active)
		writeJSON(w, http.StatusOK, map[string]bool{"active": active})
	}
}

func (s *Server) handleQuietPeriod(w http.ResponseWriter, r *http.Request) {
	var req secondsRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.ctrl.SetQuietPeriod(seconds(req.Seconds)); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"quiet_period_seconds": req.Seconds})
}

func (s *Server) handleThresholds(w http.ResponseWriter, r *http.Request) {
	var req thresholdsRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.ctrl.SetThresholds(blink.Thresholds{Close: req.Close, Open: req.Open}); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) handleBlinks(w http.ResponseWriter, r *http.Request) {
	limit := orchestrator.DefaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > MaxBlinkLimit {
			writeError(w, r, apperrors.Newf(apperrors.CodeInvalidArgument, "limit must be between 1 and %d", MaxBlinkLimit).WithMetadata("limit", v))
			return
		}
		limit = n
	}

	entries := s.ctrl.History(limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"blinks": blinkEntries(entries),
		"total":  s.ctrl.Status().BlinkCount,
	})
}

func (s *Server) handleBreak(w http.ResponseWriter, r *http.Request) {
	var req secondsRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	d := seconds(req.Seconds)
	if err := s.ctrl.StartBreak(d); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]int64{"duration_ms": d.Milliseconds()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := s.ctrl.Status()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"session": st.SessionID,
		"feed":    st.Feed,
		"vision":  st.Vision,
		"clients": s.ClientCount(),
	})
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperrors.Wrap(err, apperrors.CodeInvalidArgument, "invalid request body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := httpStatus(err)
	log := trace.Logger(r.Context())
	if code >= http.StatusInternalServerError {
		log.Error("request failed", "path", r.URL.Path, "error", err)
	} else {
		log.Warn("request rejected", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, code, errorMessage(err))
}

// httpStatus maps an error code to the HTTP status returned to callers.
func httpStatus(err error) int {
	switch apperrors.CodeOf(err) {
	case apperrors.CodeInvalidConfig, apperrors.CodeInvalidArgument:
		return http.StatusBadRequest
	case apperrors.CodeNotFound:
		return http.StatusNotFound
	case apperrors.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
