package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	apperrors "github.com/zsiec/screenwatch/internal/errors"
	"github.com/zsiec/screenwatch/internal/monitor"
	"github.com/zsiec/screenwatch/pkg/version"
)

// StatesResponse is the body of GET /api/v1/state.
type StatesResponse struct {
	States    map[string]monitor.Entry `json:"states"`
	Timestamp time.Time                `json:"timestamp"`
}

// handleVersion handles the /version endpoint
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=3600")
	s.writeJSON(w, r, http.StatusOK, version.GetInfo())
}

// handleStates returns the latest entry of every detector.
func (s *Server) handleStates(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, StatesResponse{
		States:    s.store.Snapshot(),
		Timestamp: time.Now(),
	})
}

// handleState returns the latest entry of one detector.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["detector"]

	entry, ok := s.store.Get(name)
	if !ok {
		s.writeError(w, r, apperrors.NewNotFoundError("detector "+name))
		return
	}
	s.writeJSON(w, r, http.StatusOK, entry)
}

// handleCapture reports the capture session.
func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	if s.session == nil {
		s.writeError(w, r, apperrors.NewServiceDownError("capture"))
		return
	}
	s.writeJSON(w, r, http.StatusOK, s.session.Status())
}

// writeJSON is a helper to write JSON responses
func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
		s.writeError(w, r, apperrors.WrapInternalError(err, "failed to encode response"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// writeError is a helper to write error responses
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	s.errorHandler.HandleError(w, r, err)
}
