package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"jarvis/internal/domain"
	"jarvis/internal/health"
	"jarvis/internal/macro"
	"jarvis/internal/memory"
	"jarvis/internal/settings"
	"jarvis/internal/timer"
)

type protocolRequest struct {
	Name          string          `json:"name"`
	TriggerPhrase string          `json:"trigger_phrase"`
	Actions       []domain.Action `json:"actions"`
	Response      *string         `json:"response,omitempty"`
}

func (p protocolRequest) validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("name is required")
	}
	if strings.TrimSpace(p.TriggerPhrase) == "" {
		return errors.New("trigger_phrase is required")
	}
	if len(p.Actions) == 0 {
		return errors.New("at least one action is required")
	}
	for i, a := range p.Actions {
		if !a.Type.Valid() {
			return fmt.Errorf("action %d: unknown type %q", i, a.Type)
		}
		switch a.Type {
		case domain.ActionVolume:
			if _, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(a.Value), "%")); err != nil {
				return fmt.Errorf("action %d: volume must be a number", i)
			}
		case domain.ActionWait:
			if _, err := strconv.ParseFloat(strings.TrimSpace(a.Value), 64); err != nil {
				return fmt.Errorf("action %d: wait must be seconds", i)
			}
		}
	}
	return nil
}

func (s *Server) handleListProtocols(w http.ResponseWriter, r *http.Request) {
	if s.deps.Protocols == nil {
		writeError(w, http.StatusNotFound, "protocols unavailable")
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Protocols.Protocols())
}

func (s *Server) handleAddProtocol(w http.ResponseWriter, r *http.Request) {
	if s.deps.Protocols == nil {
		writeError(w, http.StatusNotFound, "protocols unavailable")
		return
	}

	var req protocolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	p := domain.NewProtocol(strings.TrimSpace(req.Name), strings.ToLower(strings.TrimSpace(req.TriggerPhrase)), req.Actions, req.Response)
	if err := s.deps.Protocols.Add(r.Context(), p); err != nil {
		s.log.Error("Add protocol failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleDeleteProtocol(w http.ResponseWriter, r *http.Request) {
	if s.deps.Protocols == nil {
		writeError(w, http.StatusNotFound, "protocols unavailable")
		return
	}
	err := s.deps.Protocols.RemoveByID(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, macro.ErrNoSuchProtocol):
		writeError(w, http.StatusNotFound, "protocol not found")
	case err != nil:
		s.log.Error("Remove protocol failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleListFacts(w http.ResponseWriter, r *http.Request) {
	if s.deps.Facts == nil {
		writeError(w, http.StatusNotFound, "memory unavailable")
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Facts.Facts())
}

func (s *Server) handleAddFact(w http.ResponseWriter, r *http.Request) {
	if s.deps.Facts == nil {
		writeError(w, http.StatusNotFound, "memory unavailable")
		return
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	f, err := s.deps.Facts.Remember(r.Context(), req.Content)
	switch {
	case errors.Is(err, memory.ErrEmptyFact):
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		s.log.Error("Remember failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	default:
		writeJSON(w, http.StatusCreated, f)
	}
}

func (s *Server) handleDeleteFact(w http.ResponseWriter, r *http.Request) {
	if s.deps.Facts == nil {
		writeError(w, http.StatusNotFound, "memory unavailable")
		return
	}

	err := s.deps.Facts.Forget(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, memory.ErrNotFound):
		writeError(w, http.StatusNotFound, "fact not found")
	case err != nil:
		s.log.Error("Forget failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleClearFacts(w http.ResponseWriter, r *http.Request) {
	if s.deps.Facts == nil {
		writeError(w, http.StatusNotFound, "memory unavailable")
		return
	}
	if err := s.deps.Facts.Clear(r.Context()); err != nil {
		s.log.Error("Clear facts failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	if s.deps.Settings == nil {
		writeError(w, http.StatusNotFound, "settings unavailable")
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Settings.Values())
}

// handlePutSettings merges the body over the current values, so clients may
// send only the fields they change.
func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	if s.deps.Settings == nil {
		writeError(w, http.StatusNotFound, "settings unavailable")
		return
	}

	v := s.deps.Settings.Values()
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	err := s.deps.Settings.Update(r.Context(), v)
	switch {
	case errors.Is(err, settings.ErrInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		s.log.Error("Update settings failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	default:
		writeJSON(w, http.StatusOK, s.deps.Settings.Values())
	}
}

type timerView struct {
	timer.Timer
	RemainingSeconds int `json:"remaining_seconds"`
}

func (s *Server) handleListTimers(w http.ResponseWriter, r *http.Request) {
	if s.deps.Timers == nil {
		writeError(w, http.StatusNotFound, "timers unavailable")
		return
	}
	now := time.Now()
	active := s.deps.Timers.Active()
	out := make([]timerView, 0, len(active))
	for _, t := range active {
		out = append(out, timerView{Timer: t, RemainingSeconds: int(t.Remaining(now).Seconds())})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleStartTimer(w http.ResponseWriter, r *http.Request) {
	if s.deps.Timers == nil {
		writeError(w, http.StatusNotFound, "timers unavailable")
		return
	}

	var req struct {
		Seconds int    `json:"seconds"`
		Label   string `json:"label"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Seconds <= 0 {
		writeError(w, http.StatusBadRequest, "seconds must be positive")
		return
	}

	t, err := s.deps.Timers.Start(time.Duration(req.Seconds)*time.Second, strings.TrimSpace(req.Label))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, timerView{Timer: t, RemainingSeconds: req.Seconds})
}

func (s *Server) handleCancelTimer(w http.ResponseWriter, r *http.Request) {
	if s.deps.Timers == nil {
		writeError(w, http.StatusNotFound, "timers unavailable")
		return
	}
	if !s.deps.Timers.Cancel(chi.URLParam(r, "id")) {
		writeError(w, http.StatusNotFound, "timer not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealthSample(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health == nil {
		writeError(w, http.StatusNotFound, "health unavailable")
		return
	}

	var sample health.Sample
	if err := json.NewDecoder(r.Body).Decode(&sample); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.deps.Health.Record(sample); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
