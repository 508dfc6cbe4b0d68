// Package api exposes the assistant to the watch and widget companions over
// HTTP, with a WebSocket stream of live events.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	log "log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"jarvis/internal/bus"
	"jarvis/internal/dispatch"
	"jarvis/internal/domain"
	"jarvis/internal/health"
	"jarvis/internal/ports"
	"jarvis/internal/session"
	"jarvis/internal/settings"
	"jarvis/internal/timer"
)

type Assistant interface {
	State() domain.AppState
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Submit(ctx context.Context, text string) (dispatch.Result, error)
}

type History interface {
	List() []domain.Command
}

type Protocols interface {
	Protocols() []domain.Protocol
	Add(ctx context.Context, p domain.Protocol) error
	RemoveByID(ctx context.Context, id string) error
}

type Facts interface {
	Facts() []domain.Fact
	Remember(ctx context.Context, content string) (domain.Fact, error)
	Forget(ctx context.Context, id string) error
	Clear(ctx context.Context) error
}

type Settings interface {
	Values() settings.Values
	Update(ctx context.Context, v settings.Values) error
}

type Timers interface {
	Active() []timer.Timer
	Start(d time.Duration, label string) (timer.Timer, error)
	Cancel(id string) bool
}

type HealthRecorder interface {
	Record(s health.Sample) error
}

type Events interface {
	Subscribe() (<-chan bus.Message, func())
}

// Deps wires the server to the assistant. Nil optional parts answer 404.
type Deps struct {
	Assistant    Assistant
	History      History
	Protocols    Protocols
	Facts        Facts
	Settings     Settings
	Timers       Timers
	Health       HealthRecorder
	Events       Events
	Connectivity ports.Connectivity
}

type Server struct {
	deps   Deps
	token  string
	router chi.Router
	srv    *http.Server
	log    *log.Logger
}

func NewServer(deps Deps, addr, token string) *Server {
	s := &Server{
		deps:  deps,
		token: token,
		log:   log.Default().With("component", "api"),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)

			r.Get("/status", s.handleStatus)
			r.Post("/listen", s.handleListen)
			r.Post("/stop", s.handleStop)
			r.Post("/commands", s.handleCommand)
			r.Get("/history", s.handleHistory)

			r.Route("/protocols", func(r chi.Router) {
				r.Get("/", s.handleListProtocols)
				r.Post("/", s.handleAddProtocol)
				r.Delete("/{id}", s.handleDeleteProtocol)
			})
			r.Route("/facts", func(r chi.Router) {
				r.Get("/", s.handleListFacts)
				r.Post("/", s.handleAddFact)
				r.Delete("/", s.handleClearFacts)
				r.Delete("/{id}", s.handleDeleteFact)
			})
			r.Get("/settings", s.handleGetSettings)
			r.Put("/settings", s.handlePutSettings)
			r.Route("/timers", func(r chi.Router) {
				r.Get("/", s.handleListTimers)
				r.Post("/", s.handleStartTimer)
				r.Delete("/{id}", s.handleCancelTimer)
			})
			r.Post("/health/samples", s.handleHealthSample)
			r.Get("/events", s.handleEvents)
		})
	})

	s.router = r
	s.srv = &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// Serve listens until ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Starting HTTP API", "addr", s.srv.Addr)
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token == "" {
			next.ServeHTTP(w, r)
			return
		}
		got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if got == "" {
			got = r.URL.Query().Get("token")
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) online() bool {
	return s.deps.Connectivity == nil || s.deps.Connectivity.Online()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "jarvis",
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"state":  s.deps.Assistant.State(),
		"online": s.online(),
	}
	if s.deps.Settings != nil {
		body["personality"] = s.deps.Settings.Values().Personality
	}
	if s.deps.Timers != nil {
		body["timers"] = len(s.deps.Timers.Active())
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleListen(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Assistant.Start(r.Context()); err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"state": s.deps.Assistant.State()})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Assistant.Stop(r.Context()); err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"state": s.deps.Assistant.State()})
}

type commandRequest struct {
	Text string `json:"text"`
}

type commandResponse struct {
	Command  domain.Command `json:"command"`
	Response string         `json:"response"`
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	res, err := s.deps.Assistant.Submit(r.Context(), req.Text)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, commandResponse{Command: res.Command, Response: res.Response})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		writeError(w, http.StatusNotFound, "history unavailable")
		return
	}
	writeJSON(w, http.StatusOK, s.deps.History.List())
}

func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrEmptyCommand):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, session.ErrBusy), errors.Is(err, session.ErrNotListening):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ports.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, session.ErrClosed), errors.Is(err, context.Canceled):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
