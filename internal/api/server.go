package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/QTest-hq/phasescan/internal/config"
	"github.com/QTest-hq/phasescan/internal/phases"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// Server exposes the phases of the configured start-tasks file over HTTP.
// Clients cannot choose which file is read.
type Server struct {
	cfg       *config.Config
	extractor *phases.Extractor
	router    *chi.Mux
}

// PhasesResponse is the body of GET /api/v1/phases
type PhasesResponse struct {
	Path   string   `json:"path"`
	Phases []string `json:"phases"`
}

// NewServer creates a new API server
func NewServer(cfg *config.Config, extractor *phases.Extractor) (*Server, error) {
	s := &Server{
		cfg:       cfg,
		extractor: extractor,
		router:    chi.NewRouter(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s, nil
}

// Router returns the HTTP router
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(30 * time.Second))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.healthCheck)
	s.router.Get("/ready", s.readyCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/phases", s.listPhases)
		r.Get("/routine", s.getRoutine)
	})
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readyCheck succeeds only when the start-tasks file can be extracted
func (s *Server) readyCheck(w http.ResponseWriter, r *http.Request) {
	if _, err := s.extractor.Extract(r.Context(), ""); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) listPhases(w http.ResponseWriter, r *http.Request) {
	path, err := s.extractor.DefaultPath()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	names, err := s.extractor.Extract(r.Context(), path)
	if err != nil {
		writeExtractError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, PhasesResponse{Path: path, Phases: names})
}

// getRoutine renders the task routine for the current phases, keeping the
// toggles already stored in the routine file
func (s *Server) getRoutine(w http.ResponseWriter, r *http.Request) {
	names, err := s.extractor.Extract(r.Context(), "")
	if err != nil {
		writeExtractError(w, err)
		return
	}

	existing, err := config.LoadTaskRoutine(s.cfg.RoutineFile)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	routine, stale := config.MergeRoutine(existing, names)
	if len(stale) > 0 {
		log.Warn().Strs("phases", stale).Msg("routine file lists phases that no longer exist")
	}

	data, err := config.MarshalTaskRoutine(routine)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func writeExtractError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, phases.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, phases.ErrInvalidSyntax):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
