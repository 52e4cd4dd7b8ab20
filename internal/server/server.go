package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lazypower/cadence/internal/session"
	"github.com/lazypower/cadence/internal/store"
)

// maxBodyBytes caps request bodies; a note batch rarely exceeds a few KB.
const maxBodyBytes = 4 << 20

// Server is the cadence HTTP API server.
type Server struct {
	reg     *session.Registry
	db      *store.DB
	router  chi.Router
	version string
	started time.Time
	logger  *slog.Logger
}

// New creates a Server over reg. db is the journal backing reg and may be
// nil when sessions are not persisted.
func New(reg *session.Registry, db *store.DB, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		reg:     reg,
		db:      db,
		version: version,
		started: time.Now(),
		logger:  logger,
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Get("/sessions", s.handleListSessions)
		r.Post("/sessions/init", s.handleSessionInit)
		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Get("/", s.handleSessionStats)
			r.Post("/notes", s.handleAddNotes)
			r.Get("/aggregate", s.handleAggregate)
			r.Get("/multiscale", s.handleMultiScale)
			r.Get("/activity", s.handleActivity)
			r.Post("/decide", s.handleDecide)
			r.Get("/decisions", s.handleDecisions)
			r.Post("/end", s.handleEndSession)
		})
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":   "ok",
		"version":  s.version,
		"uptime":   time.Since(s.started).Seconds(),
		"sessions": s.reg.Len(),
		"journal":  false,
	}
	if s.db != nil {
		resp["journal"] = s.db.Ping() == nil
		resp["db_path"] = s.db.Path
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeSessionError maps registry errors onto status codes.
func (s *Server) writeSessionError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, session.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.logger.Error("request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", middleware.GetReqID(r.Context()),
		"err", err,
	)
	writeError(w, http.StatusInternalServerError, err.Error())
}
