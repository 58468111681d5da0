package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dgallion1/reportedit/internal/config"
	"github.com/dgallion1/reportedit/internal/generate"
	"github.com/dgallion1/reportedit/internal/llm"
	"github.com/dgallion1/reportedit/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the HTTP API of the report editor. orchestrator and stats are
// nil when no model is configured.
type Server struct {
	router       chi.Router
	svc          *service.Service
	orchestrator *generate.Orchestrator
	stats        *llm.Stats
	log          *slog.Logger
	cfg          config.Config
}

func NewServer(svc *service.Service, orch *generate.Orchestrator, stats *llm.Stats, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		svc:          svc,
		orchestrator: orch,
		stats:        stats,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/reports", s.handleCreateReport)
		r.Get("/api/jobs/{jobID}", s.handleJobStatus)
		r.Get("/api/stats/llm", s.handleLLMStats)

		r.Route("/api/reports/{reportID}", func(r chi.Router) {
			r.Get("/", s.handleGetReport)
			r.Get("/file", s.handleFile)
			r.Get("/html", s.handleHTML)
			r.Get("/edits", s.handleEdits)

			r.Post("/edit", s.handleEdit)
			r.Post("/commands", s.handleCommand)
			r.Post("/suggestions", s.handleSuggestions)

			r.Get("/versions", s.handleVersions)
			r.Post("/versions", s.handleCreateVersion)
			r.Post("/versions/{version}/restore", s.handleRestore)
		})
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Ping(r.Context()); err != nil {
		s.log.Warn("health check failed", "error", err)
		jsonError(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
