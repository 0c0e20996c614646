package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/veridoc/internal/chunker"
	"github.com/dgallion1/veridoc/internal/config"
	"github.com/dgallion1/veridoc/internal/corpus"
	"github.com/dgallion1/veridoc/internal/store"
	"github.com/dgallion1/veridoc/internal/verify"
)

// Server is the HTTP API server for veridoc.
type Server struct {
	router   chi.Router
	sessions *store.SessionStore
	chunker  *chunker.Chunker
	verifier *verify.Verifier
	corpus   *corpus.Manager
	log      *slog.Logger
	cfg      config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(sessions *store.SessionStore, ch *chunker.Chunker, vf *verify.Verifier, cm *corpus.Manager, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		sessions: sessions,
		chunker:  ch,
		verifier: vf,
		corpus:   cm,
		log:      log,
		cfg:      cfg,
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

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.VeridocAPIKey, s.log))

		r.Post("/api/documents", s.handleUpload)
		r.Get("/api/documents", s.handleListDocuments)
		r.Post("/api/documents/{docID}/chunk", s.handleChunk)
		r.Post("/api/documents/{docID}/export", s.handleExport)
		r.Get("/api/documents/{docID}/download", s.handleDownload)

		r.Post("/api/verify/references", s.handleUploadReferences)
		r.Post("/api/verify/execute", s.handleExecuteVerification)
		r.Delete("/api/verify/reset/{docID}", s.handleResetVerification)

		// Store resource names contain slashes (fileSearchStores/...), so
		// the route takes a wildcard rather than a single path segment.
		r.Delete("/api/corpus/*", s.handleDeleteCorpus)

		r.Delete("/api/cache", s.handleClearCache)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":             "ok",
		"documents_in_store": len(s.sessions.List()),
	})
}
