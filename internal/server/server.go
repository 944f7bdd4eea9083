// Package server exposes document export and generation over HTTP.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/alnah/go-texport"
)

// DefaultMaxBodyBytes caps request bodies when Options leaves it unset.
const DefaultMaxBodyBytes = 10 << 20

// Exporter runs export jobs. *texport.Pool and *texport.Exporter satisfy it.
type Exporter interface {
	Export(ctx context.Context, req texport.Request) (*texport.Result, error)
}

// Options tunes the HTTP surface.
type Options struct {
	Production   bool  // omit stack traces from error responses
	MaxBodyBytes int64 // 0 = DefaultMaxBodyBytes
	MaxDepth     int   // default heading depth for /generate, 0 = two levels
	DateFormat   string
	Now          func() time.Time
}

// Server is the HTTP API server for texport.
type Server struct {
	router   chi.Router
	exporter Exporter
	log      *slog.Logger
	opts     Options
}

// New creates and configures the HTTP server.
func New(exp Exporter, log *slog.Logger, opts Options) *Server {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Server{
		exporter: exp,
		log:      log,
		opts:     opts,
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
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(s.log))

	r.Get("/health", s.handleHealth)

	r.Post("/export/word", s.handleExport(texport.FormatWord))
	r.Post("/export/pdf", s.handleExport(texport.FormatPDF))
	r.Post("/generate", s.handleGenerate)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		jsonError(w, "not found", http.StatusNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
