// Package api exposes the task-graph runtime over HTTP: task submission,
// task results, and a streaming view of the event bus.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ternarybob/merlin"
	"github.com/ternarybob/merlin/internal/config"
)

// version is set via -ldflags at build time.
var version = "dev"

// SetVersion sets the version string reported by /version.
func SetVersion(v string) { version = v }

// Server exposes a merlin.Runtime over HTTP.
type Server struct {
	cfg     *config.Config
	runtime *merlin.Runtime
	router  chi.Router
}

// NewServer builds a Server wired to an already-constructed Runtime.
func NewServer(cfg *config.Config, runtime *merlin.Runtime) *Server {
	s := &Server{cfg: cfg, runtime: runtime}
	s.setupRouter()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(time.Duration(s.requestTimeoutSeconds()) * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.allowedOrigins(),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if s.cfg.API.APIKey != "" {
		r.Use(s.apiKeyAuth)
	}

	r.Get("/health", s.handleHealth)
	r.Get("/version", s.handleVersion)
	r.Post("/tasks", s.handleSubmitTasks)
	r.Post("/requests", s.handleProcessRequest)
	r.Get("/events", s.handleEvents)

	s.router = r
}

func (s *Server) requestTimeoutSeconds() int {
	if s.cfg.API.RequestTimeout > 0 {
		return s.cfg.API.RequestTimeout
	}
	return 60
}

func (s *Server) allowedOrigins() []string {
	if len(s.cfg.API.AllowedOrigins) > 0 {
		return s.cfg.API.AllowedOrigins
	}
	return []string{"http://localhost:*", "http://127.0.0.1:*"}
}

func (s *Server) apiKeyAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != s.cfg.API.APIKey {
			writeError(w, http.StatusUnauthorized, "invalid or missing API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}
