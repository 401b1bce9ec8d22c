// Package server implements the Roulette development backend: the auth,
// chat and object-storage endpoints the client polls, over plain HTTP.
package server

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/microcosm-cc/bluemonday"

	"github.com/NicolasHaas/roulette/pkg/store"
)

// Config holds server configuration.
type Config struct {
	Addr         string        // HTTP bind address (e.g. ":8080")
	DBPath       string        // SQLite database path
	DataDir      string        // directory for uploaded objects
	BaseURL      string        // public origin used in upload URLs (empty = derived from Addr)
	OnlineWindow time.Duration // how recently a user must have been seen to count as online
	MetricsLog   time.Duration // periodic metrics summary interval (0 = disabled)
}

// Dependencies holds external dependencies for the server.
// Server assumes ownership of Store and will Close() it on shutdown.
type Dependencies struct {
	Store store.DataStore
	Now   func() time.Time // defaults to time.Now
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:         ":8080",
		DBPath:       "roulette.db",
		DataDir:      "data",
		OnlineWindow: 5 * time.Minute,
		MetricsLog:   60 * time.Second,
	}
}

// PublicURL returns the origin clients should use to reach this server.
func (c Config) PublicURL() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	addr := c.Addr
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr
}

func (c Config) uploadDir() string {
	return filepath.Join(c.DataDir, "uploads")
}

// Server is the development backend.
type Server struct {
	cfg      Config
	store    store.DataStore
	metrics  *Metrics
	sanitize *bluemonday.Policy
	now      func() time.Time
	httpSrv  *http.Server
	ctx      context.Context
	cancel   context.CancelFunc
}

// New creates a new Server instance.
func New(cfg Config, deps Dependencies) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	if cfg.OnlineWindow <= 0 {
		cfg.OnlineWindow = DefaultConfig().OnlineWindow
	}
	return &Server{
		cfg:      cfg,
		store:    deps.Store,
		metrics:  NewMetrics(),
		sanitize: bluemonday.StrictPolicy(),
		now:      now,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Metrics returns the server metrics.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Handler builds the HTTP router. The API mirrors the three hosted
// functions the client was written against: /api/auth, /api/chat and
// /api/upload, plus direct object downloads under /dl.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.countRequests)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         86400,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/auth", s.handleGetSettings)
		r.Post("/auth", s.handleAuth)
		r.Put("/auth", s.handleUpdateSettings)

		r.Get("/chat", s.handleGetChat)
		r.Post("/chat", s.handlePostChat)
		r.Put("/chat", s.handleDeleteMessage)

		r.Post("/upload", s.handleUpload)
	})

	r.Get("/dl/{id}/{name}", s.handleDownload)
	r.Get("/{id}/{name}", s.handleLanding)

	r.Get("/metrics", s.handleMetrics)
	r.Get("/stats", s.handleStats)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	return r
}

func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.metrics.Requests.Add(1)
		next.ServeHTTP(w, r)
	})
}
