// Package api assembles the HTTP surface of the briefdesk engine.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/briefdesk/briefdesk/internal/api/handlers"
	"github.com/briefdesk/briefdesk/internal/api/middleware"
	"github.com/briefdesk/briefdesk/internal/config"
	"github.com/briefdesk/briefdesk/pkg/contracts"
)

// NewRouter creates the HTTP router with all API routes.
func NewRouter(cfg *config.Config, h *handlers.Handlers, identity contracts.IdentityProvider) http.Handler {
	r := chi.NewRouter()

	// Global middleware. Identity runs before Logger and Telemetry so both
	// see the resolved caller.
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(middleware.Identity(identity))
	r.Use(middleware.Logger)
	r.Use(middleware.Telemetry)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept", "Authorization", "Content-Type", "X-Request-Id",
			"X-User-Id", "X-User-Name", "X-User-Email", "X-User-Scopes",
			"X-Service-Token", "X-API-Key",
		},
		ExposedHeaders:   []string{"X-Request-Id", "X-Trace-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health & info
	r.Get("/health", healthHandler)
	r.Get("/version", versionHandler(cfg))

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/chat", func(r chi.Router) {
			r.Post("/", h.Chat)
			// Confirmation descriptors may instruct the client to confirm
			// with DELETE (delete_article); both verbs resolve the same
			// checkpoint.
			r.Post("/resume", h.Resume)
			r.Delete("/resume", h.Resume)
		})

		r.Route("/conversations/{threadId}", func(r chi.Router) {
			r.Get("/", h.GetConversation)
			r.Delete("/", h.DeleteConversation)
			r.Get("/confirmation", h.GetConfirmation)
			r.Get("/audit", h.GetAudit)
		})

		r.Route("/articles", func(r chi.Router) {
			r.Get("/", h.ListArticles)
			r.Post("/", h.CreateArticle)
			r.Get("/{articleId}", h.GetArticle)
		})
	})

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "briefdesk-engine",
	})
}

func versionHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"version": cfg.Version,
			"service": "briefdesk-engine",
		})
	}
}
