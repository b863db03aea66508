package server

import (
	"net/http"

	"github.com/cloo-solutions/doctalk/internal/api"
	"github.com/cloo-solutions/doctalk/internal/api/handlers"
	"github.com/cloo-solutions/doctalk/internal/api/middleware"
	"github.com/go-chi/chi/v5"
)

type RouterConfig struct {
	IndexHandler   *handlers.IndexHandler
	SessionHandler *handlers.SessionHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 32 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/index", func(r chi.Router) {
		r.Post("/", cfg.IndexHandler.Build)
		r.Get("/", cfg.IndexHandler.Status)
		r.Delete("/", cfg.IndexHandler.Reset)
		r.Post("/rebuild", cfg.IndexHandler.Rebuild)
	})

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", cfg.SessionHandler.Create)
		r.Get("/", cfg.SessionHandler.List)
		r.Delete("/{id}", cfg.SessionHandler.Delete)
		r.Get("/{id}/messages", cfg.SessionHandler.GetMessages)
		r.Post("/{id}/messages", cfg.SessionHandler.AppendMessage)
		r.Post("/{id}/ask", cfg.SessionHandler.Ask)
	})

	return r
}
