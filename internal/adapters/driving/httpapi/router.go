package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(accessLog)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Post("/chat", s.handleChat)
		r.Post("/search", s.handleSearch)
		r.Post("/risk", s.handleRisk)

		r.Get("/knowledge", s.handleListKnowledge)
		r.Post("/knowledge", s.handleAddKnowledge)

		r.Get("/conversations/stats", s.handleStats)
		r.Get("/conversations/{conversationID}/export", s.handleExport)
		r.Post("/cleanup", s.handleCleanup)
	})

	return r
}
