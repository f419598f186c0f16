package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(recoveryMiddleware)
	r.Use(loggingMiddleware)
	r.Use(securityHeadersMiddleware)
	r.Use(tenantMiddleware)

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	r.Route("/cards", func(r chi.Router) {
		r.Post("/", s.handleCreateCards)
		r.Get("/", s.handleListCards)
		r.Get("/search", s.handleSearchCards)
		r.Post("/search", s.handleSearchCardsBatch)
		r.Get("/due", s.handleDueCards)
		r.Post("/edit", s.handleEditCards)
		r.Post("/delete", s.handleDeleteCards)

		r.Get("/{id}", s.handleGetCard)
		r.Patch("/{id}", s.handleEditCard)
		r.Delete("/{id}", s.handleDeleteCard)
		r.Get("/{id}/preview", s.handlePreviewReview)
		r.Post("/{id}/undo", s.handleUndoReview)
		r.Get("/{id}/history", s.handleReviewHistory)
	})
	r.Post("/reviews", s.handleSubmitReviews)
	r.Get("/stats", s.handleStats)

	return r
}
