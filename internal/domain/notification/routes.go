package notification

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes returns the notification router (mounted at /notifications)
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)

	r.Get("/", h.List)
	r.Get("/unread-count", h.UnreadCount)
	r.Patch("/{id}/read", h.MarkRead)
	r.Patch("/read-all", h.MarkAllRead)
	r.Delete("/{id}", h.Delete)

	return r
}
