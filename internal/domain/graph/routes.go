package graph

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// UserRoutes registers the user-scoped graph endpoints on the /users router.
// The caller applies authentication before mounting.
func (h *Handler) UserRoutes(r chi.Router) {
	// Follow lifecycle
	r.Post("/{id}/follow", h.Follow)
	r.Delete("/{id}/follow", h.Unfollow)
	r.Delete("/{id}/follower", h.RemoveFollower)

	// Block/unblock operations
	r.Post("/{id}/block", h.BlockUser)
	r.Delete("/{id}/block", h.UnblockUser)
	r.Get("/me/blocked", h.ListBlocked)

	// Reads
	r.Get("/{id}/relationship", h.Relationship)
	r.Get("/{id}/followers", h.ListFollowers)
	r.Get("/{id}/following", h.ListFollowing)
}

// RequestRoutes returns the follow-request router (mounted at /follow-requests)
func (h *Handler) RequestRoutes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)

	r.Get("/", h.ListPendingRequests)
	r.Post("/{id}/accept", h.AcceptRequest)
	r.Post("/{id}/decline", h.DeclineRequest)

	return r
}
