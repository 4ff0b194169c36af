package identity

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pulse/pulse-api/internal/middleware"
	"github.com/pulse/pulse-api/internal/pkg/response"
	"github.com/pulse/pulse-api/internal/pkg/validator"
)

// Handler handles identity HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates identity handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// GetMe handles GET /users/me
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	u, err := h.service.Get(r.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			response.NotFound(w, "User not found")
			return
		}
		response.InternalError(w)
		return
	}

	response.OK(w, ProfileFromEntity(u))
}

// GetUser handles GET /users/{id}
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid user ID")
		return
	}

	u, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			response.NotFound(w, "User not found")
			return
		}
		response.InternalError(w)
		return
	}

	response.OK(w, ProfileFromEntity(u))
}

// UpdatePrivacy handles PATCH /users/me/privacy
func (h *Handler) UpdatePrivacy(w http.ResponseWriter, r *http.Request) {
	var req UpdatePrivacyRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	userID := middleware.GetUserID(r.Context())
	u, err := h.service.SetPrivacy(r.Context(), userID, *req.IsPrivate)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			response.NotFound(w, "User not found")
			return
		}
		response.InternalError(w)
		return
	}

	response.OK(w, ProfileFromEntity(u))
}

// UserRoutes registers identity endpoints on the /users router. The graph
// handler registers its user-scoped endpoints on the same router.
func (h *Handler) UserRoutes(r chi.Router) {
	r.Get("/me", h.GetMe)
	r.Patch("/me/privacy", h.UpdatePrivacy)
	r.Get("/{id}", h.GetUser)
}
