package saved

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pulse/pulse-api/internal/middleware"
	"github.com/pulse/pulse-api/internal/pkg/response"
	"github.com/pulse/pulse-api/internal/pkg/validator"
)

// SaveRequest for PUT /saved/{type}/{id}
type SaveRequest struct {
	OwnerID string `json:"owner_id" validate:"required,uuid"`
}

// Handler handles saved-content HTTP requests
type Handler struct {
	repo *Repository
}

// NewHandler creates saved handler
func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// Save handles PUT /saved/{type}/{id}
func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	contentType := ContentType(chi.URLParam(r, "type"))
	if contentType != ContentTypePost && contentType != ContentTypeVideo {
		response.BadRequest(w, "Content type must be post or video")
		return
	}
	contentID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid content ID")
		return
	}

	var req SaveRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}
	ownerID, _ := uuid.Parse(req.OwnerID)

	userID := middleware.GetUserID(r.Context())
	item, err := h.repo.Add(r.Context(), userID, contentType, contentID, ownerID)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.Created(w, item)
}

// Unsave handles DELETE /saved/{type}/{id}
func (h *Handler) Unsave(w http.ResponseWriter, r *http.Request) {
	contentType := ContentType(chi.URLParam(r, "type"))
	contentID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid content ID")
		return
	}

	userID := middleware.GetUserID(r.Context())
	if err := h.repo.Remove(r.Context(), userID, contentType, contentID); err != nil {
		response.InternalError(w)
		return
	}

	response.NoContent(w)
}

// List handles GET /saved
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	userID := middleware.GetUserID(r.Context())
	items, total, err := h.repo.ListByUser(r.Context(), userID, limit, (page-1)*limit)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.WithMeta(w, items, response.NewMeta(total, page, limit))
}

// Routes returns the saved-content router (mounted at /saved)
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)

	r.Get("/", h.List)
	r.Put("/{type}/{id}", h.Save)
	r.Delete("/{type}/{id}", h.Unsave)

	return r
}
