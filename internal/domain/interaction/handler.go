package interaction

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pulse/pulse-api/internal/pkg/response"
	"github.com/pulse/pulse-api/internal/pkg/validator"
)

// Handler handles interaction ingest HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates interaction handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Ingest handles POST /internal/events/interactions
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req EventRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	accepted, err := h.service.Ingest(r.Context(), &req)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, &EventResponse{Accepted: accepted})
}

// Routes returns the interaction ingest router (mounted at /internal/events)
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)

	r.Post("/interactions", h.Ingest)

	return r
}
