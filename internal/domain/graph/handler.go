package graph

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pulse/pulse-api/internal/domain/identity"
	"github.com/pulse/pulse-api/internal/middleware"
	"github.com/pulse/pulse-api/internal/pkg/response"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// ProfileDirectory resolves identity profiles for list enrichment
type ProfileDirectory interface {
	GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*identity.User, error)
}

// Handler handles relationship graph HTTP requests
type Handler struct {
	service  *Service
	profiles ProfileDirectory
}

// NewHandler creates graph handler
func NewHandler(service *Service, profiles ProfileDirectory) *Handler {
	return &Handler{service: service, profiles: profiles}
}

// Follow handles POST /users/{id}/follow
func (h *Handler) Follow(w http.ResponseWriter, r *http.Request) {
	targetID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid user ID")
		return
	}

	result, err := h.service.Follow(r.Context(), middleware.GetUserID(r.Context()), targetID)
	if err != nil {
		respondError(w, err)
		return
	}
	response.OK(w, result)
}

// Unfollow handles DELETE /users/{id}/follow (also cancels a pending request)
func (h *Handler) Unfollow(w http.ResponseWriter, r *http.Request) {
	targetID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid user ID")
		return
	}

	result, err := h.service.Unfollow(r.Context(), middleware.GetUserID(r.Context()), targetID)
	if err != nil {
		respondError(w, err)
		return
	}
	response.OK(w, result)
}

// AcceptRequest handles POST /follow-requests/{id}/accept
func (h *Handler) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	requesterID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid user ID")
		return
	}

	result, err := h.service.AcceptRequest(r.Context(), middleware.GetUserID(r.Context()), requesterID)
	if err != nil {
		respondError(w, err)
		return
	}
	response.OK(w, result)
}

// DeclineRequest handles POST /follow-requests/{id}/decline
func (h *Handler) DeclineRequest(w http.ResponseWriter, r *http.Request) {
	requesterID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid user ID")
		return
	}

	result, err := h.service.DeclineRequest(r.Context(), middleware.GetUserID(r.Context()), requesterID)
	if err != nil {
		respondError(w, err)
		return
	}
	response.OK(w, result)
}

// RemoveFollower handles DELETE /users/{id}/follower
func (h *Handler) RemoveFollower(w http.ResponseWriter, r *http.Request) {
	followerID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid user ID")
		return
	}

	result, err := h.service.RemoveFollower(r.Context(), middleware.GetUserID(r.Context()), followerID)
	if err != nil {
		respondError(w, err)
		return
	}
	response.OK(w, result)
}

// BlockUser handles POST /users/{id}/block
func (h *Handler) BlockUser(w http.ResponseWriter, r *http.Request) {
	targetID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid user ID")
		return
	}

	result, err := h.service.Block(r.Context(), middleware.GetUserID(r.Context()), targetID)
	if err != nil {
		respondError(w, err)
		return
	}
	response.OK(w, result)
}

// UnblockUser handles DELETE /users/{id}/block
func (h *Handler) UnblockUser(w http.ResponseWriter, r *http.Request) {
	targetID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid user ID")
		return
	}

	result, err := h.service.Unblock(r.Context(), middleware.GetUserID(r.Context()), targetID)
	if err != nil {
		respondError(w, err)
		return
	}
	response.OK(w, result)
}

// Relationship handles GET /users/{id}/relationship
func (h *Handler) Relationship(w http.ResponseWriter, r *http.Request) {
	targetID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid user ID")
		return
	}

	state, err := h.service.Relationship(r.Context(), middleware.GetUserID(r.Context()), targetID)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, RelationshipFromPairState(state))
}

// ListPendingRequests handles GET /follow-requests
func (h *Handler) ListPendingRequests(w http.ResponseWriter, r *http.Request) {
	page, limit := pagination(r)
	userID := middleware.GetUserID(r.Context())

	requests, total, err := h.service.ListPendingRequests(r.Context(), userID, limit, (page-1)*limit)
	if err != nil {
		response.InternalError(w)
		return
	}

	ids := make([]uuid.UUID, 0, len(requests))
	for _, req := range requests {
		ids = append(ids, req.RequesterID)
	}
	profiles := h.resolveProfiles(r.Context(), ids)

	items := make([]*RelatedUserResponse, 0, len(requests))
	for _, req := range requests {
		if u, ok := profiles[req.RequesterID]; ok {
			items = append(items, relatedUser(u.ID, u.Username, u.DisplayName, u.AvatarURL, req.CreatedAt))
		} else {
			items = append(items, relatedUser(req.RequesterID, "unknown", "", nil, req.CreatedAt))
		}
	}

	response.WithMeta(w, items, response.NewMeta(total, page, limit))
}

// ListFollowers handles GET /users/{id}/followers
func (h *Handler) ListFollowers(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid user ID")
		return
	}
	page, limit := pagination(r)

	edges, total, err := h.service.ListFollowers(r.Context(), userID, limit, (page-1)*limit)
	if err != nil {
		response.InternalError(w)
		return
	}

	ids := make([]uuid.UUID, 0, len(edges))
	for _, e := range edges {
		ids = append(ids, e.FollowerID)
	}
	profiles := h.resolveProfiles(r.Context(), ids)

	items := make([]*RelatedUserResponse, 0, len(edges))
	for _, e := range edges {
		if u, ok := profiles[e.FollowerID]; ok {
			items = append(items, relatedUser(u.ID, u.Username, u.DisplayName, u.AvatarURL, e.CreatedAt))
		} else {
			items = append(items, relatedUser(e.FollowerID, "unknown", "", nil, e.CreatedAt))
		}
	}

	response.WithMeta(w, items, response.NewMeta(total, page, limit))
}

// ListFollowing handles GET /users/{id}/following
func (h *Handler) ListFollowing(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid user ID")
		return
	}
	page, limit := pagination(r)

	edges, total, err := h.service.ListFollowing(r.Context(), userID, limit, (page-1)*limit)
	if err != nil {
		response.InternalError(w)
		return
	}

	ids := make([]uuid.UUID, 0, len(edges))
	for _, e := range edges {
		ids = append(ids, e.FolloweeID)
	}
	profiles := h.resolveProfiles(r.Context(), ids)

	items := make([]*RelatedUserResponse, 0, len(edges))
	for _, e := range edges {
		if u, ok := profiles[e.FolloweeID]; ok {
			items = append(items, relatedUser(u.ID, u.Username, u.DisplayName, u.AvatarURL, e.CreatedAt))
		} else {
			items = append(items, relatedUser(e.FolloweeID, "unknown", "", nil, e.CreatedAt))
		}
	}

	response.WithMeta(w, items, response.NewMeta(total, page, limit))
}

// ListBlocked handles GET /users/me/blocked
func (h *Handler) ListBlocked(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	blocks, err := h.service.ListBlocked(r.Context(), userID)
	if err != nil {
		response.InternalError(w)
		return
	}

	ids := make([]uuid.UUID, 0, len(blocks))
	for _, b := range blocks {
		ids = append(ids, b.BlockedUserID)
	}
	profiles := h.resolveProfiles(r.Context(), ids)

	items := make([]*BlockedUserResponse, 0, len(blocks))
	for _, b := range blocks {
		item := &BlockedUserResponse{
			UserID:    b.BlockedUserID,
			Username:  "unknown",
			BlockedAt: b.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		}
		if u, ok := profiles[b.BlockedUserID]; ok {
			item.Username = u.Username
			item.DisplayName = u.DisplayName
			item.AvatarURL = u.AvatarURL
		}
		items = append(items, item)
	}

	response.OK(w, items)
}

func (h *Handler) resolveProfiles(ctx context.Context, ids []uuid.UUID) map[uuid.UUID]*identity.User {
	profiles, err := h.profiles.GetByIDs(ctx, ids)
	if err != nil {
		return map[uuid.UUID]*identity.User{}
	}
	return profiles
}

// respondError maps domain errors to stable API reason codes
func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrRequestNotFound),
		errors.Is(err, ErrNotFollowing):
		response.NotFound(w, err.Error())
	case errors.Is(err, ErrSelfAction):
		response.Error(w, http.StatusBadRequest, "SELF_ACTION", err.Error())
	case errors.Is(err, ErrBlocked):
		response.Error(w, http.StatusForbidden, "BLOCKED", err.Error())
	case errors.Is(err, ErrConflict):
		response.Conflict(w, "Concurrent update, please retry")
	default:
		response.InternalError(w)
	}
}

func pagination(r *http.Request) (page, limit int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}
