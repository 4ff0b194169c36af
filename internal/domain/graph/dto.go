package graph

import (
	"time"

	"github.com/google/uuid"
)

// RelationshipResponse for GET /users/{id}/relationship
type RelationshipResponse struct {
	State        RelationshipState `json:"state"`
	FollowsYou   bool              `json:"follows_you"`
	RequestedYou bool              `json:"requested_you"`
}

// RelationshipFromPairState converts a pair snapshot, viewed from the actor,
// into an API response
func RelationshipFromPairState(p *PairState) *RelationshipResponse {
	return &RelationshipResponse{
		State:        p.StateOf(),
		FollowsYou:   p.BFollowsA,
		RequestedYou: p.BRequestedA,
	}
}

// RelatedUserResponse is a follower, followee or requester in API responses
type RelatedUserResponse struct {
	UserID      uuid.UUID `json:"user_id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name,omitempty"`
	AvatarURL   *string   `json:"avatar_url,omitempty"`
	Since       string    `json:"since"`
}

// BlockedUserResponse represents a blocked user in API responses
type BlockedUserResponse struct {
	UserID      uuid.UUID `json:"user_id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name,omitempty"`
	AvatarURL   *string   `json:"avatar_url,omitempty"`
	BlockedAt   string    `json:"blocked_at"`
}

func relatedUser(userID uuid.UUID, username, displayName string, avatarURL *string, since time.Time) *RelatedUserResponse {
	return &RelatedUserResponse{
		UserID:      userID,
		Username:    username,
		DisplayName: displayName,
		AvatarURL:   avatarURL,
		Since:       since.Format(time.RFC3339),
	}
}
