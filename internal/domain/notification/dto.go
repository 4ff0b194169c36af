package notification

import (
	"time"

	"github.com/google/uuid"

	"github.com/pulse/pulse-api/internal/domain/identity"
)

// Response is a rendered notification as delivered over the API and the
// realtime channel
type Response struct {
	ID        uuid.UUID                 `json:"id"`
	Type      string                    `json:"type"`
	TargetKey string                    `json:"target_key,omitempty"`
	Message   string                    `json:"message"`
	Count     int                       `json:"count"`
	IsRead    bool                      `json:"is_read"`
	Sender    *identity.ProfileResponse `json:"sender,omitempty"`
	CreatedAt time.Time                 `json:"created_at"`
	UpdatedAt time.Time                 `json:"updated_at"`
}

// ResponseFromAggregate renders an aggregate with the current sender profile.
// A nil sender (deleted account) renders as "Someone".
func ResponseFromAggregate(agg *Aggregate, sender *identity.User) *Response {
	senderName := "Someone"
	var profile *identity.ProfileResponse
	if sender != nil {
		senderName = sender.Name()
		profile = identity.ProfileFromEntity(sender)
	}

	return &Response{
		ID:        agg.ID,
		Type:      agg.Type,
		TargetKey: agg.TargetKey,
		Message:   RenderMessage(agg.Type, senderName, agg.Count),
		Count:     agg.Count,
		IsRead:    agg.IsRead,
		Sender:    profile,
		CreatedAt: agg.CreatedAt,
		UpdatedAt: agg.UpdatedAt,
	}
}
