package interaction

import "strings"

// EventRequest is one content interaction reported by an upstream service
// (posts, videos, comments). Comment and reply IDs narrow the target so
// reactions on different comments of the same post never merge.
type EventRequest struct {
	Type        string `json:"type" validate:"required,event_type"`
	Action      string `json:"action" validate:"required,event_action"`
	ActorID     string `json:"actor_id" validate:"required,uuid"`
	RecipientID string `json:"recipient_id" validate:"required,uuid"`
	ContentID   string `json:"content_id" validate:"required,uuid"`
	CommentID   string `json:"comment_id,omitempty" validate:"omitempty,uuid"`
	ReplyID     string `json:"reply_id,omitempty" validate:"omitempty,uuid"`
}

// TargetKey derives the aggregation key from the most specific content IDs
func (r *EventRequest) TargetKey() string {
	parts := []string{r.ContentID}
	if r.CommentID != "" {
		parts = append(parts, r.CommentID)
		if r.ReplyID != "" {
			parts = append(parts, r.ReplyID)
		}
	}
	return strings.Join(parts, ":")
}

// EventResponse reports whether the event was accepted for aggregation
type EventResponse struct {
	Accepted bool `json:"accepted"`
}
