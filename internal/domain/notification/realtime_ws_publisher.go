package notification

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type wsUserSender interface {
	SendToUserJSON(userID uuid.UUID, payload any) error
}

// WSPublisher pushes notification events over websocket sessions
type WSPublisher struct {
	sender wsUserSender
}

// NewWSPublisher creates a WS-backed realtime publisher
func NewWSPublisher(sender wsUserSender) *WSPublisher {
	return &WSPublisher{sender: sender}
}

// NotifyNew pushes a created or updated notification to the recipient
func (p *WSPublisher) NotifyNew(_ context.Context, recipientID uuid.UUID, n *Response) {
	if p == nil || p.sender == nil {
		return
	}

	payload := map[string]interface{}{
		"type": "notification:new",
		"data": n,
	}
	if err := p.sender.SendToUserJSON(recipientID, payload); err != nil {
		log.Warn().Err(err).Str("user_id", recipientID.String()).Msg("Realtime push failed")
	}
}

// NotifyRemoved tells the recipient a notification no longer exists
func (p *WSPublisher) NotifyRemoved(_ context.Context, recipientID, notificationID uuid.UUID) {
	if p == nil || p.sender == nil {
		return
	}

	payload := map[string]interface{}{
		"type": "notification:removed",
		"data": map[string]string{"id": notificationID.String()},
	}
	if err := p.sender.SendToUserJSON(recipientID, payload); err != nil {
		log.Warn().Err(err).Str("user_id", recipientID.String()).Msg("Realtime push failed")
	}
}
