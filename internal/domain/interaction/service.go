package interaction

import (
	"context"

	"github.com/google/uuid"

	"github.com/pulse/pulse-api/internal/pkg/eventbus"
)

// BlockChecker reports whether either user blocks the other
type BlockChecker interface {
	IsBlockedPair(ctx context.Context, a, b uuid.UUID) (bool, error)
}

// Publisher enqueues events for the aggregator
type Publisher interface {
	Publish(ev eventbus.Event)
}

// Service validates reported interactions and forwards them to the bus.
// Events between a blocked pair and events from an actor to themselves are
// accepted but never forwarded.
type Service struct {
	blocks BlockChecker
	bus    Publisher
}

// NewService creates interaction ingest service
func NewService(blocks BlockChecker, bus Publisher) *Service {
	return &Service{blocks: blocks, bus: bus}
}

// Ingest forwards one interaction event. Returns false when the event was
// suppressed.
func (s *Service) Ingest(ctx context.Context, req *EventRequest) (bool, error) {
	actorID, err := uuid.Parse(req.ActorID)
	if err != nil {
		return false, err
	}
	recipientID, err := uuid.Parse(req.RecipientID)
	if err != nil {
		return false, err
	}

	if actorID == recipientID {
		return false, nil
	}

	blocked, err := s.blocks.IsBlockedPair(ctx, actorID, recipientID)
	if err != nil {
		return false, err
	}
	if blocked {
		return false, nil
	}

	s.bus.Publish(eventbus.Event{
		RecipientID: recipientID,
		Type:        req.Type,
		TargetKey:   req.TargetKey(),
		ActorID:     actorID,
		Action:      eventbus.Action(req.Action),
	})
	return true, nil
}
