package notification

import (
	"context"
	"expvar"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/pulse/pulse-api/internal/domain/identity"
	"github.com/pulse/pulse-api/internal/pkg/eventbus"
	"github.com/pulse/pulse-api/internal/pkg/pairlock"
)

// ProfileDirectory resolves sender profiles for rendered notifications
type ProfileDirectory interface {
	GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*identity.User, error)
}

// RealtimePublisher pushes aggregate changes to a connected recipient.
// Implementations are best-effort: a recipient without a live session is
// simply skipped.
type RealtimePublisher interface {
	NotifyNew(ctx context.Context, recipientID uuid.UUID, n *Response)
	NotifyRemoved(ctx context.Context, recipientID, notificationID uuid.UUID)
}

var (
	aggregatesMergedTotal   = expvar.NewInt("notifications_merged_total")
	aggregatesCreatedTotal  = expvar.NewInt("notifications_created_total")
	aggregatesReversedTotal = expvar.NewInt("notifications_reversed_total")
)

// Service aggregates events into notifications and serves the read side.
// It is the bus handler: HandleEvent applies one event at a time. A keyed
// lock serializes same-key events within the process, and every mutation
// runs through Repository.Mutate, whose recipient row lock serializes the
// read-modify-write across instances.
type Service struct {
	repo     Repository
	profiles ProfileDirectory
	realtime RealtimePublisher
	locks    *pairlock.Locker
	window   time.Duration
	now      func() time.Time
}

// NewService creates the aggregator. window bounds how long an aggregate
// keeps accepting contributions, measured from its last update.
func NewService(repo Repository, profiles ProfileDirectory, realtime RealtimePublisher, window time.Duration) *Service {
	return &Service{
		repo:     repo,
		profiles: profiles,
		realtime: realtime,
		locks:    pairlock.New(),
		window:   window,
		now:      time.Now,
	}
}

// HandleEvent implements eventbus.Handler
func (s *Service) HandleEvent(ctx context.Context, ev eventbus.Event) {
	unlock := s.locks.Lock(aggregateKey(ev))
	defer unlock()

	var err error
	switch ev.Action {
	case eventbus.ActionAdd:
		err = s.apply(ctx, ev)
	case eventbus.ActionRemove:
		err = s.reverse(ctx, ev)
	default:
		log.Warn().Str("action", string(ev.Action)).Msg("Unknown event action")
		return
	}
	if err != nil {
		log.Error().Err(err).
			Str("type", ev.Type).
			Str("recipient_id", ev.RecipientID.String()).
			Msg("Failed to apply event")
	}
}

// aggregateKey scopes the serialization lock to one mergeable aggregate.
// The follow-request family keys on the actor because requesters never
// merge with each other, and the follow family collapses onto one key
// because a reversal may unwind either the follow or the follow_back
// aggregate.
func aggregateKey(ev eventbus.Event) string {
	typ := ev.Type
	if typ == eventbus.TypeFollowBack {
		typ = eventbus.TypeFollow
	}
	if perActor(typ) {
		return ev.RecipientID.String() + "|" + typ + "|" + ev.ActorID.String()
	}
	return ev.RecipientID.String() + "|" + typ + "|" + ev.TargetKey
}

// perActor reports whether aggregates of this type hold a single actor
func perActor(typ string) bool {
	return typ == eventbus.TypeFollowRequest || typ == eventbus.TypeFollowRequestAccepted
}

// reversalTypes lists the aggregate types a reversal may have to unwind.
// A follow contribution is typed follow or follow_back depending on the
// reverse edge at the time it was added, and the reverse edge may have
// changed since, so a follow-family reversal checks both.
func reversalTypes(typ string) []string {
	switch typ {
	case eventbus.TypeFollow:
		return []string{eventbus.TypeFollow, eventbus.TypeFollowBack}
	case eventbus.TypeFollowBack:
		return []string{eventbus.TypeFollowBack, eventbus.TypeFollow}
	}
	return []string{typ}
}

func (s *Service) findOpen(store MutationStore, ev eventbus.Event) (*Aggregate, error) {
	since := s.now().Add(-s.window)
	if perActor(ev.Type) {
		return store.FindOpenByActor(ev.RecipientID, ev.Type, ev.ActorID, since)
	}
	return store.FindOpen(ev.RecipientID, ev.Type, ev.TargetKey, since)
}

// findOpenWithActor resolves the open aggregate that actually holds the
// actor's contribution, across every type the reversal may concern.
func (s *Service) findOpenWithActor(store MutationStore, ev eventbus.Event) (*Aggregate, error) {
	for _, typ := range reversalTypes(ev.Type) {
		candidate := ev
		candidate.Type = typ
		agg, err := s.findOpen(store, candidate)
		if err != nil {
			return nil, err
		}
		if agg != nil && agg.HasActor(ev.ActorID) {
			return agg, nil
		}
	}
	return nil, nil
}

func (s *Service) apply(ctx context.Context, ev eventbus.Event) error {
	now := s.now()

	var out *Aggregate
	var created bool

	err := s.repo.Mutate(ctx, ev.RecipientID, func(store MutationStore) error {
		agg, err := s.findOpen(store, ev)
		if err != nil {
			return err
		}

		if agg != nil {
			if agg.HasActor(ev.ActorID) {
				return nil
			}
			agg.AddActor(ev.ActorID, now)
			agg.IsRead = false
			if err := store.Update(agg); err != nil {
				return err
			}
			out = agg
			return nil
		}

		agg = &Aggregate{
			ID:          uuid.New(),
			RecipientID: ev.RecipientID,
			Type:        ev.Type,
			TargetKey:   ev.TargetKey,
			CreatedAt:   now,
		}
		agg.AddActor(ev.ActorID, now)
		if err := store.Create(agg); err != nil {
			return err
		}
		out = agg
		created = true
		return nil
	})
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}

	if created {
		aggregatesCreatedTotal.Add(1)
	} else {
		aggregatesMergedTotal.Add(1)
	}
	s.push(ctx, out)
	return nil
}

// reverse removes one actor's contribution from the open aggregate holding
// it. It is a no-op when no aggregate is open, when the actor never
// contributed, or when the window has already closed: the notification then
// stands as history.
func (s *Service) reverse(ctx context.Context, ev eventbus.Event) error {
	var out *Aggregate
	deletedID := uuid.Nil
	recipientID := ev.RecipientID

	err := s.repo.Mutate(ctx, ev.RecipientID, func(store MutationStore) error {
		agg, err := s.findOpenWithActor(store, ev)
		if err != nil {
			return err
		}
		if agg == nil {
			return nil
		}

		if !agg.RemoveActor(ev.ActorID, s.now()) {
			return nil
		}

		if agg.Count == 0 {
			if err := store.Delete(agg.ID); err != nil {
				return err
			}
			deletedID = agg.ID
			return nil
		}

		if err := store.Update(agg); err != nil {
			return err
		}
		out = agg
		return nil
	})
	if err != nil {
		return err
	}

	if deletedID != uuid.Nil {
		aggregatesReversedTotal.Add(1)
		if s.realtime != nil {
			s.realtime.NotifyRemoved(ctx, recipientID, deletedID)
		}
		return nil
	}
	if out != nil {
		aggregatesReversedTotal.Add(1)
		s.push(ctx, out)
	}
	return nil
}

// push renders the aggregate and forwards it to the recipient's live session
func (s *Service) push(ctx context.Context, agg *Aggregate) {
	if s.realtime == nil {
		return
	}
	n, err := s.render(ctx, agg)
	if err != nil {
		log.Error().Err(err).Str("notification_id", agg.ID.String()).Msg("Failed to render notification")
		return
	}
	s.realtime.NotifyNew(ctx, agg.RecipientID, n)
}

func (s *Service) render(ctx context.Context, agg *Aggregate) (*Response, error) {
	profiles, err := s.profiles.GetByIDs(ctx, []uuid.UUID{agg.SenderID})
	if err != nil {
		return nil, err
	}
	return ResponseFromAggregate(agg, profiles[agg.SenderID]), nil
}

// List returns the recipient's notifications newest-first with messages
// rendered against current profile names.
func (s *Service) List(ctx context.Context, recipientID uuid.UUID, limit, offset int) ([]*Response, int, error) {
	aggregates, total, err := s.repo.ListByRecipient(ctx, recipientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	senderIDs := make([]uuid.UUID, 0, len(aggregates))
	for _, agg := range aggregates {
		senderIDs = append(senderIDs, agg.SenderID)
	}
	profiles, err := s.profiles.GetByIDs(ctx, senderIDs)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]*Response, 0, len(aggregates))
	for _, agg := range aggregates {
		responses = append(responses, ResponseFromAggregate(agg, profiles[agg.SenderID]))
	}
	return responses, total, nil
}

// UnreadCount returns the recipient's unread aggregate count
func (s *Service) UnreadCount(ctx context.Context, recipientID uuid.UUID) (int, error) {
	return s.repo.CountUnread(ctx, recipientID)
}

// MarkRead marks one of the recipient's notifications as read
func (s *Service) MarkRead(ctx context.Context, recipientID, id uuid.UUID) error {
	return s.repo.MarkRead(ctx, recipientID, id)
}

// MarkAllRead marks all of the recipient's notifications as read
func (s *Service) MarkAllRead(ctx context.Context, recipientID uuid.UUID) error {
	return s.repo.MarkAllRead(ctx, recipientID)
}

// Delete removes one of the recipient's notifications
func (s *Service) Delete(ctx context.Context, recipientID, id uuid.UUID) error {
	return s.repo.DeleteByRecipient(ctx, recipientID, id)
}
