package graph

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/pulse/pulse-api/internal/pkg/eventbus"
	"github.com/pulse/pulse-api/internal/pkg/pairlock"
)

// Publisher emits graph-change events onto the event bus
type Publisher interface {
	Publish(ev eventbus.Event)
}

// SavedPruner removes saved-content cross-references between two users.
// Wired to the saved domain; called as a best-effort cleanup after a block.
type SavedPruner interface {
	DeleteBetween(ctx context.Context, a, b uuid.UUID) error
}

// Result is the outcome of a graph operation. Changed is false when the
// operation was an idempotent no-op (already following, already blocked).
type Result struct {
	State   RelationshipState `json:"state"`
	Changed bool              `json:"changed"`
}

// Service is the relationship state machine. Every mutation runs under the
// pair's keyed mutex and inside a two-sided store transaction; events are
// published only after the transaction commits.
type Service struct {
	repo   Repository
	locks  *pairlock.Locker
	bus    Publisher
	pruner SavedPruner
}

// NewService creates the graph service
func NewService(repo Repository, bus Publisher, pruner SavedPruner) *Service {
	return &Service{
		repo:   repo,
		locks:  pairlock.New(),
		bus:    bus,
		pruner: pruner,
	}
}

// Follow initiates a follow from actor to target. Public targets gain a
// follower immediately; private targets receive a pending request.
func (s *Service) Follow(ctx context.Context, actorID, targetID uuid.UUID) (*Result, error) {
	if actorID == targetID {
		return nil, ErrSelfAction
	}

	unlock := s.locks.Lock(pairlock.PairKey(actorID, targetID))
	defer unlock()

	var result Result
	var pending []eventbus.Event

	err := s.repo.WithPairTx(ctx, actorID, targetID, func(tx PairTx) error {
		target := tx.User(targetID)
		if tx.User(actorID) == nil || target == nil {
			return ErrUserNotFound
		}

		if err := s.ensureNotBlocked(tx, actorID, targetID); err != nil {
			return err
		}

		following, err := tx.FollowExists(actorID, targetID)
		if err != nil {
			return err
		}
		if following {
			result = Result{State: StateFollowing, Changed: false}
			return nil
		}

		requested, err := tx.RequestExists(actorID, targetID)
		if err != nil {
			return err
		}
		if requested {
			result = Result{State: StateRequested, Changed: false}
			return nil
		}

		if target.IsPrivate {
			if err := tx.CreateRequest(actorID, targetID); err != nil {
				return err
			}
			result = Result{State: StateRequested, Changed: true}
			pending = append(pending, eventbus.Event{
				RecipientID: targetID,
				Type:        eventbus.TypeFollowRequest,
				ActorID:     actorID,
				Action:      eventbus.ActionAdd,
			})
			return nil
		}

		if err := tx.CreateFollow(actorID, targetID); err != nil {
			return err
		}
		result = Result{State: StateFollowing, Changed: true}

		followType, err := s.followEventType(tx, actorID, targetID)
		if err != nil {
			return err
		}
		pending = append(pending, eventbus.Event{
			RecipientID: targetID,
			Type:        followType,
			ActorID:     actorID,
			Action:      eventbus.ActionAdd,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(pending)
	return &result, nil
}

// Unfollow cancels a pending request or removes an existing follow edge,
// whichever is present. Absent edges make it an idempotent no-op.
func (s *Service) Unfollow(ctx context.Context, actorID, targetID uuid.UUID) (*Result, error) {
	if actorID == targetID {
		return nil, ErrSelfAction
	}

	unlock := s.locks.Lock(pairlock.PairKey(actorID, targetID))
	defer unlock()

	var result Result
	var pending []eventbus.Event

	err := s.repo.WithPairTx(ctx, actorID, targetID, func(tx PairTx) error {
		if tx.User(actorID) == nil || tx.User(targetID) == nil {
			return ErrUserNotFound
		}

		removed, err := tx.DeleteRequest(actorID, targetID)
		if err != nil {
			return err
		}
		if removed {
			result = Result{State: StateNone, Changed: true}
			pending = append(pending, eventbus.Event{
				RecipientID: targetID,
				Type:        eventbus.TypeFollowRequest,
				ActorID:     actorID,
				Action:      eventbus.ActionRemove,
			})
			return nil
		}

		removed, err = tx.DeleteFollow(actorID, targetID)
		if err != nil {
			return err
		}
		if !removed {
			result = Result{State: StateNone, Changed: false}
			return nil
		}

		// The contribution may have been delivered as follow or follow_back
		// depending on the reverse edge at the time; the aggregator resolves
		// the family, so the reversal always goes out as follow.
		result = Result{State: StateNone, Changed: true}
		pending = append(pending, eventbus.Event{
			RecipientID: targetID,
			Type:        eventbus.TypeFollow,
			ActorID:     actorID,
			Action:      eventbus.ActionRemove,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(pending)
	return &result, nil
}

// AcceptRequest turns a pending request from requester into a follow edge.
// A request that vanished concurrently surfaces as ErrRequestNotFound.
func (s *Service) AcceptRequest(ctx context.Context, recipientID, requesterID uuid.UUID) (*Result, error) {
	if recipientID == requesterID {
		return nil, ErrSelfAction
	}

	unlock := s.locks.Lock(pairlock.PairKey(recipientID, requesterID))
	defer unlock()

	result, pending, err := s.acceptLocked(ctx, recipientID, requesterID)
	if err != nil {
		return nil, err
	}

	s.publish(pending)
	return result, nil
}

// acceptLocked performs the accept transaction; the caller holds the pair lock.
func (s *Service) acceptLocked(ctx context.Context, recipientID, requesterID uuid.UUID) (*Result, []eventbus.Event, error) {
	var result Result
	var pending []eventbus.Event

	err := s.repo.WithPairTx(ctx, recipientID, requesterID, func(tx PairTx) error {
		if tx.User(recipientID) == nil || tx.User(requesterID) == nil {
			return ErrUserNotFound
		}

		removed, err := tx.DeleteRequest(requesterID, recipientID)
		if err != nil {
			return err
		}
		if !removed {
			return ErrRequestNotFound
		}

		if err := tx.CreateFollow(requesterID, recipientID); err != nil {
			return err
		}

		result = Result{State: StateFollowing, Changed: true}
		pending = append(pending, eventbus.Event{
			RecipientID: requesterID,
			Type:        eventbus.TypeFollowRequestAccepted,
			ActorID:     recipientID,
			Action:      eventbus.ActionAdd,
		})
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &result, pending, nil
}

// DeclineRequest removes a pending request without creating an edge.
// The requester is not notified.
func (s *Service) DeclineRequest(ctx context.Context, recipientID, requesterID uuid.UUID) (*Result, error) {
	if recipientID == requesterID {
		return nil, ErrSelfAction
	}

	unlock := s.locks.Lock(pairlock.PairKey(recipientID, requesterID))
	defer unlock()

	var result Result
	err := s.repo.WithPairTx(ctx, recipientID, requesterID, func(tx PairTx) error {
		if tx.User(recipientID) == nil || tx.User(requesterID) == nil {
			return ErrUserNotFound
		}

		removed, err := tx.DeleteRequest(requesterID, recipientID)
		if err != nil {
			return err
		}
		if !removed {
			return ErrRequestNotFound
		}
		result = Result{State: StateNone, Changed: true}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// RemoveFollower forcibly ends follower's follow of recipient and unwinds
// the follow notification it produced.
func (s *Service) RemoveFollower(ctx context.Context, recipientID, followerID uuid.UUID) (*Result, error) {
	if recipientID == followerID {
		return nil, ErrSelfAction
	}

	unlock := s.locks.Lock(pairlock.PairKey(recipientID, followerID))
	defer unlock()

	var result Result
	var pending []eventbus.Event

	err := s.repo.WithPairTx(ctx, recipientID, followerID, func(tx PairTx) error {
		if tx.User(recipientID) == nil || tx.User(followerID) == nil {
			return ErrUserNotFound
		}

		removed, err := tx.DeleteFollow(followerID, recipientID)
		if err != nil {
			return err
		}
		if !removed {
			return ErrNotFollowing
		}

		result = Result{State: StateNone, Changed: true}
		pending = append(pending, eventbus.Event{
			RecipientID: recipientID,
			Type:        eventbus.TypeFollow,
			ActorID:     followerID,
			Action:      eventbus.ActionRemove,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(pending)
	return &result, nil
}

// Block blocks target. Every follow and request edge between the two, in
// both directions, is cleared first; saved-content cross-references are
// pruned after commit. The block itself produces no notification.
func (s *Service) Block(ctx context.Context, actorID, targetID uuid.UUID) (*Result, error) {
	if actorID == targetID {
		return nil, ErrSelfAction
	}

	unlock := s.locks.Lock(pairlock.PairKey(actorID, targetID))
	defer unlock()

	var result Result
	var pending []eventbus.Event

	err := s.repo.WithPairTx(ctx, actorID, targetID, func(tx PairTx) error {
		if tx.User(actorID) == nil || tx.User(targetID) == nil {
			return ErrUserNotFound
		}

		already, err := tx.BlockExists(actorID, targetID)
		if err != nil {
			return err
		}

		cleared, err := s.clearEdges(tx, actorID, targetID)
		if err != nil {
			return err
		}
		pending = cleared

		if already {
			result = Result{State: StateBlocked, Changed: false}
			return nil
		}

		if err := tx.CreateBlock(actorID, targetID); err != nil {
			return err
		}
		result = Result{State: StateBlocked, Changed: true}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.pruner != nil {
		if err := s.pruner.DeleteBetween(ctx, actorID, targetID); err != nil {
			log.Error().Err(err).
				Str("blocker_id", actorID.String()).
				Str("blocked_id", targetID.String()).
				Msg("Failed to prune saved content after block")
		}
	}

	s.publish(pending)
	return &result, nil
}

// clearEdges removes every follow and request edge between a and b in both
// directions, returning the reversal events for the aggregates they fed.
// Follow removals go out as plain follow regardless of how the contribution
// was typed; the aggregator resolves the follow family on reversal.
func (s *Service) clearEdges(tx PairTx, a, b uuid.UUID) ([]eventbus.Event, error) {
	var events []eventbus.Event

	for _, dir := range [][2]uuid.UUID{{a, b}, {b, a}} {
		follower, followee := dir[0], dir[1]

		removed, err := tx.DeleteFollow(follower, followee)
		if err != nil {
			return nil, err
		}
		if removed {
			events = append(events, eventbus.Event{
				RecipientID: followee,
				Type:        eventbus.TypeFollow,
				ActorID:     follower,
				Action:      eventbus.ActionRemove,
			})
		}

		removed, err = tx.DeleteRequest(follower, followee)
		if err != nil {
			return nil, err
		}
		if removed {
			events = append(events, eventbus.Event{
				RecipientID: followee,
				Type:        eventbus.TypeFollowRequest,
				ActorID:     follower,
				Action:      eventbus.ActionRemove,
			})
		}
	}
	return events, nil
}

// Unblock removes actor's block of target. Prior edges are not restored.
func (s *Service) Unblock(ctx context.Context, actorID, targetID uuid.UUID) (*Result, error) {
	if actorID == targetID {
		return nil, ErrSelfAction
	}

	unlock := s.locks.Lock(pairlock.PairKey(actorID, targetID))
	defer unlock()

	var result Result
	err := s.repo.WithPairTx(ctx, actorID, targetID, func(tx PairTx) error {
		if tx.User(actorID) == nil || tx.User(targetID) == nil {
			return ErrUserNotFound
		}

		removed, err := tx.DeleteBlock(actorID, targetID)
		if err != nil {
			return err
		}
		result = Result{State: StateNone, Changed: removed}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// AcceptAllPending accepts every open incoming request for recipient, each
// through the regular accept path so mirrors, counters and notifications
// behave exactly as an individual accept. Used when an account goes public.
func (s *Service) AcceptAllPending(ctx context.Context, recipientID uuid.UUID) (int, error) {
	requesterIDs, err := s.repo.PendingRequesterIDs(ctx, recipientID)
	if err != nil {
		return 0, err
	}

	accepted := 0
	for _, requesterID := range requesterIDs {
		unlock := s.locks.Lock(pairlock.PairKey(recipientID, requesterID))
		_, pending, err := s.acceptLocked(ctx, recipientID, requesterID)
		unlock()

		if err != nil {
			// A request cancelled concurrently is already consistent.
			if err == ErrRequestNotFound {
				continue
			}
			return accepted, err
		}
		s.publish(pending)
		accepted++
	}
	return accepted, nil
}

// Relationship returns the actor→target state plus the reverse follow flag
func (s *Service) Relationship(ctx context.Context, actorID, targetID uuid.UUID) (*PairState, error) {
	return s.repo.PairState(ctx, actorID, targetID)
}

// ListPendingRequests returns the open incoming requests for a recipient
func (s *Service) ListPendingRequests(ctx context.Context, recipientID uuid.UUID, limit, offset int) ([]*FollowRequest, int, error) {
	return s.repo.ListPendingRequests(ctx, recipientID, limit, offset)
}

// ListFollowers returns a page of the user's followers
func (s *Service) ListFollowers(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*FollowEdge, int, error) {
	return s.repo.ListFollowers(ctx, userID, limit, offset)
}

// ListFollowing returns a page of the identities the user follows
func (s *Service) ListFollowing(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*FollowEdge, int, error) {
	return s.repo.ListFollowing(ctx, userID, limit, offset)
}

// ListBlocked returns all users blocked by the given user
func (s *Service) ListBlocked(ctx context.Context, userID uuid.UUID) ([]*BlockRelation, error) {
	return s.repo.ListBlocks(ctx, userID)
}

// IsBlockedPair reports whether either side has blocked the other. Used by
// the interaction ingress to re-validate content events.
func (s *Service) IsBlockedPair(ctx context.Context, a, b uuid.UUID) (bool, error) {
	state, err := s.repo.PairState(ctx, a, b)
	if err != nil {
		return false, err
	}
	return state.ABlockedB || state.BBlockedA, nil
}

// ensureNotBlocked rejects the operation when either direction is blocked
func (s *Service) ensureNotBlocked(tx PairTx, a, b uuid.UUID) error {
	for _, dir := range [][2]uuid.UUID{{a, b}, {b, a}} {
		blocked, err := tx.BlockExists(dir[0], dir[1])
		if err != nil {
			return err
		}
		if blocked {
			return ErrBlocked
		}
	}
	return nil
}

// followEventType types a new follow contribution: follow_back when the
// followee already follows the follower, plain follow otherwise.
func (s *Service) followEventType(tx PairTx, followerID, followeeID uuid.UUID) (string, error) {
	reverse, err := tx.FollowExists(followeeID, followerID)
	if err != nil {
		return "", err
	}
	if reverse {
		return eventbus.TypeFollowBack, nil
	}
	return eventbus.TypeFollow, nil
}

func (s *Service) publish(events []eventbus.Event) {
	if s.bus == nil {
		return
	}
	for _, ev := range events {
		s.bus.Publish(ev)
	}
}
