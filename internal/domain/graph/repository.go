package graph

import (
	"context"

	"github.com/google/uuid"

	"github.com/pulse/pulse-api/internal/domain/identity"
)

// PairTx is the unit of work covering both sides of a relationship mutation.
// Implementations guarantee that every edit made through it commits atomically
// or not at all, and that the two identity rows stay locked for its duration.
type PairTx interface {
	// User returns the locked identity row, or nil if the id does not exist
	User(id uuid.UUID) *identity.User

	FollowExists(followerID, followeeID uuid.UUID) (bool, error)
	// CreateFollow inserts the edge and bumps both denormalized counters
	CreateFollow(followerID, followeeID uuid.UUID) error
	// DeleteFollow removes the edge and decrements both counters when it existed
	DeleteFollow(followerID, followeeID uuid.UUID) (bool, error)

	RequestExists(requesterID, recipientID uuid.UUID) (bool, error)
	CreateRequest(requesterID, recipientID uuid.UUID) error
	DeleteRequest(requesterID, recipientID uuid.UUID) (bool, error)

	BlockExists(blockerID, blockedID uuid.UUID) (bool, error)
	CreateBlock(blockerID, blockedID uuid.UUID) error
	DeleteBlock(blockerID, blockedID uuid.UUID) (bool, error)
}

// Repository defines relationship graph data access
type Repository interface {
	// WithPairTx runs fn inside a transaction holding both identity rows
	// locked in deterministic order. Serialization conflicts are retried;
	// exhaustion surfaces as ErrConflict.
	WithPairTx(ctx context.Context, a, b uuid.UUID, fn func(tx PairTx) error) error

	PairState(ctx context.Context, a, b uuid.UUID) (*PairState, error)
	PendingRequesterIDs(ctx context.Context, recipientID uuid.UUID) ([]uuid.UUID, error)
	ListPendingRequests(ctx context.Context, recipientID uuid.UUID, limit, offset int) ([]*FollowRequest, int, error)
	ListFollowers(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*FollowEdge, int, error)
	ListFollowing(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*FollowEdge, int, error)
	ListBlocks(ctx context.Context, userID uuid.UUID) ([]*BlockRelation, error)
}
