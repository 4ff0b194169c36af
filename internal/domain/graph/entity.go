package graph

import (
	"time"

	"github.com/google/uuid"
)

// RelationshipState describes one direction of a pair, actor → target
type RelationshipState string

const (
	StateNone      RelationshipState = "none"
	StateFollowing RelationshipState = "following"
	StateRequested RelationshipState = "requested"
	StateBlocked   RelationshipState = "blocked"
)

// FollowEdge represents a follower → followee edge. A single row carries both
// mirrored views: follower's "following" entry and followee's "followers"
// entry are the same record read from opposite directions.
type FollowEdge struct {
	FollowerID uuid.UUID `db:"follower_id" json:"follower_id"`
	FolloweeID uuid.UUID `db:"followee_id" json:"followee_id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// FollowRequest represents a pending request to follow a private account
type FollowRequest struct {
	RequesterID uuid.UUID `db:"requester_id" json:"requester_id"`
	RecipientID uuid.UUID `db:"recipient_id" json:"recipient_id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// BlockRelation represents a user-to-user block
type BlockRelation struct {
	BlockerUserID uuid.UUID `db:"blocker_user_id" json:"blocker_user_id"`
	BlockedUserID uuid.UUID `db:"blocked_user_id" json:"blocked_user_id"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// PairState is a point-in-time snapshot of every edge between two identities
type PairState struct {
	AFollowsB   bool
	BFollowsA   bool
	ARequestedB bool
	BRequestedA bool
	ABlockedB   bool
	BBlockedA   bool
}

// StateOf returns the relationship state in the A→B direction
func (p *PairState) StateOf() RelationshipState {
	switch {
	case p.ABlockedB || p.BBlockedA:
		return StateBlocked
	case p.AFollowsB:
		return StateFollowing
	case p.ARequestedB:
		return StateRequested
	default:
		return StateNone
	}
}
