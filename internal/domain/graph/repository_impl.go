package graph

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/pulse/pulse-api/internal/domain/identity"
)

const pairTxAttempts = 3

type repository struct {
	db *sqlx.DB
}

// NewRepository creates relationship graph repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

type pairTx struct {
	tx    *sqlx.Tx
	users map[uuid.UUID]*identity.User
}

func (r *repository) WithPairTx(ctx context.Context, a, b uuid.UUID, fn func(tx PairTx) error) error {
	var lastErr error
	for attempt := 0; attempt < pairTxAttempts; attempt++ {
		err := r.runPairTx(ctx, a, b, fn)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		lastErr = err
		log.Warn().Err(err).
			Int("attempt", attempt+1).
			Msg("Relationship transaction conflict, retrying")
	}
	log.Error().Err(lastErr).Msg("Relationship transaction retries exhausted")
	return ErrConflict
}

func (r *repository) runPairTx(ctx context.Context, a, b uuid.UUID, fn func(tx PairTx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Lock both identity rows in deterministic order so concurrent
	// operations on the same pair cannot deadlock.
	var rows []*identity.User
	err = tx.SelectContext(ctx, &rows, `
		SELECT * FROM users WHERE id IN ($1, $2) ORDER BY id FOR UPDATE
	`, a, b)
	if err != nil {
		return err
	}

	pt := &pairTx{tx: tx, users: make(map[uuid.UUID]*identity.User, len(rows))}
	for _, u := range rows {
		pt.users[u.ID] = u
	}

	if err := fn(pt); err != nil {
		return err
	}
	return tx.Commit()
}

// isRetryable reports whether the error is a serialization failure or
// deadlock that a fresh attempt can resolve.
func isRetryable(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "40001" || pqErr.Code == "40P01"
	}
	return false
}

func (t *pairTx) User(id uuid.UUID) *identity.User {
	return t.users[id]
}

func (t *pairTx) FollowExists(followerID, followeeID uuid.UUID) (bool, error) {
	var exists bool
	err := t.tx.Get(&exists,
		`SELECT EXISTS(SELECT 1 FROM follows WHERE follower_id = $1 AND followee_id = $2)`,
		followerID, followeeID)
	return exists, err
}

func (t *pairTx) CreateFollow(followerID, followeeID uuid.UUID) error {
	_, err := t.tx.Exec(`
		INSERT INTO follows (follower_id, followee_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (follower_id, followee_id) DO NOTHING
	`, followerID, followeeID, time.Now())
	if err != nil {
		return err
	}
	return t.adjustCounters(followerID, followeeID, +1)
}

func (t *pairTx) DeleteFollow(followerID, followeeID uuid.UUID) (bool, error) {
	result, err := t.tx.Exec(
		`DELETE FROM follows WHERE follower_id = $1 AND followee_id = $2`,
		followerID, followeeID)
	if err != nil {
		return false, err
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return false, nil
	}
	return true, t.adjustCounters(followerID, followeeID, -1)
}

// adjustCounters keeps the denormalized counts equal to the edge-set sizes;
// it runs in the same transaction as the edge change by construction.
func (t *pairTx) adjustCounters(followerID, followeeID uuid.UUID, delta int) error {
	if _, err := t.tx.Exec(
		`UPDATE users SET following_count = following_count + $2 WHERE id = $1`,
		followerID, delta); err != nil {
		return err
	}
	_, err := t.tx.Exec(
		`UPDATE users SET followers_count = followers_count + $2 WHERE id = $1`,
		followeeID, delta)
	return err
}

func (t *pairTx) RequestExists(requesterID, recipientID uuid.UUID) (bool, error) {
	var exists bool
	err := t.tx.Get(&exists,
		`SELECT EXISTS(SELECT 1 FROM follow_requests WHERE requester_id = $1 AND recipient_id = $2)`,
		requesterID, recipientID)
	return exists, err
}

func (t *pairTx) CreateRequest(requesterID, recipientID uuid.UUID) error {
	_, err := t.tx.Exec(`
		INSERT INTO follow_requests (requester_id, recipient_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (requester_id, recipient_id) DO NOTHING
	`, requesterID, recipientID, time.Now())
	return err
}

func (t *pairTx) DeleteRequest(requesterID, recipientID uuid.UUID) (bool, error) {
	result, err := t.tx.Exec(
		`DELETE FROM follow_requests WHERE requester_id = $1 AND recipient_id = $2`,
		requesterID, recipientID)
	if err != nil {
		return false, err
	}
	affected, _ := result.RowsAffected()
	return affected > 0, nil
}

func (t *pairTx) BlockExists(blockerID, blockedID uuid.UUID) (bool, error) {
	var exists bool
	err := t.tx.Get(&exists,
		`SELECT EXISTS(SELECT 1 FROM user_blocks WHERE blocker_user_id = $1 AND blocked_user_id = $2)`,
		blockerID, blockedID)
	return exists, err
}

func (t *pairTx) CreateBlock(blockerID, blockedID uuid.UUID) error {
	_, err := t.tx.Exec(`
		INSERT INTO user_blocks (blocker_user_id, blocked_user_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (blocker_user_id, blocked_user_id) DO NOTHING
	`, blockerID, blockedID, time.Now())
	return err
}

func (t *pairTx) DeleteBlock(blockerID, blockedID uuid.UUID) (bool, error) {
	result, err := t.tx.Exec(
		`DELETE FROM user_blocks WHERE blocker_user_id = $1 AND blocked_user_id = $2`,
		blockerID, blockedID)
	if err != nil {
		return false, err
	}
	affected, _ := result.RowsAffected()
	return affected > 0, nil
}

func (r *repository) PairState(ctx context.Context, a, b uuid.UUID) (*PairState, error) {
	query := `
		SELECT
			EXISTS(SELECT 1 FROM follows WHERE follower_id = $1 AND followee_id = $2)         AS a_follows_b,
			EXISTS(SELECT 1 FROM follows WHERE follower_id = $2 AND followee_id = $1)         AS b_follows_a,
			EXISTS(SELECT 1 FROM follow_requests WHERE requester_id = $1 AND recipient_id = $2) AS a_requested_b,
			EXISTS(SELECT 1 FROM follow_requests WHERE requester_id = $2 AND recipient_id = $1) AS b_requested_a,
			EXISTS(SELECT 1 FROM user_blocks WHERE blocker_user_id = $1 AND blocked_user_id = $2) AS a_blocked_b,
			EXISTS(SELECT 1 FROM user_blocks WHERE blocker_user_id = $2 AND blocked_user_id = $1) AS b_blocked_a
	`
	var row struct {
		AFollowsB   bool `db:"a_follows_b"`
		BFollowsA   bool `db:"b_follows_a"`
		ARequestedB bool `db:"a_requested_b"`
		BRequestedA bool `db:"b_requested_a"`
		ABlockedB   bool `db:"a_blocked_b"`
		BBlockedA   bool `db:"b_blocked_a"`
	}
	if err := r.db.GetContext(ctx, &row, query, a, b); err != nil {
		return nil, err
	}
	return &PairState{
		AFollowsB:   row.AFollowsB,
		BFollowsA:   row.BFollowsA,
		ARequestedB: row.ARequestedB,
		BRequestedA: row.BRequestedA,
		ABlockedB:   row.ABlockedB,
		BBlockedA:   row.BBlockedA,
	}, nil
}

func (r *repository) PendingRequesterIDs(ctx context.Context, recipientID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.SelectContext(ctx, &ids,
		`SELECT requester_id FROM follow_requests WHERE recipient_id = $1 ORDER BY created_at`,
		recipientID)
	return ids, err
}

func (r *repository) ListPendingRequests(ctx context.Context, recipientID uuid.UUID, limit, offset int) ([]*FollowRequest, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM follow_requests WHERE recipient_id = $1`, recipientID); err != nil {
		return nil, 0, err
	}

	var requests []*FollowRequest
	err := r.db.SelectContext(ctx, &requests, `
		SELECT * FROM follow_requests
		WHERE recipient_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, recipientID, limit, offset)
	return requests, total, err
}

func (r *repository) ListFollowers(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*FollowEdge, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM follows WHERE followee_id = $1`, userID); err != nil {
		return nil, 0, err
	}

	var edges []*FollowEdge
	err := r.db.SelectContext(ctx, &edges, `
		SELECT * FROM follows
		WHERE followee_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	return edges, total, err
}

func (r *repository) ListFollowing(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*FollowEdge, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM follows WHERE follower_id = $1`, userID); err != nil {
		return nil, 0, err
	}

	var edges []*FollowEdge
	err := r.db.SelectContext(ctx, &edges, `
		SELECT * FROM follows
		WHERE follower_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	return edges, total, err
}

func (r *repository) ListBlocks(ctx context.Context, userID uuid.UUID) ([]*BlockRelation, error) {
	var blocks []*BlockRelation
	err := r.db.SelectContext(ctx, &blocks,
		`SELECT * FROM user_blocks WHERE blocker_user_id = $1 ORDER BY created_at DESC`,
		userID)
	return blocks, err
}
