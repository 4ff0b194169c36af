package notification

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

const mutateAttempts = 3

// MutationStore is the write-side view of one mutation transaction. "Open"
// lookups resolve the single mergeable aggregate for a key, checked against
// the merge window via updated_at, with the row locked for the transaction.
type MutationStore interface {
	FindOpen(recipientID uuid.UUID, typ, targetKey string, since time.Time) (*Aggregate, error)
	FindOpenByActor(recipientID uuid.UUID, typ string, actorID uuid.UUID, since time.Time) (*Aggregate, error)
	Create(a *Aggregate) error
	Update(a *Aggregate) error
	Delete(id uuid.UUID) error
}

// Repository defines aggregate data access. All writes go through Mutate so
// the read-modify-write of an aggregate is serialized across instances.
type Repository interface {
	Mutate(ctx context.Context, recipientID uuid.UUID, fn func(store MutationStore) error) error

	ListByRecipient(ctx context.Context, recipientID uuid.UUID, limit, offset int) ([]*Aggregate, int, error)
	CountUnread(ctx context.Context, recipientID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, recipientID, id uuid.UUID) error
	MarkAllRead(ctx context.Context, recipientID uuid.UUID) error
	DeleteByRecipient(ctx context.Context, recipientID, id uuid.UUID) error
	DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error)
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates notification aggregate repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

// Mutate runs fn in a transaction that first locks the recipient's user
// row, so concurrent mutations of the same recipient's aggregates are
// serialized across instances as well as within one. Serialization
// failures and deadlocks are retried.
func (r *repository) Mutate(ctx context.Context, recipientID uuid.UUID, fn func(store MutationStore) error) error {
	var lastErr error
	for attempt := 0; attempt < mutateAttempts; attempt++ {
		err := r.runMutation(ctx, recipientID, fn)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
		lastErr = err
		log.Warn().Err(err).
			Int("attempt", attempt+1).
			Msg("Notification transaction conflict, retrying")
	}
	log.Error().Err(lastErr).Msg("Notification transaction retries exhausted")
	return ErrConflict
}

func (r *repository) runMutation(ctx context.Context, recipientID uuid.UUID, fn func(store MutationStore) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`SELECT id FROM users WHERE id = $1 FOR UPDATE`, recipientID); err != nil {
		return err
	}

	if err := fn(&mutationTx{ctx: ctx, tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

// retryable reports whether the error is a serialization failure or
// deadlock that a fresh attempt can resolve.
func retryable(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "40001" || pqErr.Code == "40P01"
	}
	return false
}

type mutationTx struct {
	ctx context.Context
	tx  *sqlx.Tx
}

func (t *mutationTx) FindOpen(recipientID uuid.UUID, typ, targetKey string, since time.Time) (*Aggregate, error) {
	query := `
		SELECT * FROM notification_aggregates
		WHERE recipient_id = $1 AND type = $2 AND target_key = $3 AND updated_at >= $4
		ORDER BY updated_at DESC
		LIMIT 1
		FOR UPDATE
	`
	return t.getOne(query, recipientID, typ, targetKey, since)
}

// FindOpenByActor resolves the open aggregate whose sole contributor is the
// given actor. Used for the follow-request family, which never merges
// different requesters into one notification.
func (t *mutationTx) FindOpenByActor(recipientID uuid.UUID, typ string, actorID uuid.UUID, since time.Time) (*Aggregate, error) {
	query := `
		SELECT * FROM notification_aggregates
		WHERE recipient_id = $1 AND type = $2 AND sender_id = $3 AND updated_at >= $4
		ORDER BY updated_at DESC
		LIMIT 1
		FOR UPDATE
	`
	return t.getOne(query, recipientID, typ, actorID, since)
}

func (t *mutationTx) getOne(query string, args ...interface{}) (*Aggregate, error) {
	var a Aggregate
	err := t.tx.GetContext(t.ctx, &a, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

func (t *mutationTx) Create(a *Aggregate) error {
	query := `
		INSERT INTO notification_aggregates
			(id, recipient_id, type, target_key, actor_ids, count, sender_id, is_read, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := t.tx.ExecContext(t.ctx, query,
		a.ID, a.RecipientID, a.Type, a.TargetKey, a.ActorIDs, a.Count, a.SenderID, a.IsRead, a.CreatedAt, a.UpdatedAt)
	return err
}

func (t *mutationTx) Update(a *Aggregate) error {
	query := `
		UPDATE notification_aggregates
		SET actor_ids = $2, count = $3, sender_id = $4, is_read = $5, updated_at = $6
		WHERE id = $1
	`
	_, err := t.tx.ExecContext(t.ctx, query, a.ID, a.ActorIDs, a.Count, a.SenderID, a.IsRead, a.UpdatedAt)
	return err
}

func (t *mutationTx) Delete(id uuid.UUID) error {
	_, err := t.tx.ExecContext(t.ctx, `DELETE FROM notification_aggregates WHERE id = $1`, id)
	return err
}

func (r *repository) ListByRecipient(ctx context.Context, recipientID uuid.UUID, limit, offset int) ([]*Aggregate, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM notification_aggregates WHERE recipient_id = $1`, recipientID); err != nil {
		return nil, 0, err
	}

	var aggregates []*Aggregate
	err := r.db.SelectContext(ctx, &aggregates, `
		SELECT * FROM notification_aggregates
		WHERE recipient_id = $1
		ORDER BY updated_at DESC
		LIMIT $2 OFFSET $3
	`, recipientID, limit, offset)
	return aggregates, total, err
}

func (r *repository) CountUnread(ctx context.Context, recipientID uuid.UUID) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM notification_aggregates WHERE recipient_id = $1 AND NOT is_read`,
		recipientID)
	return count, err
}

func (r *repository) MarkRead(ctx context.Context, recipientID, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE notification_aggregates SET is_read = true WHERE id = $1 AND recipient_id = $2`,
		id, recipientID)
	if err != nil {
		return err
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) MarkAllRead(ctx context.Context, recipientID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE notification_aggregates SET is_read = true WHERE recipient_id = $1 AND NOT is_read`,
		recipientID)
	return err
}

func (r *repository) DeleteByRecipient(ctx context.Context, recipientID, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM notification_aggregates WHERE id = $1 AND recipient_id = $2`,
		id, recipientID)
	if err != nil {
		return err
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	cutoff := time.Now().Add(-age)
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM notification_aggregates WHERE updated_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
