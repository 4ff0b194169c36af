package saved

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ContentType defines what can be saved
type ContentType string

const (
	ContentTypePost  ContentType = "post"
	ContentTypeVideo ContentType = "video"
)

// Item represents a saved reference to another user's content. OwnerID is
// the content author, kept denormalized so block cleanup can prune by pair.
type Item struct {
	ID          uuid.UUID   `json:"id" db:"id"`
	UserID      uuid.UUID   `json:"user_id" db:"user_id"`
	ContentType ContentType `json:"content_type" db:"content_type"`
	ContentID   uuid.UUID   `json:"content_id" db:"content_id"`
	OwnerID     uuid.UUID   `json:"owner_id" db:"owner_id"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
}

// Repository for saved content references
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates saved repository
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Add saves a content reference, idempotently
func (r *Repository) Add(ctx context.Context, userID uuid.UUID, contentType ContentType, contentID, ownerID uuid.UUID) (*Item, error) {
	item := &Item{
		ID:          uuid.New(),
		UserID:      userID,
		ContentType: contentType,
		ContentID:   contentID,
		OwnerID:     ownerID,
		CreatedAt:   time.Now(),
	}

	query := `
		INSERT INTO saved_items (id, user_id, content_type, content_id, owner_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, content_type, content_id) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query,
		item.ID, item.UserID, item.ContentType, item.ContentID, item.OwnerID, item.CreatedAt)
	if err != nil {
		return nil, err
	}
	return item, nil
}

// Remove deletes a saved reference
func (r *Repository) Remove(ctx context.Context, userID uuid.UUID, contentType ContentType, contentID uuid.UUID) error {
	query := `DELETE FROM saved_items WHERE user_id = $1 AND content_type = $2 AND content_id = $3`
	_, err := r.db.ExecContext(ctx, query, userID, contentType, contentID)
	return err
}

// ListByUser returns a user's saved references, newest first
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Item, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM saved_items WHERE user_id = $1`, userID); err != nil {
		return nil, 0, err
	}

	var items []*Item
	err := r.db.SelectContext(ctx, &items, `
		SELECT * FROM saved_items
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	return items, total, err
}

// DeleteBetween removes both users' saves of each other's content.
// Called by the graph service when one of them blocks the other.
func (r *Repository) DeleteBetween(ctx context.Context, a, b uuid.UUID) error {
	query := `
		DELETE FROM saved_items
		WHERE (user_id = $1 AND owner_id = $2)
		   OR (user_id = $2 AND owner_id = $1)
	`
	_, err := r.db.ExecContext(ctx, query, a, b)
	return err
}

// DeleteByOwner removes every save of the given owner's content
func (r *Repository) DeleteByOwner(ctx context.Context, ownerID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM saved_items WHERE owner_id = $1`, ownerID)
	return err
}
