package identity

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Repository defines identity data access
type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*User, error)
	SetPrivacy(ctx context.Context, id uuid.UUID, isPrivate bool) error
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates identity repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, u *User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	query := `
		INSERT INTO users (id, username, display_name, avatar_url, is_private, followers_count, following_count, created_at)
		VALUES ($1, $2, $3, $4, $5, 0, 0, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		u.ID, u.Username, u.DisplayName, u.AvatarURL, u.IsPrivate, u.CreatedAt)
	return err
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `SELECT * FROM users WHERE id = $1`
	var u User
	err := r.db.GetContext(ctx, &u, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (r *repository) GetByUsername(ctx context.Context, username string) (*User, error) {
	query := `SELECT * FROM users WHERE username = $1`
	var u User
	err := r.db.GetContext(ctx, &u, query, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// GetByIDs loads a batch of identities, used for resolving actor names when
// rendering notification messages at read time.
func (r *repository) GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*User, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]*User{}, nil
	}

	strIDs := make([]string, 0, len(ids))
	for _, id := range ids {
		strIDs = append(strIDs, id.String())
	}

	query := `SELECT * FROM users WHERE id = ANY($1)`
	var users []*User
	if err := r.db.SelectContext(ctx, &users, query, pq.Array(strIDs)); err != nil {
		return nil, err
	}

	result := make(map[uuid.UUID]*User, len(users))
	for _, u := range users {
		result[u.ID] = u
	}
	return result, nil
}

func (r *repository) SetPrivacy(ctx context.Context, id uuid.UUID, isPrivate bool) error {
	query := `UPDATE users SET is_private = $2 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, isPrivate)
	if err != nil {
		return err
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrUserNotFound
	}
	return nil
}
