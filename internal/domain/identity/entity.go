package identity

import (
	"time"

	"github.com/google/uuid"
)

// User represents an identity record (matches users table). The follower and
// following counters are denormalized and maintained by the graph domain
// inside the same transaction as the edge rows.
type User struct {
	ID             uuid.UUID `db:"id" json:"id"`
	Username       string    `db:"username" json:"username"`
	DisplayName    string    `db:"display_name" json:"display_name"`
	AvatarURL      *string   `db:"avatar_url" json:"avatar_url,omitempty"`
	IsPrivate      bool      `db:"is_private" json:"is_private"`
	FollowersCount int       `db:"followers_count" json:"followers_count"`
	FollowingCount int       `db:"following_count" json:"following_count"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Name returns the best human-readable name for notification messages
func (u *User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}
