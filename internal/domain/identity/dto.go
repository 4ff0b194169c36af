package identity

// UpdatePrivacyRequest for PATCH /users/me/privacy
type UpdatePrivacyRequest struct {
	IsPrivate *bool `json:"is_private" validate:"required"`
}

// ProfileResponse represents a user in API responses
type ProfileResponse struct {
	ID             string  `json:"id"`
	Username       string  `json:"username"`
	DisplayName    string  `json:"display_name"`
	AvatarURL      *string `json:"avatar_url,omitempty"`
	IsPrivate      bool    `json:"is_private"`
	FollowersCount int     `json:"followers_count"`
	FollowingCount int     `json:"following_count"`
}

// ProfileFromEntity converts entity to response
func ProfileFromEntity(u *User) *ProfileResponse {
	return &ProfileResponse{
		ID:             u.ID.String(),
		Username:       u.Username,
		DisplayName:    u.DisplayName,
		AvatarURL:      u.AvatarURL,
		IsPrivate:      u.IsPrivate,
		FollowersCount: u.FollowersCount,
		FollowingCount: u.FollowingCount,
	}
}
