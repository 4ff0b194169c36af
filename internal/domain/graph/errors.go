package graph

import "errors"

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrSelfAction      = errors.New("cannot perform this action on yourself")
	ErrBlocked         = errors.New("action not allowed between blocked users")
	ErrRequestNotFound = errors.New("follow request not found")
	ErrNotFollowing    = errors.New("user is not a follower")
	ErrConflict        = errors.New("conflicting concurrent update, retry")
)
