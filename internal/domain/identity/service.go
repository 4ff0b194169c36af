package identity

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// PrivacyRelaxHook is notified when an account switches from private to
// public, so every pending follow request can be accepted.
type PrivacyRelaxHook interface {
	AcceptAllPending(ctx context.Context, recipientID uuid.UUID) (int, error)
}

// Service handles identity reads and privacy changes
type Service struct {
	repo Repository
	hook PrivacyRelaxHook
}

// NewService creates identity service
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// SetPrivacyRelaxHook wires the graph service in after construction (the
// graph service itself depends on this package's repository).
func (s *Service) SetPrivacyRelaxHook(hook PrivacyRelaxHook) {
	s.hook = hook
}

// Get returns a user by id
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

// GetByUsername returns a user by username
func (s *Service) GetByUsername(ctx context.Context, username string) (*User, error) {
	u, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

// SetPrivacy updates the account privacy flag. A true→false transition
// accepts every pending incoming follow request.
func (s *Service) SetPrivacy(ctx context.Context, userID uuid.UUID, isPrivate bool) (*User, error) {
	current, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if current.IsPrivate == isPrivate {
		return current, nil
	}

	if err := s.repo.SetPrivacy(ctx, userID, isPrivate); err != nil {
		return nil, err
	}
	current.IsPrivate = isPrivate

	if current.IsPrivate || s.hook == nil {
		return current, nil
	}

	accepted, err := s.hook.AcceptAllPending(ctx, userID)
	if err != nil {
		// The privacy flag is already flipped; remaining requests can still
		// be accepted individually.
		log.Error().Err(err).
			Str("user_id", userID.String()).
			Msg("Failed to accept pending requests after privacy relax")
		return current, nil
	}
	if accepted > 0 {
		log.Info().
			Str("user_id", userID.String()).
			Int("accepted", accepted).
			Msg("Accepted pending follow requests after going public")
	}

	return current, nil
}
