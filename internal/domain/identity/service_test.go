package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

type memRepo struct {
	users map[uuid.UUID]*User
}

func newMemRepo() *memRepo {
	return &memRepo{users: make(map[uuid.UUID]*User)}
}

func (m *memRepo) Create(_ context.Context, u *User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	m.users[u.ID] = u
	return nil
}

func (m *memRepo) GetByID(_ context.Context, id uuid.UUID) (*User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (m *memRepo) GetByUsername(_ context.Context, username string) (*User, error) {
	for _, u := range m.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memRepo) GetByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]*User, error) {
	out := make(map[uuid.UUID]*User)
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func (m *memRepo) SetPrivacy(_ context.Context, id uuid.UUID, isPrivate bool) error {
	u, ok := m.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.IsPrivate = isPrivate
	return nil
}

type capturingHook struct {
	calls []uuid.UUID
	err   error
}

func (h *capturingHook) AcceptAllPending(_ context.Context, recipientID uuid.UUID) (int, error) {
	h.calls = append(h.calls, recipientID)
	return 2, h.err
}

func seedUser(repo *memRepo, username string, private bool) uuid.UUID {
	id := uuid.New()
	repo.users[id] = &User{ID: id, Username: username, IsPrivate: private}
	return id
}

func TestSetPrivacyRelaxAcceptsPending(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	hook := &capturingHook{}
	svc.SetPrivacyRelaxHook(hook)

	id := seedUser(repo, "dana", true)

	u, err := svc.SetPrivacy(context.Background(), id, false)
	if err != nil {
		t.Fatal(err)
	}
	if u.IsPrivate {
		t.Error("user still private")
	}
	if len(hook.calls) != 1 || hook.calls[0] != id {
		t.Errorf("hook calls = %v, want one call for %s", hook.calls, id)
	}
}

func TestSetPrivacyTighteningSkipsHook(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	hook := &capturingHook{}
	svc.SetPrivacyRelaxHook(hook)

	id := seedUser(repo, "dana", false)

	if _, err := svc.SetPrivacy(context.Background(), id, true); err != nil {
		t.Fatal(err)
	}
	if len(hook.calls) != 0 {
		t.Error("hook called on public to private transition")
	}
}

func TestSetPrivacyNoChangeIsNoop(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	hook := &capturingHook{}
	svc.SetPrivacyRelaxHook(hook)

	id := seedUser(repo, "dana", true)

	u, err := svc.SetPrivacy(context.Background(), id, true)
	if err != nil {
		t.Fatal(err)
	}
	if !u.IsPrivate || len(hook.calls) != 0 {
		t.Error("no-op privacy update had side effects")
	}
}

func TestSetPrivacyHookFailureNotFatal(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	svc.SetPrivacyRelaxHook(&capturingHook{err: errors.New("store down")})

	id := seedUser(repo, "dana", true)

	u, err := svc.SetPrivacy(context.Background(), id, false)
	if err != nil {
		t.Fatalf("hook failure surfaced: %v", err)
	}
	if u.IsPrivate {
		t.Error("privacy flag not flipped despite hook failure")
	}
}

func TestSetPrivacyUnknownUser(t *testing.T) {
	svc := NewService(newMemRepo())

	if _, err := svc.SetPrivacy(context.Background(), uuid.New(), false); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("err = %v, want ErrUserNotFound", err)
	}
}
