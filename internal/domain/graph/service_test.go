package graph

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/pulse/pulse-api/internal/domain/identity"
	"github.com/pulse/pulse-api/internal/pkg/eventbus"
)

// memRepo keeps both sides of every mirrored edge separately, so a missing
// mirrored write shows up as an invariant violation instead of being hidden
// by shared storage.
type memRepo struct {
	mu        sync.Mutex
	users     map[uuid.UUID]*identity.User
	following map[uuid.UUID]map[uuid.UUID]time.Time // user -> set of followees
	followers map[uuid.UUID]map[uuid.UUID]time.Time // user -> set of followers
	sentReqs  map[uuid.UUID]map[uuid.UUID]time.Time // requester -> recipients
	pendReqs  map[uuid.UUID]map[uuid.UUID]time.Time // recipient -> requesters
	blocks    map[uuid.UUID]map[uuid.UUID]time.Time // blocker -> blocked
}

func newMemRepo() *memRepo {
	return &memRepo{
		users:     make(map[uuid.UUID]*identity.User),
		following: make(map[uuid.UUID]map[uuid.UUID]time.Time),
		followers: make(map[uuid.UUID]map[uuid.UUID]time.Time),
		sentReqs:  make(map[uuid.UUID]map[uuid.UUID]time.Time),
		pendReqs:  make(map[uuid.UUID]map[uuid.UUID]time.Time),
		blocks:    make(map[uuid.UUID]map[uuid.UUID]time.Time),
	}
}

func (m *memRepo) addUser(username string, private bool) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.users[id] = &identity.User{ID: id, Username: username, IsPrivate: private, CreatedAt: time.Now()}
	return id
}

func put(m map[uuid.UUID]map[uuid.UUID]time.Time, a, b uuid.UUID) {
	if m[a] == nil {
		m[a] = make(map[uuid.UUID]time.Time)
	}
	m[a][b] = time.Now()
}

func has(m map[uuid.UUID]map[uuid.UUID]time.Time, a, b uuid.UUID) bool {
	_, ok := m[a][b]
	return ok
}

func del(m map[uuid.UUID]map[uuid.UUID]time.Time, a, b uuid.UUID) bool {
	if !has(m, a, b) {
		return false
	}
	delete(m[a], b)
	return true
}

type memPairTx struct {
	repo *memRepo
}

func (t *memPairTx) User(id uuid.UUID) *identity.User {
	return t.repo.users[id]
}

func (t *memPairTx) FollowExists(followerID, followeeID uuid.UUID) (bool, error) {
	return has(t.repo.following, followerID, followeeID), nil
}

func (t *memPairTx) CreateFollow(followerID, followeeID uuid.UUID) error {
	put(t.repo.following, followerID, followeeID)
	put(t.repo.followers, followeeID, followerID)
	t.repo.users[followerID].FollowingCount++
	t.repo.users[followeeID].FollowersCount++
	return nil
}

func (t *memPairTx) DeleteFollow(followerID, followeeID uuid.UUID) (bool, error) {
	if !del(t.repo.following, followerID, followeeID) {
		return false, nil
	}
	del(t.repo.followers, followeeID, followerID)
	t.repo.users[followerID].FollowingCount--
	t.repo.users[followeeID].FollowersCount--
	return true, nil
}

func (t *memPairTx) RequestExists(requesterID, recipientID uuid.UUID) (bool, error) {
	return has(t.repo.sentReqs, requesterID, recipientID), nil
}

func (t *memPairTx) CreateRequest(requesterID, recipientID uuid.UUID) error {
	put(t.repo.sentReqs, requesterID, recipientID)
	put(t.repo.pendReqs, recipientID, requesterID)
	return nil
}

func (t *memPairTx) DeleteRequest(requesterID, recipientID uuid.UUID) (bool, error) {
	if !del(t.repo.sentReqs, requesterID, recipientID) {
		return false, nil
	}
	del(t.repo.pendReqs, recipientID, requesterID)
	return true, nil
}

func (t *memPairTx) BlockExists(blockerID, blockedID uuid.UUID) (bool, error) {
	return has(t.repo.blocks, blockerID, blockedID), nil
}

func (t *memPairTx) CreateBlock(blockerID, blockedID uuid.UUID) error {
	put(t.repo.blocks, blockerID, blockedID)
	return nil
}

func (t *memPairTx) DeleteBlock(blockerID, blockedID uuid.UUID) (bool, error) {
	return del(t.repo.blocks, blockerID, blockedID), nil
}

func (m *memRepo) WithPairTx(ctx context.Context, a, b uuid.UUID, fn func(tx PairTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(&memPairTx{repo: m})
}

func (m *memRepo) PairState(ctx context.Context, a, b uuid.UUID) (*PairState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &PairState{
		AFollowsB:   has(m.following, a, b),
		BFollowsA:   has(m.following, b, a),
		ARequestedB: has(m.sentReqs, a, b),
		BRequestedA: has(m.sentReqs, b, a),
		ABlockedB:   has(m.blocks, a, b),
		BBlockedA:   has(m.blocks, b, a),
	}, nil
}

func (m *memRepo) PendingRequesterIDs(ctx context.Context, recipientID uuid.UUID) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uuid.UUID
	for id := range m.pendReqs[recipientID] {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *memRepo) ListPendingRequests(ctx context.Context, recipientID uuid.UUID, limit, offset int) ([]*FollowRequest, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var requests []*FollowRequest
	for requester, since := range m.pendReqs[recipientID] {
		requests = append(requests, &FollowRequest{RequesterID: requester, RecipientID: recipientID, CreatedAt: since})
	}
	return requests, len(requests), nil
}

func (m *memRepo) ListFollowers(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*FollowEdge, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var edges []*FollowEdge
	for follower, since := range m.followers[userID] {
		edges = append(edges, &FollowEdge{FollowerID: follower, FolloweeID: userID, CreatedAt: since})
	}
	total := len(edges)
	if offset > len(edges) {
		offset = len(edges)
	}
	edges = edges[offset:]
	if limit > 0 && limit < len(edges) {
		edges = edges[:limit]
	}
	return edges, total, nil
}

func (m *memRepo) ListFollowing(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*FollowEdge, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var edges []*FollowEdge
	for followee, since := range m.following[userID] {
		edges = append(edges, &FollowEdge{FollowerID: userID, FolloweeID: followee, CreatedAt: since})
	}
	return edges, len(edges), nil
}

func (m *memRepo) ListBlocks(ctx context.Context, userID uuid.UUID) ([]*BlockRelation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var blocks []*BlockRelation
	for blocked, since := range m.blocks[userID] {
		blocks = append(blocks, &BlockRelation{BlockerUserID: userID, BlockedUserID: blocked, CreatedAt: since})
	}
	return blocks, nil
}

// checkInvariants asserts the relationship invariants that must hold after
// every completed operation.
func (m *memRepo) checkInvariants(t *testing.T) {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()

	for a, followees := range m.following {
		for b := range followees {
			if a == b {
				t.Fatalf("self follow edge on %s", a)
			}
			if !has(m.followers, b, a) {
				t.Fatalf("follow edge %s->%s has no mirrored followers entry", a, b)
			}
			if has(m.sentReqs, a, b) {
				t.Fatalf("%s both follows and has a pending request to %s", a, b)
			}
			if has(m.blocks, a, b) || has(m.blocks, b, a) {
				t.Fatalf("follow edge %s->%s coexists with a block", a, b)
			}
		}
	}
	for b, followers := range m.followers {
		for a := range followers {
			if !has(m.following, a, b) {
				t.Fatalf("followers entry %s on %s has no mirrored following entry", a, b)
			}
		}
	}
	for a, recipients := range m.sentReqs {
		for b := range recipients {
			if a == b {
				t.Fatalf("self request edge on %s", a)
			}
			if !has(m.pendReqs, b, a) {
				t.Fatalf("request %s->%s has no mirrored pending entry", a, b)
			}
			if has(m.blocks, a, b) || has(m.blocks, b, a) {
				t.Fatalf("request %s->%s coexists with a block", a, b)
			}
		}
	}
	for b, requesters := range m.pendReqs {
		for a := range requesters {
			if !has(m.sentReqs, a, b) {
				t.Fatalf("pending entry %s on %s has no mirrored sent entry", a, b)
			}
		}
	}
	for id, u := range m.users {
		if u.FollowingCount != len(m.following[id]) {
			t.Fatalf("following_count of %s is %d, set size is %d", id, u.FollowingCount, len(m.following[id]))
		}
		if u.FollowersCount != len(m.followers[id]) {
			t.Fatalf("followers_count of %s is %d, set size is %d", id, u.FollowersCount, len(m.followers[id]))
		}
	}
}

type capturingBus struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (b *capturingBus) Publish(ev eventbus.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
}

func (b *capturingBus) all() []eventbus.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]eventbus.Event(nil), b.events...)
}

type capturingPruner struct {
	calls [][2]uuid.UUID
}

func (p *capturingPruner) DeleteBetween(ctx context.Context, a, b uuid.UUID) error {
	p.calls = append(p.calls, [2]uuid.UUID{a, b})
	return nil
}

func newTestService() (*Service, *memRepo, *capturingBus, *capturingPruner) {
	repo := newMemRepo()
	bus := &capturingBus{}
	pruner := &capturingPruner{}
	return NewService(repo, bus, pruner), repo, bus, pruner
}

func TestFollowPublicTarget(t *testing.T) {
	svc, repo, bus, _ := newTestService()
	ctx := context.Background()
	alice := repo.addUser("alice", false)
	bob := repo.addUser("bob", false)

	result, err := svc.Follow(ctx, alice, bob)
	if err != nil {
		t.Fatalf("follow failed: %v", err)
	}
	if result.State != StateFollowing || !result.Changed {
		t.Fatalf("expected changed following state, got %+v", result)
	}

	repo.checkInvariants(t)
	if repo.users[bob].FollowersCount != 1 || repo.users[alice].FollowingCount != 1 {
		t.Fatal("counters not incremented")
	}

	events := bus.all()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	ev := events[0]
	if ev.Type != eventbus.TypeFollow || ev.RecipientID != bob || ev.ActorID != alice || ev.Action != eventbus.ActionAdd {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestFollowPrivateTargetCreatesRequest(t *testing.T) {
	svc, repo, bus, _ := newTestService()
	ctx := context.Background()
	eve := repo.addUser("eve", false)
	dana := repo.addUser("dana", true)

	result, err := svc.Follow(ctx, eve, dana)
	if err != nil {
		t.Fatalf("follow failed: %v", err)
	}
	if result.State != StateRequested || !result.Changed {
		t.Fatalf("expected requested state, got %+v", result)
	}

	repo.checkInvariants(t)
	if !has(repo.sentReqs, eve, dana) || !has(repo.pendReqs, dana, eve) {
		t.Fatal("request mirrors missing")
	}
	if repo.users[dana].FollowersCount != 0 {
		t.Fatal("counter must not move on a pending request")
	}

	events := bus.all()
	if len(events) != 1 || events[0].Type != eventbus.TypeFollowRequest {
		t.Fatalf("expected follow_request event, got %+v", events)
	}
}

func TestFollowSelfRejected(t *testing.T) {
	svc, repo, _, _ := newTestService()
	alice := repo.addUser("alice", false)

	if _, err := svc.Follow(context.Background(), alice, alice); err != ErrSelfAction {
		t.Fatalf("expected ErrSelfAction, got %v", err)
	}
}

func TestFollowUnknownTarget(t *testing.T) {
	svc, repo, _, _ := newTestService()
	alice := repo.addUser("alice", false)

	if _, err := svc.Follow(context.Background(), alice, uuid.New()); err != ErrUserNotFound {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestFollowIsIdempotent(t *testing.T) {
	svc, repo, bus, _ := newTestService()
	ctx := context.Background()
	alice := repo.addUser("alice", false)
	bob := repo.addUser("bob", false)

	if _, err := svc.Follow(ctx, alice, bob); err != nil {
		t.Fatalf("follow failed: %v", err)
	}
	result, err := svc.Follow(ctx, alice, bob)
	if err != nil {
		t.Fatalf("re-follow failed: %v", err)
	}
	if result.State != StateFollowing || result.Changed {
		t.Fatalf("re-follow must be a stable no-op, got %+v", result)
	}

	repo.checkInvariants(t)
	if repo.users[bob].FollowersCount != 1 {
		t.Fatalf("counter doubled: %d", repo.users[bob].FollowersCount)
	}
	if len(bus.all()) != 1 {
		t.Fatal("no second event may be emitted")
	}
}

func TestFollowBackType(t *testing.T) {
	svc, repo, bus, _ := newTestService()
	ctx := context.Background()
	alice := repo.addUser("alice", false)
	bob := repo.addUser("bob", false)

	if _, err := svc.Follow(ctx, alice, bob); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Follow(ctx, bob, alice); err != nil {
		t.Fatal(err)
	}

	events := bus.all()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[1].Type != eventbus.TypeFollowBack {
		t.Fatalf("second follow must be typed follow_back, got %s", events[1].Type)
	}
}

func TestUnfollowRemovesEdge(t *testing.T) {
	svc, repo, bus, _ := newTestService()
	ctx := context.Background()
	alice := repo.addUser("alice", false)
	bob := repo.addUser("bob", false)

	if _, err := svc.Follow(ctx, alice, bob); err != nil {
		t.Fatal(err)
	}
	result, err := svc.Unfollow(ctx, alice, bob)
	if err != nil {
		t.Fatalf("unfollow failed: %v", err)
	}
	if result.State != StateNone || !result.Changed {
		t.Fatalf("unexpected result %+v", result)
	}

	repo.checkInvariants(t)
	if repo.users[bob].FollowersCount != 0 {
		t.Fatal("counter not decremented")
	}

	events := bus.all()
	last := events[len(events)-1]
	if last.Type != eventbus.TypeFollow || last.Action != eventbus.ActionRemove {
		t.Fatalf("expected follow reversal, got %+v", last)
	}
}

func TestUnfollowAfterFollowBackStaysTypedFollow(t *testing.T) {
	svc, repo, bus, _ := newTestService()
	ctx := context.Background()
	alice := repo.addUser("alice", false)
	bob := repo.addUser("bob", false)

	// alice's original contribution was typed follow; bob's follow-back
	// must not retype her reversal.
	if _, err := svc.Follow(ctx, alice, bob); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Follow(ctx, bob, alice); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Unfollow(ctx, alice, bob); err != nil {
		t.Fatal(err)
	}

	events := bus.all()
	last := events[len(events)-1]
	if last.Type != eventbus.TypeFollow || last.Action != eventbus.ActionRemove {
		t.Fatalf("expected follow reversal, got %+v", last)
	}
	if last.RecipientID != bob || last.ActorID != alice {
		t.Fatalf("reversal addressed to wrong pair: %+v", last)
	}
}

func TestBlockMutualPairEmitsFollowReversalsBothWays(t *testing.T) {
	svc, repo, bus, _ := newTestService()
	ctx := context.Background()
	alice := repo.addUser("alice", false)
	bob := repo.addUser("bob", false)

	if _, err := svc.Follow(ctx, alice, bob); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Follow(ctx, bob, alice); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Block(ctx, alice, bob); err != nil {
		t.Fatal(err)
	}

	events := bus.all()[2:]
	if len(events) != 2 {
		t.Fatalf("expected 2 reversal events from the block, got %d", len(events))
	}
	for _, ev := range events {
		if ev.Type != eventbus.TypeFollow || ev.Action != eventbus.ActionRemove {
			t.Fatalf("expected follow reversal, got %+v", ev)
		}
	}
}

func TestUnfollowCancelsPendingRequest(t *testing.T) {
	svc, repo, bus, _ := newTestService()
	ctx := context.Background()
	eve := repo.addUser("eve", false)
	dana := repo.addUser("dana", true)

	if _, err := svc.Follow(ctx, eve, dana); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Unfollow(ctx, eve, dana); err != nil {
		t.Fatal(err)
	}

	repo.checkInvariants(t)
	if has(repo.sentReqs, eve, dana) || has(repo.pendReqs, dana, eve) {
		t.Fatal("request mirrors not cleared")
	}

	events := bus.all()
	last := events[len(events)-1]
	if last.Type != eventbus.TypeFollowRequest || last.Action != eventbus.ActionRemove {
		t.Fatalf("expected follow_request reversal, got %+v", last)
	}
}

func TestUnfollowWithoutEdgeIsNoop(t *testing.T) {
	svc, repo, bus, _ := newTestService()
	alice := repo.addUser("alice", false)
	bob := repo.addUser("bob", false)

	result, err := svc.Unfollow(context.Background(), alice, bob)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Changed {
		t.Fatal("nothing to unfollow, result must be unchanged")
	}
	if len(bus.all()) != 0 {
		t.Fatal("no event may be emitted")
	}
}

func TestAcceptRequest(t *testing.T) {
	svc, repo, bus, _ := newTestService()
	ctx := context.Background()
	eve := repo.addUser("eve", false)
	dana := repo.addUser("dana", true)

	if _, err := svc.Follow(ctx, eve, dana); err != nil {
		t.Fatal(err)
	}
	result, err := svc.AcceptRequest(ctx, dana, eve)
	if err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	if result.State != StateFollowing {
		t.Fatalf("expected following after accept, got %+v", result)
	}

	repo.checkInvariants(t)
	if !has(repo.following, eve, dana) {
		t.Fatal("follow edge not created")
	}
	if has(repo.sentReqs, eve, dana) {
		t.Fatal("request not cleared")
	}
	if repo.users[dana].FollowersCount != 1 || repo.users[eve].FollowingCount != 1 {
		t.Fatal("counters not incremented on accept")
	}

	events := bus.all()
	last := events[len(events)-1]
	if last.Type != eventbus.TypeFollowRequestAccepted || last.RecipientID != eve || last.ActorID != dana {
		t.Fatalf("accepted event must target the requester, got %+v", last)
	}
}

func TestAcceptMissingRequestSurfacesNotFound(t *testing.T) {
	svc, repo, _, _ := newTestService()
	dana := repo.addUser("dana", true)
	eve := repo.addUser("eve", false)

	if _, err := svc.AcceptRequest(context.Background(), dana, eve); err != ErrRequestNotFound {
		t.Fatalf("expected ErrRequestNotFound, got %v", err)
	}
}

func TestDeclineRequestEmitsNothing(t *testing.T) {
	svc, repo, bus, _ := newTestService()
	ctx := context.Background()
	eve := repo.addUser("eve", false)
	dana := repo.addUser("dana", true)

	if _, err := svc.Follow(ctx, eve, dana); err != nil {
		t.Fatal(err)
	}
	before := len(bus.all())

	if _, err := svc.DeclineRequest(ctx, dana, eve); err != nil {
		t.Fatalf("decline failed: %v", err)
	}

	repo.checkInvariants(t)
	if has(repo.pendReqs, dana, eve) {
		t.Fatal("request not cleared")
	}
	if len(bus.all()) != before {
		t.Fatal("decline must not notify the requester")
	}
}

func TestRemoveFollower(t *testing.T) {
	svc, repo, bus, _ := newTestService()
	ctx := context.Background()
	alice := repo.addUser("alice", false)
	bob := repo.addUser("bob", false)

	if _, err := svc.Follow(ctx, alice, bob); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.RemoveFollower(ctx, bob, alice); err != nil {
		t.Fatalf("remove follower failed: %v", err)
	}

	repo.checkInvariants(t)
	if has(repo.following, alice, bob) {
		t.Fatal("edge not removed")
	}
	if repo.users[bob].FollowersCount != 0 || repo.users[alice].FollowingCount != 0 {
		t.Fatal("counters not decremented")
	}

	events := bus.all()
	last := events[len(events)-1]
	if last.Action != eventbus.ActionRemove || last.RecipientID != bob {
		t.Fatalf("expected reversal on bob's aggregate, got %+v", last)
	}

	if _, err := svc.RemoveFollower(ctx, bob, alice); err != ErrNotFollowing {
		t.Fatalf("expected ErrNotFollowing, got %v", err)
	}
}

func TestBlockClearsEdgesAndPrunesSaved(t *testing.T) {
	svc, repo, _, pruner := newTestService()
	ctx := context.Background()
	frank := repo.addUser("frank", true)
	grace := repo.addUser("grace", false)

	// grace has a pending request to frank, frank follows grace
	if _, err := svc.Follow(ctx, grace, frank); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Follow(ctx, frank, grace); err != nil {
		t.Fatal(err)
	}

	result, err := svc.Block(ctx, frank, grace)
	if err != nil {
		t.Fatalf("block failed: %v", err)
	}
	if result.State != StateBlocked || !result.Changed {
		t.Fatalf("unexpected result %+v", result)
	}

	repo.checkInvariants(t)
	if has(repo.sentReqs, grace, frank) || has(repo.pendReqs, frank, grace) {
		t.Fatal("pending request survived the block")
	}
	if has(repo.following, frank, grace) {
		t.Fatal("follow edge survived the block")
	}
	if len(pruner.calls) != 1 {
		t.Fatal("saved-content pruning not invoked")
	}

	// subsequent follow attempts are rejected in both directions
	if _, err := svc.Follow(ctx, grace, frank); err != ErrBlocked {
		t.Fatalf("expected ErrBlocked, got %v", err)
	}
	if _, err := svc.Follow(ctx, frank, grace); err != ErrBlocked {
		t.Fatalf("expected ErrBlocked, got %v", err)
	}
}

func TestBlockIsIdempotent(t *testing.T) {
	svc, repo, _, _ := newTestService()
	ctx := context.Background()
	frank := repo.addUser("frank", false)
	grace := repo.addUser("grace", false)

	if _, err := svc.Block(ctx, frank, grace); err != nil {
		t.Fatal(err)
	}
	result, err := svc.Block(ctx, frank, grace)
	if err != nil {
		t.Fatalf("re-block failed: %v", err)
	}
	if result.Changed {
		t.Fatal("re-block must be a no-op")
	}
}

func TestUnblockStartsFromNone(t *testing.T) {
	svc, repo, _, _ := newTestService()
	ctx := context.Background()
	alice := repo.addUser("alice", false)
	bob := repo.addUser("bob", false)

	if _, err := svc.Follow(ctx, alice, bob); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Block(ctx, bob, alice); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Unblock(ctx, bob, alice); err != nil {
		t.Fatal(err)
	}

	state, err := svc.Relationship(ctx, alice, bob)
	if err != nil {
		t.Fatal(err)
	}
	if state.StateOf() != StateNone {
		t.Fatalf("unblock must not restore edges, got %s", state.StateOf())
	}

	// relationship can be re-established from scratch
	result, err := svc.Follow(ctx, alice, bob)
	if err != nil {
		t.Fatalf("follow after unblock failed: %v", err)
	}
	if result.State != StateFollowing {
		t.Fatalf("expected following, got %+v", result)
	}
	repo.checkInvariants(t)
}

func TestAcceptAllPending(t *testing.T) {
	svc, repo, bus, _ := newTestService()
	ctx := context.Background()
	dana := repo.addUser("dana", true)

	requesters := make([]uuid.UUID, 0, 5)
	for i := 0; i < 5; i++ {
		r := repo.addUser("req", false)
		requesters = append(requesters, r)
		if _, err := svc.Follow(ctx, r, dana); err != nil {
			t.Fatal(err)
		}
	}

	accepted, err := svc.AcceptAllPending(ctx, dana)
	if err != nil {
		t.Fatalf("bulk accept failed: %v", err)
	}
	if accepted != 5 {
		t.Fatalf("expected 5 accepts, got %d", accepted)
	}

	repo.checkInvariants(t)
	if len(repo.pendReqs[dana]) != 0 {
		t.Fatal("pending requests must end empty")
	}
	if repo.users[dana].FollowersCount != 5 {
		t.Fatalf("expected 5 followers, got %d", repo.users[dana].FollowersCount)
	}

	acceptedEvents := 0
	for _, ev := range bus.all() {
		if ev.Type == eventbus.TypeFollowRequestAccepted {
			acceptedEvents++
		}
	}
	if acceptedEvents != 5 {
		t.Fatalf("each requester must get an accepted event, got %d", acceptedEvents)
	}
	for _, r := range requesters {
		if !has(repo.following, r, dana) {
			t.Fatalf("requester %s not converted to follower", r)
		}
	}
}

func TestBlockExclusivityUnderRandomOperations(t *testing.T) {
	svc, repo, _, _ := newTestService()
	ctx := context.Background()
	frank := repo.addUser("frank", false)
	grace := repo.addUser("grace", false)

	if _, err := svc.Block(ctx, frank, grace); err != nil {
		t.Fatal(err)
	}

	rng := rand.New(rand.NewSource(7))
	ops := []func() error{
		func() error { _, err := svc.Follow(ctx, grace, frank); return err },
		func() error { _, err := svc.Follow(ctx, frank, grace); return err },
		func() error { _, err := svc.AcceptRequest(ctx, frank, grace); return err },
		func() error { _, err := svc.Unfollow(ctx, grace, frank); return err },
	}
	for i := 0; i < 50; i++ {
		ops[rng.Intn(len(ops))]() // errors expected, state must stay clean
		repo.checkInvariants(t)

		state, err := svc.Relationship(ctx, grace, frank)
		if err != nil {
			t.Fatal(err)
		}
		if state.AFollowsB || state.BFollowsA || state.ARequestedB || state.BRequestedA {
			t.Fatal("an edge reappeared between blocked users")
		}
	}
}

func TestRandomOperationSequencesKeepInvariants(t *testing.T) {
	svc, repo, _, _ := newTestService()
	ctx := context.Background()

	users := make([]uuid.UUID, 6)
	for i := range users {
		users[i] = repo.addUser("user", i%2 == 0)
	}

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		a := users[rng.Intn(len(users))]
		b := users[rng.Intn(len(users))]

		switch rng.Intn(7) {
		case 0:
			svc.Follow(ctx, a, b)
		case 1:
			svc.Unfollow(ctx, a, b)
		case 2:
			svc.AcceptRequest(ctx, a, b)
		case 3:
			svc.DeclineRequest(ctx, a, b)
		case 4:
			svc.RemoveFollower(ctx, a, b)
		case 5:
			svc.Block(ctx, a, b)
		case 6:
			svc.Unblock(ctx, a, b)
		}
		repo.checkInvariants(t)
	}
}
