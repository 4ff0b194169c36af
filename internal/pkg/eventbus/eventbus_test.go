package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

type recordingHandler struct {
	mu     sync.Mutex
	events []Event
	seen   chan struct{}
}

func (h *recordingHandler) HandleEvent(ctx context.Context, ev Event) {
	h.mu.Lock()
	h.events = append(h.events, ev)
	h.mu.Unlock()
	select {
	case h.seen <- struct{}{}:
	default:
	}
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.events)
}

func TestPublishDispatchesToHandler(t *testing.T) {
	h := &recordingHandler{seen: make(chan struct{}, 1)}
	bus := New(8, h)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bus.Run(ctx)

	ev := Event{
		RecipientID: uuid.New(),
		Type:        TypePostLike,
		TargetKey:   "post-1",
		ActorID:     uuid.New(),
		Action:      ActionAdd,
	}
	bus.Publish(ev)

	select {
	case <-h.seen:
	case <-time.After(time.Second):
		t.Fatal("handler did not receive event")
	}

	if h.count() != 1 {
		t.Fatalf("expected 1 event, got %d", h.count())
	}
	h.mu.Lock()
	got := h.events[0]
	h.mu.Unlock()
	if got != ev {
		t.Fatalf("event mangled in transit: %+v", got)
	}
}

func TestSelfEventsAreSuppressed(t *testing.T) {
	h := &recordingHandler{seen: make(chan struct{}, 1)}
	bus := New(8, h)

	self := uuid.New()
	bus.Publish(Event{RecipientID: self, ActorID: self, Type: TypePostLike, Action: ActionAdd})

	if len(bus.events) != 0 {
		t.Fatal("self-notification must never be enqueued")
	}
}

func TestFullBufferDropsInsteadOfBlocking(t *testing.T) {
	h := &recordingHandler{seen: make(chan struct{}, 1)}
	bus := New(1, h)
	// No Run loop: the buffer fills up and stays full.

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			bus.Publish(Event{RecipientID: uuid.New(), ActorID: uuid.New(), Type: TypeFollow, Action: ActionAdd})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full buffer")
	}
}
