package realtime

import (
	"testing"

	"github.com/google/uuid"
)

func TestSendToUserJSONReachesLocalSession(t *testing.T) {
	g := NewGateway(nil)
	defer g.Shutdown()

	userID := uuid.New()
	s := &Session{UserID: userID, Send: make(chan []byte, 4)}
	g.Register(s)

	if err := g.SendToUserJSON(userID, map[string]string{"type": "notification:new"}); err != nil {
		t.Fatal(err)
	}

	select {
	case data := <-s.Send:
		if len(data) == 0 {
			t.Error("empty payload delivered")
		}
	default:
		t.Fatal("payload not delivered to session")
	}
}

func TestSendToUserWithoutSessionIsDropped(t *testing.T) {
	g := NewGateway(nil)
	defer g.Shutdown()

	if err := g.SendToUserJSON(uuid.New(), map[string]string{"type": "notification:new"}); err != nil {
		t.Fatalf("push without session errored: %v", err)
	}
}

func TestNewSessionDisplacesOld(t *testing.T) {
	g := NewGateway(nil)
	defer g.Shutdown()

	userID := uuid.New()
	first := &Session{UserID: userID, Send: make(chan []byte, 4)}
	second := &Session{UserID: userID, Send: make(chan []byte, 4)}

	g.Register(first)
	g.Register(second)

	if _, ok := <-first.Send; ok {
		t.Error("displaced session's channel still open")
	}
	if g.SessionCount() != 1 {
		t.Errorf("session count = %d, want 1", g.SessionCount())
	}

	if err := g.SendToUserJSON(userID, "hello"); err != nil {
		t.Fatal(err)
	}
	select {
	case <-second.Send:
	default:
		t.Error("payload not routed to the new session")
	}
}

func TestUnregisterIgnoresDisplacedSession(t *testing.T) {
	g := NewGateway(nil)
	defer g.Shutdown()

	userID := uuid.New()
	first := &Session{UserID: userID, Send: make(chan []byte, 4)}
	second := &Session{UserID: userID, Send: make(chan []byte, 4)}

	g.Register(first)
	g.Register(second)
	g.Unregister(first)

	if !g.IsLive(userID) {
		t.Error("current session dropped by stale unregister")
	}

	g.Unregister(second)
	if g.IsLive(userID) {
		t.Error("user still live after unregister")
	}
}

func TestFullBufferDropsInsteadOfBlocking(t *testing.T) {
	g := NewGateway(nil)
	defer g.Shutdown()

	userID := uuid.New()
	s := &Session{UserID: userID, Send: make(chan []byte, 1)}
	g.Register(s)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			g.SendToUserJSON(userID, i)
		}
	}()
	<-done
}
