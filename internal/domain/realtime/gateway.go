// Package realtime delivers notification events to connected clients over
// websocket, with Redis pub/sub fanning events out across server instances.
package realtime

import (
	"context"
	"encoding/json"
	"expvar"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Redis keys
const (
	userEventsChannel = "realtime:user_events"
	presenceKey       = "realtime:presence:online"
	presenceTTL       = 5 * time.Minute
)

var (
	wsSessionsGauge      = expvar.NewInt("websocket_sessions")
	wsEventsSentTotal    = expvar.NewInt("websocket_events_sent_total")
	wsEventsDroppedTotal = expvar.NewInt("websocket_events_dropped_total")
)

// Session is one client's websocket attachment. A user holds at most one
// session per instance; a newer connection displaces the older one.
type Session struct {
	UserID uuid.UUID
	Send   chan []byte
}

// userEventMessage crosses instances over Redis pub/sub
type userEventMessage struct {
	UserID           string          `json:"user_id"`
	Payload          json.RawMessage `json:"payload"`
	SenderInstanceID string          `json:"sender_instance_id"`
}

// Gateway tracks local sessions and fans events out through Redis so a
// recipient connected to any instance still receives its pushes.
type Gateway struct {
	sessions *xsync.MapOf[string, *Session]

	redis  *redis.Client
	pubsub *redis.PubSub

	ctx    context.Context
	cancel context.CancelFunc

	instanceID string
}

// NewGateway creates a gateway. redisClient may be nil in tests; delivery is
// then local-only.
func NewGateway(redisClient *redis.Client) *Gateway {
	ctx, cancel := context.WithCancel(context.Background())

	g := &Gateway{
		sessions:   xsync.NewMapOf[*Session](),
		redis:      redisClient,
		ctx:        ctx,
		cancel:     cancel,
		instanceID: uuid.NewString(),
	}

	if redisClient != nil {
		g.pubsub = redisClient.Subscribe(ctx, userEventsChannel)
	}

	return g
}

// Run consumes cross-instance events until Shutdown (call in a goroutine)
func (g *Gateway) Run() {
	if g.pubsub == nil {
		return
	}
	ch := g.pubsub.Channel()

	for {
		select {
		case <-g.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			g.handleUserEventPayload(msg.Payload)
		}
	}
}

func (g *Gateway) handleUserEventPayload(payload string) {
	var event userEventMessage
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return
	}
	if event.SenderInstanceID == g.instanceID {
		return
	}
	userID, err := uuid.Parse(event.UserID)
	if err != nil {
		return
	}
	g.sendLocal(userID, []byte(event.Payload))
}

// Register attaches a session. An existing session for the same user is
// displaced: its send channel closes and its writer shuts the connection.
func (g *Gateway) Register(s *Session) {
	prev, loaded := g.sessions.LoadAndStore(s.UserID.String(), s)
	if loaded && prev != s {
		close(prev.Send)
	} else {
		wsSessionsGauge.Add(1)
	}

	g.setPresence(s.UserID, true)
	log.Debug().Str("user_id", s.UserID.String()).Msg("Realtime session attached")
}

// Unregister detaches a session. A session already displaced by a newer one
// is left alone.
func (g *Gateway) Unregister(s *Session) {
	current, ok := g.sessions.Load(s.UserID.String())
	if !ok || current != s {
		return
	}
	g.sessions.Delete(s.UserID.String())
	close(s.Send)
	wsSessionsGauge.Add(-1)

	g.setPresence(s.UserID, false)
	log.Debug().Str("user_id", s.UserID.String()).Msg("Realtime session detached")
}

// SendToUserJSON delivers a payload to the user's session on any instance.
// Without a live session the payload is dropped; persisted notifications are
// the source of truth.
func (g *Gateway) SendToUserJSON(userID uuid.UUID, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	g.sendLocal(userID, data)
	return g.publishUserEvent(userID, data)
}

func (g *Gateway) sendLocal(userID uuid.UUID, data []byte) {
	s, ok := g.sessions.Load(userID.String())
	if !ok {
		return
	}

	select {
	case s.Send <- data:
		wsEventsSentTotal.Add(1)
	default:
		wsEventsDroppedTotal.Add(1)
		log.Warn().Str("user_id", userID.String()).Msg("WebSocket send buffer full")
	}
}

func (g *Gateway) publishUserEvent(userID uuid.UUID, data []byte) error {
	if g.redis == nil {
		return nil
	}

	event := userEventMessage{
		UserID:           userID.String(),
		Payload:          data,
		SenderInstanceID: g.instanceID,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return g.redis.Publish(g.ctx, userEventsChannel, payload).Err()
}

func (g *Gateway) setPresence(userID uuid.UUID, online bool) {
	if g.redis == nil {
		return
	}

	ctx := context.Background()
	if online {
		g.redis.SAdd(ctx, presenceKey, userID.String())
		g.redis.Expire(ctx, presenceKey, presenceTTL)
	} else {
		g.redis.SRem(ctx, presenceKey, userID.String())
	}
}

// IsLive reports whether the user has a session on any instance
func (g *Gateway) IsLive(userID uuid.UUID) bool {
	if g.redis == nil {
		_, ok := g.sessions.Load(userID.String())
		return ok
	}
	return g.redis.SIsMember(context.Background(), presenceKey, userID.String()).Val()
}

// SessionCount returns the number of local sessions
func (g *Gateway) SessionCount() int {
	count := 0
	g.sessions.Range(func(_ string, _ *Session) bool {
		count++
		return true
	})
	return count
}

// Shutdown stops the fan-out loop and closes the subscription
func (g *Gateway) Shutdown() {
	g.cancel()
	if g.pubsub != nil {
		g.pubsub.Close()
	}
}
