// Package eventbus carries graph-change and content-interaction events from
// their producers to the notification aggregator.
package eventbus

import (
	"context"
	"expvar"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Action describes whether an event contributes to or reverses a notification
type Action string

const (
	ActionAdd    Action = "add"
	ActionRemove Action = "remove"
)

// Event types understood by the aggregator
const (
	TypePostLike              = "post_like"
	TypeVideoLike             = "video_like"
	TypePostComment           = "post_comment"
	TypeVideoComment          = "video_comment"
	TypeCommentLike           = "comment_like"
	TypeReply                 = "reply"
	TypeReplyLike             = "reply_like"
	TypeFollow                = "follow"
	TypeFollowBack            = "follow_back"
	TypeFollowRequest         = "follow_request"
	TypeFollowRequestAccepted = "follow_request_accepted"
)

// Event is one contribution (or reversal) to a recipient's notifications.
// TargetKey identifies the content being acted on; it is empty for the
// follow family, where the aggregate is keyed by recipient and type alone.
type Event struct {
	RecipientID uuid.UUID
	Type        string
	TargetKey   string
	ActorID     uuid.UUID
	Action      Action
}

// Handler consumes events in bus order
type Handler interface {
	HandleEvent(ctx context.Context, ev Event)
}

var (
	eventsPublishedTotal = expvar.NewInt("eventbus_published_total")
	eventsDroppedTotal   = expvar.NewInt("eventbus_dropped_total")
)

// Bus is an in-process buffered event channel with a single consumer loop
type Bus struct {
	events  chan Event
	handler Handler
}

// New creates a bus with the given buffer size
func New(buffer int, handler Handler) *Bus {
	if buffer <= 0 {
		buffer = 1024
	}
	return &Bus{
		events:  make(chan Event, buffer),
		handler: handler,
	}
}

// Publish enqueues an event without blocking the producer. Events from an
// actor to themselves are suppressed here so no producer has to remember to.
// A full buffer drops the event: persisted state is the source of truth and
// the client reconciles on its next read.
func (b *Bus) Publish(ev Event) {
	if ev.ActorID == ev.RecipientID {
		return
	}

	select {
	case b.events <- ev:
		eventsPublishedTotal.Add(1)
	default:
		eventsDroppedTotal.Add(1)
		log.Warn().
			Str("type", ev.Type).
			Str("recipient_id", ev.RecipientID.String()).
			Msg("Event bus full, dropping event")
	}
}

// Run consumes events until ctx is cancelled (call in a goroutine)
func (b *Bus) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Event bus stopped")
			return
		case ev := <-b.events:
			b.handler.HandleEvent(ctx, ev)
		}
	}
}
