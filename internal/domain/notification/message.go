package notification

import (
	"fmt"

	"github.com/pulse/pulse-api/internal/pkg/eventbus"
)

// verbPhrases maps an event type to the verb phrase of its message
var verbPhrases = map[string]string{
	eventbus.TypePostLike:              "liked your post",
	eventbus.TypeVideoLike:             "liked your video",
	eventbus.TypePostComment:           "commented on your post",
	eventbus.TypeVideoComment:          "commented on your video",
	eventbus.TypeCommentLike:           "liked your comment",
	eventbus.TypeReply:                 "replied to your comment",
	eventbus.TypeReplyLike:             "liked your reply",
	eventbus.TypeFollow:                "started following you",
	eventbus.TypeFollowBack:            "followed you back",
	eventbus.TypeFollowRequest:         "requested to follow you",
	eventbus.TypeFollowRequestAccepted: "accepted your follow request",
}

// RenderMessage builds the human-readable message for an aggregate.
// senderName is the display name of the most recent actor.
func RenderMessage(typ, senderName string, count int) string {
	verb, ok := verbPhrases[typ]
	if !ok {
		verb = "interacted with you"
	}

	switch {
	case count <= 1:
		return fmt.Sprintf("%s %s", senderName, verb)
	case count == 2:
		return fmt.Sprintf("%s and 1 other %s", senderName, verb)
	default:
		return fmt.Sprintf("%s and %d others %s", senderName, count-1, verb)
	}
}
