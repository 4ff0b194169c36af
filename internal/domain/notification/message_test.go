package notification

import (
	"testing"

	"github.com/pulse/pulse-api/internal/pkg/eventbus"
)

func TestRenderMessage(t *testing.T) {
	tests := []struct {
		name   string
		typ    string
		sender string
		count  int
		want   string
	}{
		{"single actor", eventbus.TypePostLike, "Alice", 1, "Alice liked your post"},
		{"two actors", eventbus.TypePostLike, "Bob", 2, "Bob and 1 other liked your post"},
		{"many actors", eventbus.TypeVideoComment, "Cara", 5, "Cara and 4 others commented on your video"},
		{"follow", eventbus.TypeFollow, "Alice", 1, "Alice started following you"},
		{"follow back", eventbus.TypeFollowBack, "Bob", 1, "Bob followed you back"},
		{"request", eventbus.TypeFollowRequest, "Cara", 1, "Cara requested to follow you"},
		{"accepted", eventbus.TypeFollowRequestAccepted, "Alice", 1, "Alice accepted your follow request"},
		{"reply like", eventbus.TypeReplyLike, "Bob", 3, "Bob and 2 others liked your reply"},
		{"unknown type", "mystery", "Alice", 1, "Alice interacted with you"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RenderMessage(tt.typ, tt.sender, tt.count); got != tt.want {
				t.Errorf("RenderMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}
