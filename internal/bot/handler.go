// Package bot turns Messenger webhook events into replies.
//
// The Dispatcher classifies each event (postback, greeting, shopping keyword,
// free text), builds exactly one outbound message, and delivers it through a
// Transport after marking the conversation seen.
package bot

import (
	"context"

	"github.com/pagebot/pagebot-go/internal/messenger"
)

// Transport delivers replies and sender actions to the platform.
type Transport interface {
	SendReply(ctx context.Context, resp messenger.Response) error
	MarkSeen(ctx context.Context, senderID string) error
}

// UserLookup resolves a sender's public profile.
// Implementations may be slow or fail; callers never block a reply on it.
type UserLookup interface {
	LookupUser(ctx context.Context, senderID string) (messenger.UserProfile, error)
}

// Catalog provides the items shown in structured shopping replies.
type Catalog interface {
	Elements() []messenger.Element
}
