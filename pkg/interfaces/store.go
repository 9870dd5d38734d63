package interfaces

import (
	"context"
	"time"

	"chatwire/pkg/types"
)

// MessageStore is the durable message log consumed by the router and
// the conversation engine.
type MessageStore interface {
	// SaveMessage appends a message. ID and CreatedAt must already be set
	// by the caller.
	SaveMessage(ctx context.Context, message *types.ChatMessage) error

	// GlobalMessages returns at most limit of the newest global-scope
	// messages, ordered ascending by creation time.
	GlobalMessages(ctx context.Context, limit int) ([]*types.ChatMessage, error)

	// DirectMessages returns the full direct history between two users,
	// both directions, ordered ascending by creation time.
	DirectMessages(ctx context.Context, userID, counterpartID string) ([]*types.ChatMessage, error)

	// MarkRead flips the given messages to read at the given time.
	// Already-read and unknown ids are skipped; the first ReadAt wins.
	MarkRead(ctx context.Context, messageIDs []string, readAt time.Time) error

	// ConversationPartners returns the distinct user ids that exchanged
	// direct messages with the given user, in either direction.
	ConversationPartners(ctx context.Context, userID string) ([]string, error)

	// LatestDirectMessage returns the most recent direct message between
	// the pair, or ErrMessageNotFound when none exists.
	LatestDirectMessage(ctx context.Context, userID, counterpartID string) (*types.ChatMessage, error)
}

// UserStore is the account store consumed by auth, the router, and the
// conversation engine.
type UserStore interface {
	CreateUser(ctx context.Context, user *types.User) error
	UserByID(ctx context.Context, id string) (*types.User, error)
	UserByUsername(ctx context.Context, username string) (*types.User, error)
	UserByEmail(ctx context.Context, email string) (*types.User, error)

	// SearchUsers matches usernames partially and case-insensitively,
	// excluding excludeID from the results.
	SearchUsers(ctx context.Context, query, excludeID string) ([]*types.User, error)

	UpdateDisplayColor(ctx context.Context, userID, color string) error
}
