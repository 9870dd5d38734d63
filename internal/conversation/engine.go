package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chatwire/pkg/interfaces"
	"chatwire/pkg/types"
)

// PresenceChecker reports live presence; implemented by the session
// manager.
type PresenceChecker interface {
	IsOnline(userID string) bool
}

// Engine derives conversation-level state from the message store:
// latest-message summaries per counterpart and read-state updates.
// Nothing here is cached; every query recomputes from the store.
type Engine struct {
	messages interfaces.MessageStore
	users    interfaces.UserStore
	presence PresenceChecker
}

// NewEngine creates a conversation engine.
func NewEngine(messages interfaces.MessageStore, users interfaces.UserStore, presence PresenceChecker) *Engine {
	return &Engine{
		messages: messages,
		users:    users,
		presence: presence,
	}
}

// Conversations returns one summary per direct-message counterpart of
// the given user. Counterparts that no longer resolve to an account are
// dropped rather than failing the whole query. The list is unordered;
// recency sorting is a presentation concern.
func (e *Engine) Conversations(ctx context.Context, userID string) ([]types.ConversationSummary, error) {
	partners, err := e.messages.ConversationPartners(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversation partners: %w", err)
	}

	summaries := make([]types.ConversationSummary, 0, len(partners))
	for _, partnerID := range partners {
		partner, err := e.users.UserByID(ctx, partnerID)
		if errors.Is(err, interfaces.ErrUserNotFound) {
			continue // stale reference, tolerate
		}
		if err != nil {
			return nil, fmt.Errorf("failed to resolve counterpart %s: %w", partnerID, err)
		}

		summary := types.ConversationSummary{
			User: types.OnlineUser{
				ID:           partner.ID,
				Username:     partner.Username,
				DisplayColor: partner.Identity().DisplayColor,
				IsOnline:     e.presence.IsOnline(partner.ID),
			},
		}

		latest, err := e.messages.LatestDirectMessage(ctx, userID, partnerID)
		if err != nil && !errors.Is(err, interfaces.ErrMessageNotFound) {
			return nil, fmt.Errorf("failed to load latest message for %s: %w", partnerID, err)
		}
		if latest != nil {
			summary.LatestMessage = &types.LatestMessage{
				Text:       latest.Text,
				CreatedAt:  latest.CreatedAt,
				IsFromSelf: latest.AuthorID == userID,
			}
		}

		summaries = append(summaries, summary)
	}

	return summaries, nil
}

// MarkRead flips the given messages to read. Idempotent: already-read
// and unknown ids are no-ops and the first readAt timestamp is kept.
func (e *Engine) MarkRead(ctx context.Context, messageIDs []string) error {
	return e.messages.MarkRead(ctx, messageIDs, time.Now().UTC())
}
