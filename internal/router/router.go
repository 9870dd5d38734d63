package router

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"chatwire/internal/conversation"
	"chatwire/internal/session"
	"chatwire/internal/websocket"
	"chatwire/pkg/interfaces"
	"chatwire/pkg/types"
)

// Per-user send budget: 100 messages per minute with a small burst,
// applied to the two persisting event types only.
const (
	sendRatePerMinute = 100
	sendBurst         = 20
)

// Router validates and dispatches inbound events. The event set is
// closed: the switch in Dispatch covers every inbound event name and
// anything else earns an error event.
type Router struct {
	sessions      *session.Manager
	messages      interfaces.MessageStore
	users         interfaces.UserStore
	conversations *conversation.Engine
	typing        *conversation.TypingTracker

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter
}

// NewRouter creates a message router.
func NewRouter(
	sessions *session.Manager,
	messages interfaces.MessageStore,
	users interfaces.UserStore,
	conversations *conversation.Engine,
	typing *conversation.TypingTracker,
) *Router {
	return &Router{
		sessions:      sessions,
		messages:      messages,
		users:         users,
		conversations: conversations,
		typing:        typing,
		limiters:      make(map[string]*rate.Limiter),
	}
}

// Dispatch decodes and routes one inbound event. Events from
// connections with no bound identity are dropped silently; this guards
// against events racing the handshake. Handler failures never escape:
// they become an error event to the originator plus a local log line.
func (r *Router) Dispatch(ctx context.Context, conn *websocket.Connection, data []byte) {
	identity := conn.Identity()
	if identity == nil {
		return
	}

	var envelope types.Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		r.emitError(conn, "malformed event")
		return
	}

	var err error
	switch envelope.Event {
	case types.EventSendGlobal:
		err = r.handleSendGlobal(ctx, conn, identity, envelope.Data)
	case types.EventSendDirect:
		err = r.handleSendDirect(ctx, conn, identity, envelope.Data)
	case types.EventGetHistory:
		err = r.handleGetHistory(ctx, conn)
	case types.EventGetDirectMessages:
		err = r.handleGetDirectMessages(ctx, conn, identity, envelope.Data)
	case types.EventStartConversation:
		err = r.handleStartConversation(ctx, conn, envelope.Data)
	case types.EventTyping:
		err = r.handleTyping(conn, identity, envelope.Data)
	case types.EventMarkRead:
		err = r.handleMarkRead(ctx, conn, identity, envelope.Data)
	case types.EventSearchUsers:
		err = r.handleSearchUsers(ctx, conn, identity, envelope.Data)
	case types.EventGetConversations:
		err = r.handleGetConversations(ctx, conn, identity)
	default:
		r.emitError(conn, "unknown event")
		return
	}

	if err != nil {
		log.Printf("event %s from %s failed: %v", envelope.Event, identity.Username, err)
		r.emitError(conn, "event could not be processed")
	}
}

// handleSendGlobal persists a global message and broadcasts it to every
// connection, the sender's included. Empty text is a silent no-op.
func (r *Router) handleSendGlobal(ctx context.Context, conn *websocket.Connection, identity *types.UserIdentity, data json.RawMessage) error {
	var payload types.SendGlobalPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		r.emitError(conn, "malformed payload")
		return nil
	}

	text := strings.TrimSpace(payload.Text)
	if text == "" {
		return nil
	}
	if utf8.RuneCountInString(text) > types.MaxMessageLength {
		r.emitError(conn, "message too long")
		return nil
	}
	if !r.allowSend(identity.ID) {
		r.emitError(conn, "sending too fast, slow down")
		return nil
	}

	message := &types.ChatMessage{
		ID:        uuid.New().String(),
		Text:      text,
		AuthorID:  identity.ID,
		Scope:     types.ScopeGlobal,
		CreatedAt: time.Now().UTC(),
		Author:    identity,
	}

	if err := r.messages.SaveMessage(ctx, message); err != nil {
		return err
	}

	r.sessions.Broadcast(types.EventGlobalMessage, message)
	return nil
}

// handleSendDirect persists a direct message and delivers it to all of
// the sender's and the recipient's connections, so the sender's own
// tabs stay consistent. The recipient must exist but need not be
// online: the message is persisted regardless of deliverability.
func (r *Router) handleSendDirect(ctx context.Context, conn *websocket.Connection, identity *types.UserIdentity, data json.RawMessage) error {
	var payload types.SendDirectPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		r.emitError(conn, "malformed payload")
		return nil
	}

	text := strings.TrimSpace(payload.Text)
	if text == "" {
		return nil
	}
	if utf8.RuneCountInString(text) > types.MaxMessageLength {
		r.emitError(conn, "message too long")
		return nil
	}

	recipient, err := r.users.UserByID(ctx, payload.RecipientID)
	if errors.Is(err, interfaces.ErrUserNotFound) {
		r.emitError(conn, "recipient not found")
		return nil
	}
	if err != nil {
		return err
	}

	if !r.allowSend(identity.ID) {
		r.emitError(conn, "sending too fast, slow down")
		return nil
	}

	message := &types.ChatMessage{
		ID:          uuid.New().String(),
		Text:        text,
		AuthorID:    identity.ID,
		RecipientID: &recipient.ID,
		Scope:       types.ScopeDirect,
		CreatedAt:   time.Now().UTC(),
		Author:      identity,
	}

	if err := r.messages.SaveMessage(ctx, message); err != nil {
		return err
	}

	r.sessions.EmitToUser(identity.ID, types.EventDirectMessage, message)
	if recipient.ID != identity.ID {
		r.sessions.EmitToUser(recipient.ID, types.EventDirectMessage, message)
	}
	return nil
}

// handleGetHistory replays up to 100 of the newest global messages,
// oldest first, to the requester only.
func (r *Router) handleGetHistory(ctx context.Context, conn *websocket.Connection) error {
	messages, err := r.messages.GlobalMessages(ctx, 100)
	if err != nil {
		return err
	}
	if messages == nil {
		messages = []*types.ChatMessage{}
	}
	return r.sessions.EmitTo(conn, types.EventMessageHistory, messages)
}

// handleGetDirectMessages replays the full pair history to the
// requester, tagged with the counterpart id so the client can attach it
// to the right thread.
func (r *Router) handleGetDirectMessages(ctx context.Context, conn *websocket.Connection, identity *types.UserIdentity, data json.RawMessage) error {
	var payload types.GetDirectMessagesPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		r.emitError(conn, "malformed payload")
		return nil
	}

	messages, err := r.messages.DirectMessages(ctx, identity.ID, payload.CounterpartID)
	if err != nil {
		return err
	}
	if messages == nil {
		messages = []*types.ChatMessage{}
	}

	return r.sessions.EmitTo(conn, types.EventDirectMessageHistory, types.DirectMessageHistoryPayload{
		CounterpartID: payload.CounterpartID,
		Messages:      messages,
	})
}

// handleStartConversation validates the recipient and emits the
// synthetic new-conversation/conversation-started pair to the requester
// only, letting the UI open an empty thread. Nothing is persisted.
func (r *Router) handleStartConversation(ctx context.Context, conn *websocket.Connection, data json.RawMessage) error {
	var payload types.StartConversationPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		r.emitError(conn, "malformed payload")
		return nil
	}

	recipient, err := r.users.UserByID(ctx, payload.RecipientID)
	if errors.Is(err, interfaces.ErrUserNotFound) {
		r.emitError(conn, "user not found")
		return nil
	}
	if err != nil {
		return err
	}

	online := r.sessions.IsOnline(recipient.ID)

	if err := r.sessions.EmitTo(conn, types.EventNewConversation, types.ConversationSummary{
		User: types.OnlineUser{
			ID:           recipient.ID,
			Username:     recipient.Username,
			DisplayColor: recipient.Identity().DisplayColor,
			IsOnline:     online,
		},
		LatestMessage: nil,
	}); err != nil {
		return err
	}

	return r.sessions.EmitTo(conn, types.EventConversationStarted, types.ConversationStartedPayload{
		UserID:   recipient.ID,
		Username: recipient.Username,
		IsOnline: online,
	})
}

// handleTyping relays the indicator to the recipient only, never back
// to the sender, and keeps the pair's expiry timer armed so a stalled
// sender cannot leave the indicator stuck on.
func (r *Router) handleTyping(conn *websocket.Connection, identity *types.UserIdentity, data json.RawMessage) error {
	var payload types.TypingPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		r.emitError(conn, "malformed payload")
		return nil
	}

	recipientID := payload.RecipientID
	if recipientID == "" || recipientID == identity.ID {
		return nil
	}

	indicator := types.UserTypingPayload{
		UserID:   identity.ID,
		Username: identity.Username,
		IsTyping: payload.IsTyping,
	}

	if payload.IsTyping {
		sender := *identity
		r.typing.Touch(identity.ID, recipientID, func() {
			r.sessions.EmitToUser(recipientID, types.EventUserTyping, types.UserTypingPayload{
				UserID:   sender.ID,
				Username: sender.Username,
				IsTyping: false,
			})
		})
	} else {
		r.typing.Cancel(identity.ID, recipientID)
	}

	r.sessions.EmitToUser(recipientID, types.EventUserTyping, indicator)
	return nil
}

// handleMarkRead applies the batch read-state update, then tells the
// original sender which of their messages were read and by whom. The
// store update is idempotent; the notification fires on every call.
func (r *Router) handleMarkRead(ctx context.Context, conn *websocket.Connection, identity *types.UserIdentity, data json.RawMessage) error {
	var payload types.MarkReadPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		r.emitError(conn, "malformed payload")
		return nil
	}
	if len(payload.MessageIDs) == 0 || payload.SenderID == "" {
		return nil
	}

	if err := r.conversations.MarkRead(ctx, payload.MessageIDs); err != nil {
		return err
	}

	r.sessions.EmitToUser(payload.SenderID, types.EventMessagesRead, types.MessagesReadPayload{
		MessageIDs: payload.MessageIDs,
		ReaderID:   identity.ID,
	})
	return nil
}

// handleSearchUsers matches usernames partially and case-insensitively,
// excludes the requester, and decorates results with live presence.
func (r *Router) handleSearchUsers(ctx context.Context, conn *websocket.Connection, identity *types.UserIdentity, data json.RawMessage) error {
	var payload types.SearchUsersPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		r.emitError(conn, "malformed payload")
		return nil
	}

	results := []types.OnlineUser{}
	query := strings.TrimSpace(payload.Query)
	if query != "" {
		users, err := r.users.SearchUsers(ctx, query, identity.ID)
		if err != nil {
			return err
		}
		for _, user := range users {
			results = append(results, types.OnlineUser{
				ID:           user.ID,
				Username:     user.Username,
				DisplayColor: user.Identity().DisplayColor,
				IsOnline:     r.sessions.IsOnline(user.ID),
			})
		}
	}

	return r.sessions.EmitTo(conn, types.EventSearchResults, results)
}

// handleGetConversations emits the requester's conversation summaries.
func (r *Router) handleGetConversations(ctx context.Context, conn *websocket.Connection, identity *types.UserIdentity) error {
	summaries, err := r.conversations.Conversations(ctx, identity.ID)
	if err != nil {
		return err
	}
	if summaries == nil {
		summaries = []types.ConversationSummary{}
	}
	return r.sessions.EmitTo(conn, types.EventConversations, summaries)
}

// allowSend checks the per-user token bucket for persisting sends.
func (r *Router) allowSend(userID string) bool {
	r.limiterMu.Lock()
	limiter, exists := r.limiters[userID]
	if !exists {
		limiter = rate.NewLimiter(rate.Every(time.Minute/sendRatePerMinute), sendBurst)
		r.limiters[userID] = limiter
	}
	r.limiterMu.Unlock()

	return limiter.Allow()
}

// emitError sends an error event to the originator only. Errors are
// never broadcast.
func (r *Router) emitError(conn *websocket.Connection, message string) {
	if err := r.sessions.EmitTo(conn, types.EventError, types.ErrorPayload{Message: message}); err != nil {
		log.Printf("failed to deliver error event: %v", err)
	}
}
