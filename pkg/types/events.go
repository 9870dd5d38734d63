package types

import (
	"encoding/json"
	"time"
)

// Inbound event names. This is the closed set the router dispatches on;
// anything else is answered with an error event.
const (
	EventSendGlobal        = "send-global"
	EventSendDirect        = "send-direct"
	EventGetHistory        = "get-history"
	EventGetDirectMessages = "get-direct-messages"
	EventStartConversation = "start-conversation"
	EventTyping            = "typing"
	EventMarkRead          = "mark-read"
	EventSearchUsers       = "search-users"
	EventGetConversations  = "get-conversations"
)

// Outbound event names.
const (
	EventPresenceChanged      = "presence-changed"
	EventOnlineUsers          = "online-users"
	EventGlobalMessage        = "global-message"
	EventMessageHistory       = "message-history"
	EventDirectMessage        = "direct-message"
	EventDirectMessageHistory = "direct-message-history"
	EventConversations        = "conversations"
	EventNewConversation      = "new-conversation"
	EventConversationStarted  = "conversation-started"
	EventSearchResults        = "search-results"
	EventUserTyping           = "user-typing"
	EventMessagesRead         = "messages-read"
	EventError                = "error"
)

// Envelope is the wire framing for every event in both directions.
// Data stays raw on the way in so each handler can decode its own
// payload type.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Inbound payloads.

type SendGlobalPayload struct {
	Text string `json:"text"`
}

type SendDirectPayload struct {
	Text        string `json:"text"`
	RecipientID string `json:"recipientId"`
}

type GetDirectMessagesPayload struct {
	CounterpartID string `json:"counterpartId"`
}

type StartConversationPayload struct {
	RecipientID string `json:"recipientId"`
}

type TypingPayload struct {
	RecipientID string `json:"recipientId"`
	IsTyping    bool   `json:"isTyping"`
}

type MarkReadPayload struct {
	MessageIDs []string `json:"messageIds"`
	SenderID   string   `json:"senderId"`
}

type SearchUsersPayload struct {
	Query string `json:"query"`
}

// Outbound payloads.

const (
	PresenceOnline  = "online"
	PresenceOffline = "offline"
)

type PresenceChangedPayload struct {
	UserID string `json:"userId"`
	Status string `json:"status"`
}

// OnlineUser is a presence snapshot entry: an identity plus its derived
// online flag.
type OnlineUser struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	DisplayColor string `json:"messageColor"`
	IsOnline     bool   `json:"isOnline"`
}

type DirectMessageHistoryPayload struct {
	CounterpartID string         `json:"counterpartId"`
	Messages      []*ChatMessage `json:"messages"`
}

type UserTypingPayload struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	IsTyping bool   `json:"isTyping"`
}

type MessagesReadPayload struct {
	MessageIDs []string `json:"messageIds"`
	ReaderID   string   `json:"readerId"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// LatestMessage is the summary projection of the most recent direct
// message between two users.
type LatestMessage struct {
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"createdAt"`
	IsFromSelf bool      `json:"isFromSelf"`
}

// ConversationSummary is derived per counterpart, never stored.
// LatestMessage is nil for a conversation opened before any message
// exists (the start-conversation flow).
type ConversationSummary struct {
	User          OnlineUser     `json:"user"`
	LatestMessage *LatestMessage `json:"latestMessage"`
}

type ConversationStartedPayload struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	IsOnline bool   `json:"isOnline"`
}
