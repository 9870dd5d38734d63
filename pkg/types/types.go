package types

import (
	"time"
)

// MessageScope distinguishes global-room messages from two-party direct
// messages. The scope is fixed at creation and drives both routing and
// history queries.
type MessageScope string

const (
	ScopeGlobal MessageScope = "global"
	ScopeDirect MessageScope = "direct"
)

// DefaultDisplayColor is assigned to accounts that never picked a color.
const DefaultDisplayColor = "#1e88e5"

// UserIdentity is the resolved identity bound to a connection at
// authentication time. It is immutable for the connection's lifetime;
// online status is a registry projection, never a field here.
type UserIdentity struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	DisplayColor string `json:"messageColor"`
}

// User is a stored account. The password hash never leaves the process.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	DisplayColor string    `json:"messageColor"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Identity projects the account onto its connection-facing identity.
func (u *User) Identity() UserIdentity {
	color := u.DisplayColor
	if color == "" {
		color = DefaultDisplayColor
	}
	return UserIdentity{
		ID:           u.ID,
		Username:     u.Username,
		DisplayColor: color,
	}
}

// ChatMessage is a persisted chat message. Immutable after creation
// except for IsRead/ReadAt, which transition unread→read exactly once.
// Author is populated by store reads (joined from the users table) and
// ignored on writes.
type ChatMessage struct {
	ID          string        `json:"id"`
	Text        string        `json:"text"`
	AuthorID    string        `json:"authorId"`
	RecipientID *string       `json:"recipientId,omitempty"`
	Scope       MessageScope  `json:"scope"`
	IsRead      bool          `json:"isRead"`
	ReadAt      *time.Time    `json:"readAt,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	Author      *UserIdentity `json:"user,omitempty"`
}
