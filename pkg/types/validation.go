package types

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	colorRegex    = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
	emailRegex    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// MaxMessageLength caps chat message text. Longer payloads are rejected
// with an error event rather than truncated.
const MaxMessageLength = 2000

// IsValidUsername checks username format: 3-30 characters, alphanumeric
// plus underscore/hyphen.
func IsValidUsername(username string) bool {
	if len(username) < 3 || len(username) > 30 {
		return false
	}
	return usernameRegex.MatchString(username)
}

// IsValidEmail performs a shallow shape check; deliverability is not
// this layer's problem.
func IsValidEmail(email string) bool {
	if len(email) > 254 {
		return false
	}
	return emailRegex.MatchString(email)
}

// IsValidDisplayColor accepts six-digit hex colors only.
func IsValidDisplayColor(color string) bool {
	return colorRegex.MatchString(color)
}

// Validate ensures a message is storable.
func (m *ChatMessage) Validate() error {
	text := strings.TrimSpace(m.Text)
	if text == "" {
		return ErrEmptyMessageText
	}
	if utf8.RuneCountInString(text) > MaxMessageLength {
		return ErrMessageTooLong
	}
	if m.Scope != ScopeGlobal && m.Scope != ScopeDirect {
		return ErrInvalidScope
	}
	if m.Scope == ScopeDirect && (m.RecipientID == nil || *m.RecipientID == "") {
		return ErrMissingRecipient
	}
	if m.AuthorID == "" {
		return ErrMissingAuthor
	}
	return nil
}
