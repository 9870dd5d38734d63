package types

import (
	"strings"
	"testing"
	"time"
)

func TestIsValidUsername(t *testing.T) {
	valid := []string{"abc", "alice_99", "some-user", strings.Repeat("a", 30)}
	for _, username := range valid {
		if !IsValidUsername(username) {
			t.Errorf("expected %q to be valid", username)
		}
	}

	invalid := []string{"", "ab", strings.Repeat("a", 31), "has space", "dot.name", "émile"}
	for _, username := range invalid {
		if IsValidUsername(username) {
			t.Errorf("expected %q to be invalid", username)
		}
	}
}

func TestIsValidEmail(t *testing.T) {
	valid := []string{"a@b.co", "alice+tag@example.org"}
	for _, email := range valid {
		if !IsValidEmail(email) {
			t.Errorf("expected %q to be valid", email)
		}
	}

	invalid := []string{"", "plain", "a@b", "a b@c.co", "a@@b.co", strings.Repeat("a", 250) + "@b.co"}
	for _, email := range invalid {
		if IsValidEmail(email) {
			t.Errorf("expected %q to be invalid", email)
		}
	}
}

func TestIsValidDisplayColor(t *testing.T) {
	if !IsValidDisplayColor(DefaultDisplayColor) {
		t.Errorf("default color %q must be valid", DefaultDisplayColor)
	}
	if !IsValidDisplayColor("#AABB00") {
		t.Error("uppercase hex should be accepted")
	}

	invalid := []string{"", "1e88e5", "#1e88e", "#1e88e55", "#gggggg", "red"}
	for _, color := range invalid {
		if IsValidDisplayColor(color) {
			t.Errorf("expected %q to be invalid", color)
		}
	}
}

func TestChatMessageValidate(t *testing.T) {
	recipient := "u2"
	base := func() *ChatMessage {
		return &ChatMessage{
			ID:        "m1",
			Text:      "hello",
			AuthorID:  "u1",
			Scope:     ScopeGlobal,
			CreatedAt: time.Now().UTC(),
		}
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("valid global message rejected: %v", err)
	}

	direct := base()
	direct.Scope = ScopeDirect
	direct.RecipientID = &recipient
	if err := direct.Validate(); err != nil {
		t.Fatalf("valid direct message rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*ChatMessage)
		want   error
	}{
		{"empty text", func(m *ChatMessage) { m.Text = "" }, ErrEmptyMessageText},
		{"whitespace text", func(m *ChatMessage) { m.Text = "   \n\t" }, ErrEmptyMessageText},
		{"too long", func(m *ChatMessage) { m.Text = strings.Repeat("x", MaxMessageLength+1) }, ErrMessageTooLong},
		{"bad scope", func(m *ChatMessage) { m.Scope = "room" }, ErrInvalidScope},
		{"direct without recipient", func(m *ChatMessage) { m.Scope = ScopeDirect }, ErrMissingRecipient},
		{"empty recipient", func(m *ChatMessage) {
			m.Scope = ScopeDirect
			empty := ""
			m.RecipientID = &empty
		}, ErrMissingRecipient},
		{"no author", func(m *ChatMessage) { m.AuthorID = "" }, ErrMissingAuthor},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg := base()
			tc.mutate(msg)
			if err := msg.Validate(); err != tc.want {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestChatMessageValidateLengthByRunes(t *testing.T) {
	msg := &ChatMessage{
		Text:     strings.Repeat("é", MaxMessageLength),
		AuthorID: "u1",
		Scope:    ScopeGlobal,
	}
	if err := msg.Validate(); err != nil {
		t.Errorf("message of exactly %d runes should pass: %v", MaxMessageLength, err)
	}
}

func TestUserIdentityDefaultsColor(t *testing.T) {
	u := &User{ID: "u1", Username: "alice"}
	if got := u.Identity().DisplayColor; got != DefaultDisplayColor {
		t.Errorf("expected default color, got %q", got)
	}

	u.DisplayColor = "#000000"
	if got := u.Identity().DisplayColor; got != "#000000" {
		t.Errorf("expected chosen color preserved, got %q", got)
	}
}
