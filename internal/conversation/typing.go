package conversation

import (
	"sync"
	"time"
)

// DefaultTypingTimeout is how long a typing indicator stays live
// without another keystroke.
const DefaultTypingTimeout = 2 * time.Second

type typingKey struct {
	SenderID    string
	RecipientID string
}

// TypingTracker holds one cancelable timer per (sender, recipient)
// pair. A keystroke re-arms the pair's timer instead of stacking a new
// one; on expiry the tracker fires the callback so the recipient sees
// the indicator clear even if the sender never sends isTyping=false.
type TypingTracker struct {
	mu      sync.Mutex
	timeout time.Duration
	timers  map[typingKey]*time.Timer
}

// NewTypingTracker creates a tracker with the given expiry; zero means
// DefaultTypingTimeout.
func NewTypingTracker(timeout time.Duration) *TypingTracker {
	if timeout <= 0 {
		timeout = DefaultTypingTimeout
	}
	return &TypingTracker{
		timeout: timeout,
		timers:  make(map[typingKey]*time.Timer),
	}
}

// Touch arms or re-arms the pair's expiry timer. onExpire runs once if
// the timer fires before the next Touch or Cancel.
func (t *TypingTracker) Touch(senderID, recipientID string, onExpire func()) {
	key := typingKey{SenderID: senderID, RecipientID: recipientID}

	t.mu.Lock()
	defer t.mu.Unlock()

	if timer, exists := t.timers[key]; exists {
		timer.Stop()
	}
	t.timers[key] = time.AfterFunc(t.timeout, func() {
		t.mu.Lock()
		delete(t.timers, key)
		t.mu.Unlock()
		onExpire()
	})
}

// Cancel stops the pair's timer without firing it. Used when the sender
// explicitly reports isTyping=false.
func (t *TypingTracker) Cancel(senderID, recipientID string) {
	key := typingKey{SenderID: senderID, RecipientID: recipientID}

	t.mu.Lock()
	defer t.mu.Unlock()

	if timer, exists := t.timers[key]; exists {
		timer.Stop()
		delete(t.timers, key)
	}
}

// Active reports whether a pair currently has a live timer.
func (t *TypingTracker) Active(senderID, recipientID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, exists := t.timers[typingKey{SenderID: senderID, RecipientID: recipientID}]
	return exists
}
