package conversation

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestTypingTrackerExpires(t *testing.T) {
	tracker := NewTypingTracker(20 * time.Millisecond)

	fired := make(chan struct{})
	tracker.Touch("alice", "bob", func() { close(fired) })

	if !tracker.Active("alice", "bob") {
		t.Fatal("pair should be active right after Touch")
	}

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("expiry callback never fired")
	}
	if tracker.Active("alice", "bob") {
		t.Error("pair should be inactive after expiry")
	}
}

func TestTypingTrackerCancelPreventsExpiry(t *testing.T) {
	tracker := NewTypingTracker(20 * time.Millisecond)

	var fired atomic.Int32
	tracker.Touch("alice", "bob", func() { fired.Add(1) })
	tracker.Cancel("alice", "bob")

	if tracker.Active("alice", "bob") {
		t.Error("pair should be inactive after Cancel")
	}
	time.Sleep(60 * time.Millisecond)
	if fired.Load() != 0 {
		t.Error("canceled timer must not fire")
	}
}

func TestTypingTrackerTouchRearms(t *testing.T) {
	tracker := NewTypingTracker(60 * time.Millisecond)

	var firstFired atomic.Int32
	tracker.Touch("alice", "bob", func() { firstFired.Add(1) })

	// Keep touching inside the window; the original timer must never
	// fire on its own.
	for i := 0; i < 3; i++ {
		time.Sleep(20 * time.Millisecond)
		tracker.Touch("alice", "bob", func() { firstFired.Add(1) })
	}

	if !tracker.Active("alice", "bob") {
		t.Fatal("pair should still be active while touched")
	}

	// After going quiet the last timer fires exactly once.
	time.Sleep(150 * time.Millisecond)
	if got := firstFired.Load(); got != 1 {
		t.Errorf("expected exactly one expiry, got %d", got)
	}
	if tracker.Active("alice", "bob") {
		t.Error("pair should be inactive after final expiry")
	}
}

func TestTypingTrackerPairsAreIndependent(t *testing.T) {
	tracker := NewTypingTracker(time.Minute)

	tracker.Touch("alice", "bob", func() {})
	tracker.Touch("alice", "carol", func() {})
	tracker.Touch("bob", "alice", func() {})

	tracker.Cancel("alice", "bob")
	if tracker.Active("alice", "bob") {
		t.Error("canceled pair should be inactive")
	}
	if !tracker.Active("alice", "carol") || !tracker.Active("bob", "alice") {
		t.Error("other pairs must keep their timers")
	}
}

func TestTypingTrackerZeroTimeoutUsesDefault(t *testing.T) {
	tracker := NewTypingTracker(0)
	if tracker.timeout != DefaultTypingTimeout {
		t.Errorf("expected default timeout, got %v", tracker.timeout)
	}
}

func TestTypingTrackerCancelUnknownPair(t *testing.T) {
	tracker := NewTypingTracker(time.Minute)
	// Must not panic.
	tracker.Cancel("alice", "bob")
}
