package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"chatwire/pkg/interfaces"
	"chatwire/pkg/types"
)

// memUserStore is an in-memory interfaces.UserStore for provider tests.
type memUserStore struct {
	users map[string]*types.User // by id
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: make(map[string]*types.User)}
}

func (s *memUserStore) CreateUser(_ context.Context, user *types.User) error {
	for _, existing := range s.users {
		if existing.Username == user.Username {
			return interfaces.ErrUsernameTaken
		}
		if existing.Email == user.Email {
			return interfaces.ErrEmailTaken
		}
	}
	copied := *user
	s.users[user.ID] = &copied
	return nil
}

func (s *memUserStore) UserByID(_ context.Context, id string) (*types.User, error) {
	if user, ok := s.users[id]; ok {
		return user, nil
	}
	return nil, interfaces.ErrUserNotFound
}

func (s *memUserStore) UserByUsername(_ context.Context, username string) (*types.User, error) {
	for _, user := range s.users {
		if user.Username == username {
			return user, nil
		}
	}
	return nil, interfaces.ErrUserNotFound
}

func (s *memUserStore) UserByEmail(_ context.Context, email string) (*types.User, error) {
	for _, user := range s.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, interfaces.ErrUserNotFound
}

func (s *memUserStore) SearchUsers(_ context.Context, query, excludeID string) ([]*types.User, error) {
	var matches []*types.User
	for _, user := range s.users {
		if user.ID == excludeID {
			continue
		}
		if strings.Contains(strings.ToLower(user.Username), strings.ToLower(query)) {
			matches = append(matches, user)
		}
	}
	return matches, nil
}

func (s *memUserStore) UpdateDisplayColor(_ context.Context, userID, color string) error {
	user, ok := s.users[userID]
	if !ok {
		return interfaces.ErrUserNotFound
	}
	user.DisplayColor = color
	return nil
}

func newTestProvider(t *testing.T) (*Provider, *memUserStore) {
	t.Helper()

	store := newMemUserStore()
	provider, err := NewProvider(store, []byte("test-secret"), time.Hour)
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	return provider, store
}

func TestNewProviderRequiresSecret(t *testing.T) {
	if _, err := NewProvider(newMemUserStore(), nil, time.Hour); err != ErrMissingSecret {
		t.Errorf("expected ErrMissingSecret, got %v", err)
	}
}

func TestRegisterLoginVerifyRoundTrip(t *testing.T) {
	provider, _ := newTestProvider(t)
	ctx := context.Background()

	creds, err := provider.Register(ctx, "alice", "alice@example.com", "secret1")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if creds.Token == "" {
		t.Fatal("expected a signed token")
	}
	if creds.User.Username != "alice" || creds.User.DisplayColor != types.DefaultDisplayColor {
		t.Errorf("unexpected identity: %+v", creds.User)
	}

	identity, err := provider.VerifyToken(creds.Token)
	if err != nil {
		t.Fatalf("VerifyToken failed: %v", err)
	}
	if identity.ID != creds.User.ID {
		t.Errorf("token resolved to %q, expected %q", identity.ID, creds.User.ID)
	}

	login, err := provider.Login(ctx, "alice", "secret1")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if login.User.ID != creds.User.ID {
		t.Errorf("login resolved to %q, expected %q", login.User.ID, creds.User.ID)
	}
}

func TestRegisterValidation(t *testing.T) {
	provider, _ := newTestProvider(t)
	ctx := context.Background()

	cases := []struct {
		name     string
		username string
		email    string
		password string
		want     error
	}{
		{"short username", "ab", "a@b.co", "secret1", types.ErrInvalidUsername},
		{"bad characters", "bad name", "a@b.co", "secret1", types.ErrInvalidUsername},
		{"bad email", "alice", "not-an-email", "secret1", types.ErrInvalidEmail},
		{"short password", "alice", "a@b.co", "12345", ErrPasswordTooShort},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := provider.Register(ctx, tc.username, tc.email, tc.password); err != tc.want {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestRegisterUniqueness(t *testing.T) {
	provider, _ := newTestProvider(t)
	ctx := context.Background()

	if _, err := provider.Register(ctx, "alice", "alice@example.com", "secret1"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if _, err := provider.Register(ctx, "alice", "other@example.com", "secret1"); err != interfaces.ErrUsernameTaken {
		t.Errorf("expected ErrUsernameTaken, got %v", err)
	}
	if _, err := provider.Register(ctx, "alice2", "alice@example.com", "secret1"); err != interfaces.ErrEmailTaken {
		t.Errorf("expected ErrEmailTaken, got %v", err)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	provider, _ := newTestProvider(t)
	ctx := context.Background()

	if _, err := provider.Register(ctx, "alice", "alice@example.com", "secret1"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if _, err := provider.Login(ctx, "alice", "wrong-password"); err != ErrInvalidCredentials {
		t.Errorf("expected ErrInvalidCredentials for wrong password, got %v", err)
	}
	// Unknown user gets the same error as a wrong password.
	if _, err := provider.Login(ctx, "nobody", "secret1"); err != ErrInvalidCredentials {
		t.Errorf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}

func TestVerifyTokenRejectsGarbage(t *testing.T) {
	provider, _ := newTestProvider(t)

	for _, token := range []string{"", "   ", "Bearer ", "not.a.token"} {
		if _, err := provider.VerifyToken(token); err != interfaces.ErrInvalidToken {
			t.Errorf("token %q: expected ErrInvalidToken, got %v", token, err)
		}
	}
}

func TestVerifyTokenRejectsForeignSignature(t *testing.T) {
	provider, store := newTestProvider(t)
	ctx := context.Background()

	creds, err := provider.Register(ctx, "alice", "alice@example.com", "secret1")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	other, err := NewProvider(store, []byte("different-secret"), time.Hour)
	if err != nil {
		t.Fatalf("failed to create second provider: %v", err)
	}
	if _, err := other.VerifyToken(creds.Token); err != interfaces.ErrInvalidToken {
		t.Errorf("expected ErrInvalidToken across secrets, got %v", err)
	}
}

func TestVerifyTokenAcceptsBearerPrefix(t *testing.T) {
	provider, _ := newTestProvider(t)

	creds, err := provider.Register(context.Background(), "alice", "alice@example.com", "secret1")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	identity, err := provider.VerifyToken("Bearer " + creds.Token)
	if err != nil {
		t.Fatalf("VerifyToken with prefix failed: %v", err)
	}
	if identity.Username != "alice" {
		t.Errorf("unexpected identity: %+v", identity)
	}
}

func TestVerifyTokenForDeletedUser(t *testing.T) {
	provider, store := newTestProvider(t)

	creds, err := provider.Register(context.Background(), "alice", "alice@example.com", "secret1")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	delete(store.users, creds.User.ID)
	if _, err := provider.VerifyToken(creds.Token); err != interfaces.ErrUserNotFound {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	store := newMemUserStore()
	provider, err := NewProvider(store, []byte("test-secret"), time.Nanosecond)
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}

	creds, err := provider.Register(context.Background(), "alice", "alice@example.com", "secret1")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	time.Sleep(10 * time.Millisecond)
	if _, err := provider.VerifyToken(creds.Token); err != interfaces.ErrInvalidToken {
		t.Errorf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestLoginTrimsUsername(t *testing.T) {
	provider, _ := newTestProvider(t)
	ctx := context.Background()

	if _, err := provider.Register(ctx, "alice", "alice@example.com", "secret1"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if _, err := provider.Login(ctx, "  alice  ", "secret1"); err != nil {
		t.Errorf("expected trimmed login to succeed, got %v", err)
	}
}
