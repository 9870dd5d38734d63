package interfaces

import "chatwire/pkg/types"

// TokenVerifier resolves an opaque bearer token to a user identity.
// Consumed by the session manager at connection time and by the HTTP
// profile endpoints.
type TokenVerifier interface {
	// VerifyToken returns the identity for a valid token, or
	// ErrInvalidToken / ErrUserNotFound.
	VerifyToken(token string) (*types.UserIdentity, error)
}
