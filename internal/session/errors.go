package session

import "errors"

var (
	// ErrAuthenticationFailed is terminal for a connection attempt. The
	// client's only recovery is reconnecting with a fresh token.
	ErrAuthenticationFailed = errors.New("connection authentication failed")
)
