package websocket

import "errors"

// Connection-related errors.
var (
	ErrConnectionClosed     = errors.New("connection closed")
	ErrWriteTimeout         = errors.New("write timeout after 5 seconds")
	ErrInvalidJSON          = errors.New("invalid JSON data")
	ErrNilIdentity          = errors.New("identity cannot be nil")
	ErrIdentityAlreadyBound = errors.New("connection identity already bound")
)

// Registry-related errors.
var (
	ErrNilConnection              = errors.New("connection cannot be nil")
	ErrConnectionNotAuthenticated = errors.New("connection must be authenticated before registration")
)
