package interfaces

import "errors"

// Common errors shared across component boundaries.
var (
	ErrUserNotFound    = errors.New("user not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrUsernameTaken   = errors.New("username already exists")
	ErrEmailTaken      = errors.New("email already in use")
	ErrInvalidToken    = errors.New("invalid or expired token")
)
