package auth

import "errors"

// Credential flow errors.
var (
	ErrMissingSecret      = errors.New("JWT secret key is required")
	ErrPasswordTooShort   = errors.New("password must be at least 6 characters long")
	ErrInvalidCredentials = errors.New("invalid credentials")
)
