package types

import "errors"

// Validation errors shared across components.
var (
	ErrEmptyMessageText = errors.New("message text cannot be empty")
	ErrMessageTooLong   = errors.New("message text exceeds 2000 characters")
	ErrInvalidScope     = errors.New("message scope must be global or direct")
	ErrMissingRecipient = errors.New("direct message missing recipient")
	ErrMissingAuthor    = errors.New("message missing author")
	ErrInvalidUsername  = errors.New("username must be 3-30 characters, alphanumeric + underscore/hyphen only")
	ErrInvalidEmail     = errors.New("invalid email address")
	ErrInvalidColor     = errors.New("display color must be a #rrggbb hex value")
)
