package service

import "errors"

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrBookNotFound         = errors.New("book not found")
	ErrMessageNotFound      = errors.New("message not found")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrRegistrationFailed   = errors.New("registration failed: username or email already exists")
	ErrUnauthorized         = errors.New("a logged-in identity is required")
	ErrEmptyBody            = errors.New("message body must not be empty")
	ErrInvalidInput         = errors.New("invalid input")
	ErrInternalServer       = errors.New("internal server error")
)
