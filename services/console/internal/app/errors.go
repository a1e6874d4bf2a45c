package app

import "errors"

var (
	// ErrRateLimited indicates too many login attempts for one email.
	ErrRateLimited = errors.New("too many login attempts")
	// ErrMissingCredentials indicates an empty email or password.
	ErrMissingCredentials = errors.New("email and password required")
)
