package auth

import "errors"

var (
	ErrUnauthenticated    = errors.New("authentication required")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrSessionNotFound    = errors.New("session not found or expired")
	ErrInvalidCredentials = errors.New("email or password is incorrect")
	ErrProfileMissing     = errors.New("no profile is linked to this account")
	ErrPendingApproval    = errors.New("account is pending approval")
	ErrEmailTaken         = errors.New("email is already registered")
	ErrPasswordTooShort   = errors.New("password must be at least 8 characters")
	ErrInvalidInput       = errors.New("invalid input")
)
