package pasetotoken

import "fmt"

// ErrConfig reports unusable key material or manager settings.
type ErrConfig struct{ Msg string }

func (e ErrConfig) Error() string { return "token config: " + e.Msg }

var errUnknownMode = ErrConfig{Msg: "unknown mode (use local|public)"}

// ErrInvalidToken wraps every parse and claim failure so callers map all of
// them to one unauthenticated response.
type ErrInvalidToken struct{ Err error }

func (e ErrInvalidToken) Error() string { return fmt.Sprintf("invalid token: %v", e.Err) }
func (e ErrInvalidToken) Unwrap() error { return e.Err }
