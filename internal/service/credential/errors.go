package credential

import "errors"

var (
	ErrPhoneRequired = errors.New("phone is required")
	ErrInvalidPhone  = errors.New("phone number is invalid")
	ErrEmailTaken    = errors.New("email is already registered")
)
