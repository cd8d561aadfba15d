package patient

import "errors"

var (
	ErrNotFound      = errors.New("patient not found")
	ErrForbidden     = errors.New("access denied to this patient record")
	ErrEmailTaken    = errors.New("email is already registered")
	ErrInvalidInput  = errors.New("invalid input")
	ErrInvalidStatus = errors.New("invalid patient status")
)
