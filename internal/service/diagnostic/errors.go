package diagnostic

import "errors"

var (
	ErrNotFound        = errors.New("diagnostic not found")
	ErrPatientNotFound = errors.New("patient not found")
	ErrForbidden       = errors.New("access denied to these diagnostics")
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnsupportedType = errors.New("file type must be PDF, JPEG or PNG")
	ErrTooLarge        = errors.New("file exceeds the size limit")
	// ErrStorage covers object storage and metadata write failures. Clients
	// should retry later.
	ErrStorage = errors.New("storage unavailable")
)
