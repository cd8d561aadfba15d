package appointment

import "errors"

var (
	ErrNotFound          = errors.New("appointment not found")
	ErrPatientNotFound   = errors.New("patient not found")
	ErrForbidden         = errors.New("access denied to this appointment")
	ErrSlotConflict      = errors.New("time slot is already booked")
	ErrInvalidTransition = errors.New("appointment status change is not allowed")
	ErrInvalidInput      = errors.New("invalid input")
)
