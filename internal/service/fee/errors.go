package fee

import "errors"

var (
	ErrNotFound         = errors.New("fee not found")
	ErrPatientNotFound  = errors.New("patient not found")
	ErrForbidden        = errors.New("access denied")
	ErrInvalidInput     = errors.New("invalid input")
	ErrPaymentsDisabled = errors.New("online payment is not enabled")
	ErrNotPayable       = errors.New("fee is not pending")
	ErrPaymentNotFound  = errors.New("payment request not found")
	ErrPaymentFailed    = errors.New("payment failed or cancelled by user")
	ErrGateway          = errors.New("payment gateway error")
)
