package errors

import "errors"

var (
	ErrInvalidPaymentInput       = errors.New("payment input is invalid")
	ErrIdempotencyKeyMissing     = errors.New("idempotency key is required")
	ErrIdempotencyConflict       = errors.New("idempotency key already used with a different payload")
	ErrTryAgain                  = errors.New("a concurrent attempt with this idempotency key is in flight, try again")
	ErrServiceRequestNotFound    = errors.New("service request not found")
	ErrServiceRequestAlreadyPaid = errors.New("the service request has already been paid")
	ErrAmountMismatch            = errors.New("the amount should be equal to the service request balance")
	ErrPaymentNotFound           = errors.New("payment not found")
	ErrNoFeesToApportion         = errors.New("no fees to apportion the payment against")
	ErrInvalidStatusTransition   = errors.New("payment status transition is not allowed")
	ErrCancelDisabled            = errors.New("payment cancellation is not enabled")
	ErrAccountNotFound           = errors.New("credit account not found")
	ErrAccountOnHold             = errors.New("credit account is on hold")
	ErrAccountDeleted            = errors.New("credit account has been deleted")
	ErrInsufficientFunds         = errors.New("credit account has insufficient funds")
	ErrGatewayTimeout            = errors.New("timed out waiting for the payment gateway")
	ErrGatewayUnavailable        = errors.New("payment gateway is unavailable")
	ErrGatewayNotFound           = errors.New("payment not found at the gateway")
)
