package errors

import "errors"

var (
	ErrInvalidGroupInput      = errors.New("payment group input is invalid")
	ErrDuplicateFeeCode       = errors.New("fee code already present in payment group")
	ErrMissingCaseIdentifiers = errors.New("ccd case number or case reference is required")
	ErrGroupNotFound          = errors.New("payment group not found")
	ErrFeeNotFound            = errors.New("fee not found in payment group")
	ErrInvalidWaiverAmount    = errors.New("waiver amount must be positive and not exceed the fee amount")
	ErrRemissionNotFound      = errors.New("remission not found")
	ErrNoServiceFound         = errors.New("no organisational service found for case type")
	ErrGatewayTimeout         = errors.New("timed out waiting for downstream service")
)
