package services

import (
	"courtpay/contexts/settlement-core/settlement-service/domain/entities"
	domainerrors "courtpay/contexts/settlement-core/settlement-service/domain/errors"
)

// validTransitions is the payment lifecycle:
// Created -> Initiated -> {Success, Failed, Declined}; Cancelled only from
// Initiated, and only through an explicit gateway-confirmed cancel.
var validTransitions = map[entities.PaymentStatus][]entities.PaymentStatus{
	entities.PaymentStatusCreated: {
		entities.PaymentStatusInitiated,
	},
	entities.PaymentStatusInitiated: {
		entities.PaymentStatusSuccess,
		entities.PaymentStatusFailed,
		entities.PaymentStatusDeclined,
		entities.PaymentStatusCancelled,
	},
}

// CanTransition reports whether from -> to is a legal lifecycle step.
func CanTransition(from entities.PaymentStatus, to entities.PaymentStatus) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Transition moves a payment to the target status. A repeat transition into
// the status the payment already holds is a no-op (changed=false) so retried
// terminal notifications never re-run settlement side effects.
func Transition(payment *entities.Payment, to entities.PaymentStatus) (bool, error) {
	if payment.Status == to {
		return false, nil
	}
	if payment.Status.IsTerminal() {
		return false, domainerrors.ErrInvalidStatusTransition
	}
	if !CanTransition(payment.Status, to) {
		return false, domainerrors.ErrInvalidStatusTransition
	}
	payment.Status = to
	return true, nil
}
