package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// Fee is the settlement view of a fee line item: the balances the waterfall
// allocation reads and writes. Fees arrive in stable append order.
type Fee struct {
	FeeID            string
	GroupReference   string
	Code             string
	CalculatedAmount decimal.Decimal
	NetAmount        decimal.Decimal
	AmountDue        decimal.Decimal
	AllocatedAmount  decimal.Decimal
	CCDCaseNumber    string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ServiceRequest is the billing unit payments are submitted against: the
// payment group with its append-ordered fees.
type ServiceRequest struct {
	GroupReference string
	CCDCaseNumber  string
	CallbackURL    string
	Fees           []Fee
}

func (sr ServiceRequest) TotalCalculatedAmount() decimal.Decimal {
	total := decimal.Zero
	for _, fee := range sr.Fees {
		total = total.Add(fee.CalculatedAmount)
	}
	return total
}

func (sr ServiceRequest) TotalAmountDue() decimal.Decimal {
	total := decimal.Zero
	for _, fee := range sr.Fees {
		total = total.Add(fee.AmountDue)
	}
	return total
}

// IsFullySettled reports whether no fee carries a positive outstanding
// balance. The check is per fee: a remission credit on one fee never masks
// another fee that still owes. A settled service request rejects any
// further submission.
func (sr ServiceRequest) IsFullySettled() bool {
	if len(sr.Fees) == 0 {
		return false
	}
	for _, fee := range sr.Fees {
		if fee.AmountDue.Sign() > 0 {
			return false
		}
	}
	return true
}

// StatusLabel is the caller-facing summary used in callback notifications.
func (sr ServiceRequest) StatusLabel() string {
	switch {
	case sr.IsFullySettled():
		return "Paid"
	case sr.TotalAmountDue().LessThan(sr.TotalCalculatedAmount()):
		return "Partially paid"
	default:
		return "Not paid"
	}
}
