package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentGroup is the aggregate root linking an ordered set of fees with the
// payments and remissions recorded against them. Fee order is append-only:
// once a payment has been allocated against the group, fees are never
// reordered or removed.
type PaymentGroup struct {
	GroupReference string
	CCDCaseNumber  string
	CaseReference  string
	ServiceCode    string
	CaseType       string
	CallbackURL    string
	Fees           []Fee
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TotalCalculatedAmount sums the original amount owed across all fees.
func (g PaymentGroup) TotalCalculatedAmount() decimal.Decimal {
	total := decimal.Zero
	for _, fee := range g.Fees {
		total = total.Add(fee.CalculatedAmount)
	}
	return total
}

// TotalAmountDue sums outstanding balances; zero or negative means the
// group is fully settled.
func (g PaymentGroup) TotalAmountDue() decimal.Decimal {
	total := decimal.Zero
	for _, fee := range g.Fees {
		total = total.Add(fee.AmountDue)
	}
	return total
}

func (g PaymentGroup) IsFullySettled() bool {
	return len(g.Fees) > 0 && g.TotalAmountDue().Sign() <= 0
}
