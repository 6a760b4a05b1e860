package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// Fee is a single court-fee line item inside a PaymentGroup.
//
// CalculatedAmount is the original amount owed. NetAmount is
// CalculatedAmount minus the running total of waivers. AmountDue is the
// outstanding balance after settled allocations and may be negative,
// which represents a refundable credit.
type Fee struct {
	FeeID            string
	GroupReference   string
	Code             string
	Version          string
	Volume           int
	FeeAmount        decimal.Decimal
	CalculatedAmount decimal.Decimal
	NetAmount        decimal.Decimal
	AmountDue        decimal.Decimal
	AllocatedAmount  decimal.Decimal
	CCDCaseNumber    string
	CaseReference    string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
