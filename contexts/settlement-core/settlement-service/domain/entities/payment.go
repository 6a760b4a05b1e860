package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusCreated   PaymentStatus = "Created"
	PaymentStatusInitiated PaymentStatus = "Initiated"
	PaymentStatusSuccess   PaymentStatus = "Success"
	PaymentStatusFailed    PaymentStatus = "Failed"
	PaymentStatusDeclined  PaymentStatus = "Declined"
	PaymentStatusCancelled PaymentStatus = "Cancelled"
)

// IsTerminal reports whether no further lifecycle transition is allowed.
// Cancelled is terminal too: it is reachable from Initiated only through an
// explicit, gateway-confirmed cancel.
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentStatusSuccess, PaymentStatusFailed, PaymentStatusDeclined, PaymentStatusCancelled:
		return true
	default:
		return false
	}
}

type Payment struct {
	PaymentID         string
	PaymentReference  string
	GroupReference    string
	Amount            decimal.Decimal
	Currency          string
	Channel           string
	Method            string
	Provider          string
	ExternalReference string
	PBAAccountNumber  string
	CustomerReference string
	OrganisationName  string
	CCDCaseNumber     string
	Status            PaymentStatus
	ErrorCode         string
	ErrorMessage      string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
