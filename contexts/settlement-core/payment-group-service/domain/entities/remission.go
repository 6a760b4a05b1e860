package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// Remission is a Help With Fees waiver against exactly one fee.
// A retrospective remission is one granted after the fee has already
// received payments.
type Remission struct {
	RemissionReference string
	GroupReference     string
	FeeID              string
	FeeCode            string
	HwfReference       string
	HwfAmount          decimal.Decimal
	BeneficiaryName    string
	Retrospective      bool
	CreatedAt          time.Time
}
