package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

type ApportionType string

const (
	ApportionTypeAuto   ApportionType = "AUTO"
	ApportionTypeManual ApportionType = "MANUAL"
	ApportionTypeRetro  ApportionType = "RETRO"
)

// FeePayApportion is the immutable junction record between one payment and
// one fee. Corrections are made by writing new records, never by mutating
// history.
type FeePayApportion struct {
	ApportionID     string
	PaymentID       string
	FeeID           string
	ApportionAmount decimal.Decimal
	ApportionType   ApportionType
	CCDCaseNumber   string
	CreatedAt       time.Time
}
