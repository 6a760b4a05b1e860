package services

import (
	"time"

	"courtpay/contexts/settlement-core/settlement-service/domain/entities"
	domainerrors "courtpay/contexts/settlement-core/settlement-service/domain/errors"

	"github.com/shopspring/decimal"
)

// ApportionResult carries the allocation rows for one settled payment and
// the fees with their recomputed balances.
type ApportionResult struct {
	Apportions []entities.FeePayApportion
	Fees       []entities.Fee
}

// Apportion allocates a settled payment's amount across the service
// request's fees in stable append order (waterfall allocation).
//
// Earlier fees are either fully settled or left with a strictly positive
// remainder before any later fee is touched. The last fee absorbs whatever
// remains, so any shortfall or surplus shows up in exactly one place: a
// positive or negative AmountDue on the final fee. The sum of allocations
// always equals the payment amount exactly.
func Apportion(fees []entities.Fee, payment entities.Payment, now time.Time) (ApportionResult, error) {
	if len(fees) == 0 {
		return ApportionResult{}, domainerrors.ErrNoFeesToApportion
	}

	result := ApportionResult{
		Apportions: make([]entities.FeePayApportion, 0, len(fees)),
		Fees:       make([]entities.Fee, 0, len(fees)),
	}

	remaining := payment.Amount
	last := len(fees) - 1
	for i, fee := range fees {
		outstanding := fee.NetAmount.Sub(fee.AllocatedAmount)

		var allocation decimal.Decimal
		if i != last {
			allocation = decimal.Min(remaining, outstanding)
			if allocation.Sign() < 0 {
				allocation = decimal.Zero
			}
		} else {
			// The last fee takes the residual even beyond its outstanding
			// balance, surfacing a surplus as a negative AmountDue.
			allocation = remaining
		}

		fee.AllocatedAmount = fee.AllocatedAmount.Add(allocation)
		fee.AmountDue = outstanding.Sub(allocation)
		fee.UpdatedAt = now
		remaining = remaining.Sub(allocation)

		result.Fees = append(result.Fees, fee)
		result.Apportions = append(result.Apportions, entities.FeePayApportion{
			PaymentID:       payment.PaymentID,
			FeeID:           fee.FeeID,
			ApportionAmount: allocation,
			ApportionType:   entities.ApportionTypeAuto,
			CCDCaseNumber:   payment.CCDCaseNumber,
			CreatedAt:       now,
		})
	}

	return result, nil
}

// TotalApportioned sums the allocation amounts of a result. Conservation
// holds by construction; callers assert it rather than trust it.
func (r ApportionResult) TotalApportioned() decimal.Decimal {
	total := decimal.Zero
	for _, apportion := range r.Apportions {
		total = total.Add(apportion.ApportionAmount)
	}
	return total
}
