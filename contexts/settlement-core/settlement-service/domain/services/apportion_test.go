package services

import (
	"testing"
	"time"

	"courtpay/contexts/settlement-core/settlement-service/domain/entities"
	domainerrors "courtpay/contexts/settlement-core/settlement-service/domain/errors"

	"github.com/shopspring/decimal"
)

func makeFee(id string, net float64) entities.Fee {
	amount := decimal.NewFromFloat(net)
	return entities.Fee{
		FeeID:            id,
		Code:             "FEE0001",
		CalculatedAmount: amount,
		NetAmount:        amount,
		AmountDue:        amount,
	}
}

func makePayment(amount float64) entities.Payment {
	return entities.Payment{
		PaymentID:     "pay-1",
		Amount:        decimal.NewFromFloat(amount),
		CCDCaseNumber: "1111222233334444",
		Status:        entities.PaymentStatusSuccess,
	}
}

func TestApportionWaterfallShortfallLandsOnLastFee(t *testing.T) {
	fees := []entities.Fee{makeFee("f1", 30), makeFee("f2", 40), makeFee("f3", 60)}
	now := time.Now().UTC()

	result, err := Apportion(fees, makePayment(120), now)
	if err != nil {
		t.Fatalf("apportion failed: %v", err)
	}

	wantAllocations := []float64{30, 40, 50}
	for i, want := range wantAllocations {
		if !result.Apportions[i].ApportionAmount.Equal(decimal.NewFromFloat(want)) {
			t.Fatalf("fee %d allocation = %s, want %v", i, result.Apportions[i].ApportionAmount, want)
		}
	}
	if !result.Fees[0].AmountDue.IsZero() || !result.Fees[1].AmountDue.IsZero() {
		t.Fatalf("earlier fees should be fully settled, got dues %s and %s",
			result.Fees[0].AmountDue, result.Fees[1].AmountDue)
	}
	if !result.Fees[2].AmountDue.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("last fee due = %s, want 10", result.Fees[2].AmountDue)
	}
}

func TestApportionSurplusShowsAsNegativeDueOnLastFee(t *testing.T) {
	fees := []entities.Fee{makeFee("f1", 10), makeFee("f2", 40), makeFee("f3", 60)}

	result, err := Apportion(fees, makePayment(120), time.Now().UTC())
	if err != nil {
		t.Fatalf("apportion failed: %v", err)
	}
	if !result.Apportions[2].ApportionAmount.Equal(decimal.NewFromInt(70)) {
		t.Fatalf("last allocation = %s, want 70", result.Apportions[2].ApportionAmount)
	}
	if !result.Fees[2].AmountDue.Equal(decimal.NewFromInt(-10)) {
		t.Fatalf("last fee due = %s, want -10 surplus credit", result.Fees[2].AmountDue)
	}
}

func TestApportionExactSettlementLeavesNoResidual(t *testing.T) {
	fees := []entities.Fee{makeFee("f1", 20), makeFee("f2", 40), makeFee("f3", 60)}

	result, err := Apportion(fees, makePayment(120), time.Now().UTC())
	if err != nil {
		t.Fatalf("apportion failed: %v", err)
	}
	for i, fee := range result.Fees {
		if !fee.AmountDue.IsZero() {
			t.Fatalf("fee %d due = %s, want 0", i, fee.AmountDue)
		}
	}
}

func TestApportionConservesPaymentAmount(t *testing.T) {
	cases := [][]float64{
		{30, 40, 60},
		{10, 40, 60},
		{20, 40, 60},
		{120},
		{0.01, 119.99, 3.33},
	}
	for _, nets := range cases {
		fees := make([]entities.Fee, 0, len(nets))
		for i, net := range nets {
			fees = append(fees, makeFee("f"+string(rune('1'+i)), net))
		}
		result, err := Apportion(fees, makePayment(120), time.Now().UTC())
		if err != nil {
			t.Fatalf("apportion failed for %v: %v", nets, err)
		}
		if !result.TotalApportioned().Equal(decimal.NewFromInt(120)) {
			t.Fatalf("conservation violated for %v: total %s", nets, result.TotalApportioned())
		}
	}
}

func TestApportionPartiallyAllocatedFeeOnlyTakesOutstanding(t *testing.T) {
	first := makeFee("f1", 50)
	first.AllocatedAmount = decimal.NewFromInt(30)
	first.AmountDue = decimal.NewFromInt(20)
	fees := []entities.Fee{first, makeFee("f2", 100)}

	result, err := Apportion(fees, makePayment(120), time.Now().UTC())
	if err != nil {
		t.Fatalf("apportion failed: %v", err)
	}
	if !result.Apportions[0].ApportionAmount.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("first allocation = %s, want outstanding 20", result.Apportions[0].ApportionAmount)
	}
	if !result.Apportions[1].ApportionAmount.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("second allocation = %s, want 100", result.Apportions[1].ApportionAmount)
	}
}

func TestApportionRejectsEmptyFeeList(t *testing.T) {
	_, err := Apportion(nil, makePayment(120), time.Now().UTC())
	if err != domainerrors.ErrNoFeesToApportion {
		t.Fatalf("expected ErrNoFeesToApportion, got %v", err)
	}
}

func TestTransitionRepeatIntoHeldStatusIsNoOp(t *testing.T) {
	payment := entities.Payment{Status: entities.PaymentStatusSuccess}
	changed, err := Transition(&payment, entities.PaymentStatusSuccess)
	if err != nil {
		t.Fatalf("repeat transition returned error: %v", err)
	}
	if changed {
		t.Fatalf("repeat transition into held status must not report a change")
	}
}

func TestTransitionRejectsIllegalSteps(t *testing.T) {
	payment := entities.Payment{Status: entities.PaymentStatusCreated}
	if _, err := Transition(&payment, entities.PaymentStatusSuccess); err != domainerrors.ErrInvalidStatusTransition {
		t.Fatalf("Created -> Success must be rejected, got %v", err)
	}

	payment.Status = entities.PaymentStatusFailed
	if _, err := Transition(&payment, entities.PaymentStatusInitiated); err != domainerrors.ErrInvalidStatusTransition {
		t.Fatalf("terminal payment must reject further transitions, got %v", err)
	}
}
