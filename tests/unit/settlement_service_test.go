package unit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	settlementservice "courtpay/contexts/settlement-core/settlement-service"
	"courtpay/contexts/settlement-core/settlement-service/application"
	"courtpay/contexts/settlement-core/settlement-service/domain/entities"
	domainerrors "courtpay/contexts/settlement-core/settlement-service/domain/errors"
	"courtpay/contexts/settlement-core/settlement-service/ports"
	settlementhttp "courtpay/contexts/settlement-core/settlement-service/transport/http"

	"github.com/shopspring/decimal"
)

func newSettlementModule(features application.Features) settlementservice.Module {
	module := settlementservice.NewInMemoryModule(features, nil)
	module.Store.SeedGroup(entities.ServiceRequest{
		GroupReference: "2026-100001",
		CCDCaseNumber:  "1111222233334444",
		CallbackURL:    "https://ccd.local/callbacks",
		Fees: []entities.Fee{
			seedFee("fee-1", 30),
			seedFee("fee-2", 40),
			seedFee("fee-3", 50),
		},
	})
	module.Store.RegisterAccount(ports.AccountInfo{
		AccountNumber:    "PBA0012345",
		AccountName:      "Acme Solicitors LLP",
		Status:           ports.AccountStatusActive,
		AvailableBalance: decimal.NewFromInt(10000),
	})
	return module
}

func seedFee(id string, amount float64) entities.Fee {
	value := decimal.NewFromFloat(amount)
	return entities.Fee{
		FeeID:            id,
		Code:             "FEE0001",
		CalculatedAmount: value,
		NetAmount:        value,
		AmountDue:        value,
		CCDCaseNumber:    "1111222233334444",
	}
}

func pbaRequest() settlementhttp.PBAPaymentRequest {
	return settlementhttp.PBAPaymentRequest{
		Amount:            "120.00",
		Currency:          "GBP",
		AccountNumber:     "PBA0012345",
		CustomerReference: "cust-ref-1",
		OrganisationName:  "Acme Solicitors LLP",
	}
}

func TestSubmitPBAPaymentSettlesAndApportions(t *testing.T) {
	module := newSettlementModule(application.Features{ApportionEnabled: true})
	ctx := context.Background()

	resp, err := module.Handler.SubmitPBAPaymentHandler(ctx, "2026-100001", "idem-1", pbaRequest())
	if err != nil {
		t.Fatalf("pba payment failed: %v", err)
	}
	if resp.Data.Status != string(entities.PaymentStatusSuccess) {
		t.Fatalf("payment status = %s, want Success", resp.Data.Status)
	}
	if resp.Replayed {
		t.Fatalf("first submission must not be a replay")
	}

	payment, err := module.Store.GetPayment(ctx, resp.Data.PaymentReference)
	if err != nil {
		t.Fatalf("get payment failed: %v", err)
	}
	apportions, err := module.Store.ListApportionsByPayment(ctx, payment.PaymentID)
	if err != nil {
		t.Fatalf("list apportions failed: %v", err)
	}
	if len(apportions) != 3 {
		t.Fatalf("expected 3 allocation rows, got %d", len(apportions))
	}
	total := decimal.Zero
	for _, apportion := range apportions {
		total = total.Add(apportion.ApportionAmount)
	}
	if !total.Equal(decimal.NewFromInt(120)) {
		t.Fatalf("allocations sum to %s, want 120", total)
	}

	group, err := module.Store.LoadGroupForUpdate(ctx, "2026-100001")
	if err != nil {
		t.Fatalf("load group failed: %v", err)
	}
	if !group.IsFullySettled() {
		t.Fatalf("group should be fully settled, total due %s", group.TotalAmountDue())
	}
}

func TestSubmitPBAPaymentReplaysStoredOutcome(t *testing.T) {
	module := newSettlementModule(application.Features{ApportionEnabled: true})
	ctx := context.Background()

	first, err := module.Handler.SubmitPBAPaymentHandler(ctx, "2026-100001", "idem-2", pbaRequest())
	if err != nil {
		t.Fatalf("first submission failed: %v", err)
	}
	second, err := module.Handler.SubmitPBAPaymentHandler(ctx, "2026-100001", "idem-2", pbaRequest())
	if err != nil {
		t.Fatalf("retry with same key failed: %v", err)
	}
	if !second.Replayed {
		t.Fatalf("expected replayed result on duplicate idempotency key")
	}
	if first.Data != second.Data {
		t.Fatalf("replay differs from original: %+v vs %+v", first.Data, second.Data)
	}

	payment, err := module.Store.GetPayment(ctx, first.Data.PaymentReference)
	if err != nil {
		t.Fatalf("get payment failed: %v", err)
	}
	apportions, _ := module.Store.ListApportionsByPayment(ctx, payment.PaymentID)
	if len(apportions) != 3 {
		t.Fatalf("replay must not duplicate allocation rows, got %d", len(apportions))
	}
}

func TestSubmitPBAPaymentRejectsPayloadDrift(t *testing.T) {
	module := newSettlementModule(application.Features{ApportionEnabled: true})
	ctx := context.Background()

	first, err := module.Handler.SubmitPBAPaymentHandler(ctx, "2026-100001", "idem-3", pbaRequest())
	if err != nil {
		t.Fatalf("first submission failed: %v", err)
	}
	payment, err := module.Store.GetPayment(ctx, first.Data.PaymentReference)
	if err != nil {
		t.Fatalf("get payment failed: %v", err)
	}
	before, _ := module.Store.ListApportionsByPayment(ctx, payment.PaymentID)

	drifted := pbaRequest()
	drifted.CustomerReference = "cust-ref-other"
	_, err = module.Handler.SubmitPBAPaymentHandler(ctx, "2026-100001", "idem-3", drifted)
	if !errors.Is(err, domainerrors.ErrIdempotencyConflict) {
		t.Fatalf("expected ErrIdempotencyConflict on payload drift, got %v", err)
	}

	// The rejected call must write nothing.
	if module.Store.PaymentCount() != 1 {
		t.Fatalf("conflicting call must not create payment rows, got %d", module.Store.PaymentCount())
	}
	after, _ := module.Store.ListApportionsByPayment(ctx, payment.PaymentID)
	if len(after) != len(before) {
		t.Fatalf("conflicting call must not create allocation rows: %d before, %d after", len(before), len(after))
	}
}

func TestSubmitPBAPaymentRejectsSettledRequestUnderNewKey(t *testing.T) {
	module := newSettlementModule(application.Features{ApportionEnabled: true})
	ctx := context.Background()

	if _, err := module.Handler.SubmitPBAPaymentHandler(ctx, "2026-100001", "idem-4", pbaRequest()); err != nil {
		t.Fatalf("first submission failed: %v", err)
	}
	_, err := module.Handler.SubmitPBAPaymentHandler(ctx, "2026-100001", "idem-4-other", pbaRequest())
	if !errors.Is(err, domainerrors.ErrServiceRequestAlreadyPaid) {
		t.Fatalf("expected ErrServiceRequestAlreadyPaid, got %v", err)
	}
}

func TestSubmitPBAPaymentCreditOnOneFeeDoesNotMaskAnother(t *testing.T) {
	module := newSettlementModule(application.Features{ApportionEnabled: true})
	ctx := context.Background()

	// One fee carries a retrospective-remission credit, the other still owes
	// its full amount.
	waived := seedFee("fee-a", 50)
	waived.NetAmount = decimal.Zero
	waived.AllocatedAmount = decimal.NewFromInt(50)
	waived.AmountDue = decimal.NewFromInt(-50)
	module.Store.SeedGroup(entities.ServiceRequest{
		GroupReference: "2026-100002",
		CCDCaseNumber:  "1111222233334444",
		Fees:           []entities.Fee{waived, seedFee("fee-b", 50)},
	})

	group, err := module.Store.LoadGroupForUpdate(ctx, "2026-100002")
	if err != nil {
		t.Fatalf("load group failed: %v", err)
	}
	if group.IsFullySettled() {
		t.Fatalf("a fee still owes, group must not read as settled")
	}

	req := pbaRequest()
	req.Amount = "100.00"
	resp, err := module.Handler.SubmitPBAPaymentHandler(ctx, "2026-100002", "idem-13", req)
	if err != nil {
		t.Fatalf("submission for the outstanding fee failed: %v", err)
	}
	if resp.Data.Status != string(entities.PaymentStatusSuccess) {
		t.Fatalf("payment status = %s, want Success", resp.Data.Status)
	}
}

func TestSubmitPBAPaymentStalePendingRecordIsSuperseded(t *testing.T) {
	module := newSettlementModule(application.Features{ApportionEnabled: true})
	ctx := context.Background()

	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	module.Store.FixedNow = start

	// A writer that dies after claiming the key leaves a Pending record.
	module.Store.LedgerErr = errors.New("connection reset by peer")
	if _, err := module.Handler.SubmitPBAPaymentHandler(ctx, "2026-100001", "idem-14", pbaRequest()); err == nil {
		t.Fatalf("expected the interrupted submission to fail")
	}

	// While the record is fresh the key reports an in-flight attempt.
	_, err := module.Handler.SubmitPBAPaymentHandler(ctx, "2026-100001", "idem-14", pbaRequest())
	if !errors.Is(err, domainerrors.ErrTryAgain) {
		t.Fatalf("expected ErrTryAgain while the record is fresh, got %v", err)
	}

	// Once the record is stale the same key runs the attempt again instead
	// of being blocked forever.
	module.Store.FixedNow = start.Add(3 * time.Minute)
	resp, err := module.Handler.SubmitPBAPaymentHandler(ctx, "2026-100001", "idem-14", pbaRequest())
	if err != nil {
		t.Fatalf("retry after stale pending record failed: %v", err)
	}
	if resp.Replayed {
		t.Fatalf("superseding a dead writer must re-run the attempt, not replay")
	}
	if resp.Data.Status != string(entities.PaymentStatusSuccess) {
		t.Fatalf("retried payment status = %s, want Success", resp.Data.Status)
	}
}

func TestSubmitPBAPaymentRejectsAmountMismatch(t *testing.T) {
	module := newSettlementModule(application.Features{ApportionEnabled: true})
	req := pbaRequest()
	req.Amount = "100.00"

	_, err := module.Handler.SubmitPBAPaymentHandler(context.Background(), "2026-100001", "idem-5", req)
	if !errors.Is(err, domainerrors.ErrAmountMismatch) {
		t.Fatalf("expected ErrAmountMismatch, got %v", err)
	}
}

func TestSubmitPBAPaymentRequiresIdempotencyKey(t *testing.T) {
	module := newSettlementModule(application.Features{ApportionEnabled: true})
	_, err := module.Handler.SubmitPBAPaymentHandler(context.Background(), "2026-100001", "", pbaRequest())
	if !errors.Is(err, domainerrors.ErrIdempotencyKeyMissing) {
		t.Fatalf("expected ErrIdempotencyKeyMissing, got %v", err)
	}
}

func TestSubmitPBAPaymentInsufficientFundsFailsWithoutAllocation(t *testing.T) {
	module := newSettlementModule(application.Features{ApportionEnabled: true})
	module.Store.RegisterAccount(ports.AccountInfo{
		AccountNumber:    "PBA0099999",
		Status:           ports.AccountStatusActive,
		AvailableBalance: decimal.NewFromInt(5),
	})
	req := pbaRequest()
	req.AccountNumber = "PBA0099999"
	ctx := context.Background()

	resp, err := module.Handler.SubmitPBAPaymentHandler(ctx, "2026-100001", "idem-6", req)
	if err != nil {
		t.Fatalf("business decline must be an outcome, not an error: %v", err)
	}
	if resp.Data.Status != string(entities.PaymentStatusFailed) {
		t.Fatalf("payment status = %s, want Failed", resp.Data.Status)
	}
	if resp.Data.ErrorCode != "CA-E0001" {
		t.Fatalf("error code = %s, want CA-E0001", resp.Data.ErrorCode)
	}

	payment, err := module.Store.GetPayment(ctx, resp.Data.PaymentReference)
	if err != nil {
		t.Fatalf("failed payment must still be recorded: %v", err)
	}
	apportions, _ := module.Store.ListApportionsByPayment(ctx, payment.PaymentID)
	if len(apportions) != 0 {
		t.Fatalf("failed payment must not allocate, got %d rows", len(apportions))
	}

	group, _ := module.Store.LoadGroupForUpdate(ctx, "2026-100001")
	if group.IsFullySettled() {
		t.Fatalf("group must stay unpaid after a declined payment")
	}
}

func TestSubmitPBAPaymentOnHoldAndDeletedAccounts(t *testing.T) {
	module := newSettlementModule(application.Features{ApportionEnabled: true})
	module.Store.RegisterAccount(ports.AccountInfo{
		AccountNumber:    "PBA0000001",
		Status:           ports.AccountStatusOnHold,
		AvailableBalance: decimal.NewFromInt(10000),
	})
	module.Store.RegisterAccount(ports.AccountInfo{
		AccountNumber:    "PBA0000002",
		Status:           ports.AccountStatusDeleted,
		AvailableBalance: decimal.NewFromInt(10000),
	})
	ctx := context.Background()

	onHold := pbaRequest()
	onHold.AccountNumber = "PBA0000001"
	resp, err := module.Handler.SubmitPBAPaymentHandler(ctx, "2026-100001", "idem-7", onHold)
	if err != nil {
		t.Fatalf("on-hold decline failed: %v", err)
	}
	if resp.Data.ErrorCode != "CA-E0003" {
		t.Fatalf("on-hold error code = %s, want CA-E0003", resp.Data.ErrorCode)
	}

	deleted := pbaRequest()
	deleted.AccountNumber = "PBA0000002"
	resp, err = module.Handler.SubmitPBAPaymentHandler(ctx, "2026-100001", "idem-8", deleted)
	if err != nil {
		t.Fatalf("deleted-account decline failed: %v", err)
	}
	if resp.Data.ErrorCode != "CA-E0004" {
		t.Fatalf("deleted-account error code = %s, want CA-E0004", resp.Data.ErrorCode)
	}
}

func TestSubmitPBAPaymentGatewayTimeoutIsRetryable(t *testing.T) {
	module := newSettlementModule(application.Features{ApportionEnabled: true})
	ctx := context.Background()

	module.Store.AccountErr = domainerrors.ErrGatewayTimeout
	_, err := module.Handler.SubmitPBAPaymentHandler(ctx, "2026-100001", "idem-9", pbaRequest())
	if !errors.Is(err, domainerrors.ErrGatewayTimeout) {
		t.Fatalf("expected ErrGatewayTimeout, got %v", err)
	}

	// The stored 504 outcome must allow the same key to run again.
	resp, err := module.Handler.SubmitPBAPaymentHandler(ctx, "2026-100001", "idem-9", pbaRequest())
	if err != nil {
		t.Fatalf("retry after timeout failed: %v", err)
	}
	if resp.Replayed {
		t.Fatalf("retry after a 504 must re-run the attempt, not replay")
	}
	if resp.Data.Status != string(entities.PaymentStatusSuccess) {
		t.Fatalf("retried payment status = %s, want Success", resp.Data.Status)
	}
}

func TestSubmitPBAPaymentWritesCallbackOutboxOnce(t *testing.T) {
	module := newSettlementModule(application.Features{ApportionEnabled: true})
	ctx := context.Background()

	if _, err := module.Handler.SubmitPBAPaymentHandler(ctx, "2026-100001", "idem-10", pbaRequest()); err != nil {
		t.Fatalf("submission failed: %v", err)
	}
	if _, err := module.Handler.SubmitPBAPaymentHandler(ctx, "2026-100001", "idem-10", pbaRequest()); err != nil {
		t.Fatalf("replay failed: %v", err)
	}

	pending, err := module.Store.ListPendingOutbox(ctx, 50)
	if err != nil {
		t.Fatalf("list outbox failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected exactly one callback outbox row, got %d", len(pending))
	}

	var envelope map[string]any
	if err := json.Unmarshal(pending[0].Payload, &envelope); err != nil {
		t.Fatalf("decode outbox envelope: %v", err)
	}
	if envelope["event_type"] != "servicerequest.status_changed" {
		t.Fatalf("unexpected event_type: %v", envelope["event_type"])
	}
	data, _ := envelope["data"].(map[string]any)
	if data["service_request_status"] != "Paid" {
		t.Fatalf("callback status = %v, want Paid", data["service_request_status"])
	}
	if data["callback_url"] != "https://ccd.local/callbacks" {
		t.Fatalf("callback_url = %v", data["callback_url"])
	}
}

func TestCallbackRelayPublishesPendingRows(t *testing.T) {
	module := newSettlementModule(application.Features{ApportionEnabled: true})
	ctx := context.Background()

	if _, err := module.Handler.SubmitPBAPaymentHandler(ctx, "2026-100001", "idem-11", pbaRequest()); err != nil {
		t.Fatalf("submission failed: %v", err)
	}

	if err := module.Relay.RunOnce(ctx); err != nil {
		t.Fatalf("relay run failed: %v", err)
	}
	published := module.Store.PublishedEvents()
	if len(published) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(published))
	}
	if published[0].EventType != "servicerequest.status_changed" {
		t.Fatalf("unexpected published event type: %s", published[0].EventType)
	}

	pending, _ := module.Store.ListPendingOutbox(ctx, 50)
	if len(pending) != 0 {
		t.Fatalf("outbox should be drained, %d rows left", len(pending))
	}
}

func TestApportionFlagDisabledSkipsAllocation(t *testing.T) {
	module := newSettlementModule(application.Features{ApportionEnabled: false})
	ctx := context.Background()

	resp, err := module.Handler.SubmitPBAPaymentHandler(ctx, "2026-100001", "idem-12", pbaRequest())
	if err != nil {
		t.Fatalf("submission failed: %v", err)
	}
	payment, _ := module.Store.GetPayment(ctx, resp.Data.PaymentReference)
	apportions, _ := module.Store.ListApportionsByPayment(ctx, payment.PaymentID)
	if len(apportions) != 0 {
		t.Fatalf("apportionment disabled, got %d allocation rows", len(apportions))
	}
}

func TestCardPaymentLifecycleSettlesOnGatewaySuccess(t *testing.T) {
	module := newSettlementModule(application.Features{ApportionEnabled: true})
	ctx := context.Background()

	created, err := module.Handler.CreateCardPaymentHandler(ctx, "2026-100001", settlementhttp.CardPaymentRequest{
		Amount:    "120.00",
		Currency:  "GBP",
		ReturnURL: "https://service.local/return",
	})
	if err != nil {
		t.Fatalf("card payment create failed: %v", err)
	}
	if created.Data.Status != string(entities.PaymentStatusInitiated) {
		t.Fatalf("card payment status = %s, want Initiated", created.Data.Status)
	}
	if created.NextURL == "" {
		t.Fatalf("expected a gateway redirect url")
	}

	module.Store.SetGatewayStatus(created.Data.ExternalReference, "success")

	refreshed, err := module.Handler.RefreshPaymentStatusHandler(ctx, created.Data.PaymentReference)
	if err != nil {
		t.Fatalf("status refresh failed: %v", err)
	}
	if refreshed.Data.Status != string(entities.PaymentStatusSuccess) {
		t.Fatalf("refreshed status = %s, want Success", refreshed.Data.Status)
	}
	if len(refreshed.Apportions) != 3 {
		t.Fatalf("expected 3 allocation rows after settlement, got %d", len(refreshed.Apportions))
	}

	// A second refresh of a terminal payment returns the stored allocations
	// without re-running the engine.
	again, err := module.Handler.RefreshPaymentStatusHandler(ctx, created.Data.PaymentReference)
	if err != nil {
		t.Fatalf("second refresh failed: %v", err)
	}
	if len(again.Apportions) != 3 {
		t.Fatalf("terminal refresh must not duplicate allocations, got %d", len(again.Apportions))
	}
}

func TestCancelPaymentGatedByFeatureFlag(t *testing.T) {
	ctx := context.Background()

	disabled := newSettlementModule(application.Features{ApportionEnabled: true})
	created, err := disabled.Handler.CreateCardPaymentHandler(ctx, "2026-100001", settlementhttp.CardPaymentRequest{
		Amount:   "120.00",
		Currency: "GBP",
	})
	if err != nil {
		t.Fatalf("card payment create failed: %v", err)
	}
	if _, err := disabled.Handler.CancelPaymentHandler(ctx, created.Data.PaymentReference); !errors.Is(err, domainerrors.ErrCancelDisabled) {
		t.Fatalf("expected ErrCancelDisabled, got %v", err)
	}

	enabled := newSettlementModule(application.Features{ApportionEnabled: true, CancelEnabled: true})
	created, err = enabled.Handler.CreateCardPaymentHandler(ctx, "2026-100001", settlementhttp.CardPaymentRequest{
		Amount:   "120.00",
		Currency: "GBP",
	})
	if err != nil {
		t.Fatalf("card payment create failed: %v", err)
	}
	cancelled, err := enabled.Handler.CancelPaymentHandler(ctx, created.Data.PaymentReference)
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if cancelled.Data.Status != string(entities.PaymentStatusCancelled) {
		t.Fatalf("status = %s, want Cancelled", cancelled.Data.Status)
	}
}

func TestCancelPaymentGatewayFailureLeavesStateUnchanged(t *testing.T) {
	module := newSettlementModule(application.Features{ApportionEnabled: true, CancelEnabled: true})
	ctx := context.Background()

	created, err := module.Handler.CreateCardPaymentHandler(ctx, "2026-100001", settlementhttp.CardPaymentRequest{
		Amount:   "120.00",
		Currency: "GBP",
	})
	if err != nil {
		t.Fatalf("card payment create failed: %v", err)
	}

	module.Store.GatewayErr = domainerrors.ErrGatewayUnavailable
	if _, err := module.Handler.CancelPaymentHandler(ctx, created.Data.PaymentReference); !errors.Is(err, domainerrors.ErrGatewayUnavailable) {
		t.Fatalf("expected ErrGatewayUnavailable, got %v", err)
	}

	payment, _ := module.Store.GetPayment(ctx, created.Data.PaymentReference)
	if payment.Status != entities.PaymentStatusInitiated {
		t.Fatalf("failed cancel must leave the payment Initiated, got %s", payment.Status)
	}
}
