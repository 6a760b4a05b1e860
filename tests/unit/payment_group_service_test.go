package unit

import (
	"context"
	"errors"
	"testing"

	paymentgroupservice "courtpay/contexts/settlement-core/payment-group-service"
	domainerrors "courtpay/contexts/settlement-core/payment-group-service/domain/errors"
	grouphttp "courtpay/contexts/settlement-core/payment-group-service/transport/http"

	"github.com/shopspring/decimal"
)

func newGroupModule() paymentgroupservice.Module {
	module := paymentgroupservice.NewInMemoryModule(nil)
	module.Store.RegisterServiceCode("divorce", "ABA1")
	return module
}

func createGroupRequest() grouphttp.CreateGroupRequest {
	return grouphttp.CreateGroupRequest{
		CCDCaseNumber: "1111222233334444",
		CaseReference: "case-ref-1",
		CaseType:      "divorce",
		CallbackURL:   "https://ccd.local/callbacks",
		Fees: []grouphttp.FeeRequest{
			{Code: "FEE0001", Version: "1", FeeAmount: "30.00"},
			{Code: "FEE0002", Version: "4", Volume: 2, FeeAmount: "20.00"},
		},
	}
}

func TestCreateGroupComputesFeeBalances(t *testing.T) {
	module := newGroupModule()

	resp, err := module.Handler.CreateGroupHandler(context.Background(), createGroupRequest())
	if err != nil {
		t.Fatalf("create group failed: %v", err)
	}
	if resp.Data.GroupReference == "" {
		t.Fatalf("expected a group reference")
	}
	if resp.Data.ServiceCode != "ABA1" {
		t.Fatalf("service code = %s, want ABA1 from case type lookup", resp.Data.ServiceCode)
	}
	if len(resp.Data.Fees) != 2 {
		t.Fatalf("expected 2 fees, got %d", len(resp.Data.Fees))
	}

	// Volume defaults to 1; calculated = fee amount * volume, and the new
	// fee opens with net = due = calculated, nothing allocated.
	first := resp.Data.Fees[0]
	if first.CalculatedAmount != "30.00" || first.NetAmount != "30.00" || first.AmountDue != "30.00" {
		t.Fatalf("first fee balances = %s/%s/%s, want 30.00 across", first.CalculatedAmount, first.NetAmount, first.AmountDue)
	}
	second := resp.Data.Fees[1]
	if second.CalculatedAmount != "40.00" {
		t.Fatalf("second fee calculated = %s, want 40.00 (20.00 x 2)", second.CalculatedAmount)
	}
	if first.AllocatedAmount != "0.00" {
		t.Fatalf("new fee allocated = %s, want 0.00", first.AllocatedAmount)
	}
}

func TestCreateGroupRejectsDuplicateFeeCodes(t *testing.T) {
	module := newGroupModule()
	req := createGroupRequest()
	req.Fees = append(req.Fees, grouphttp.FeeRequest{Code: "FEE0001", Version: "2", FeeAmount: "10.00"})

	_, err := module.Handler.CreateGroupHandler(context.Background(), req)
	if !errors.Is(err, domainerrors.ErrDuplicateFeeCode) {
		t.Fatalf("expected ErrDuplicateFeeCode, got %v", err)
	}
}

func TestCreateGroupRequiresCaseIdentifiers(t *testing.T) {
	module := newGroupModule()
	req := createGroupRequest()
	req.CCDCaseNumber = ""
	req.CaseReference = ""

	_, err := module.Handler.CreateGroupHandler(context.Background(), req)
	if !errors.Is(err, domainerrors.ErrMissingCaseIdentifiers) {
		t.Fatalf("expected ErrMissingCaseIdentifiers, got %v", err)
	}
}

func TestCreateGroupUnknownCaseTypeFailsBeforeMutation(t *testing.T) {
	module := newGroupModule()
	req := createGroupRequest()
	req.CaseType = "unknown-case-type"

	_, err := module.Handler.CreateGroupHandler(context.Background(), req)
	if !errors.Is(err, domainerrors.ErrNoServiceFound) {
		t.Fatalf("expected ErrNoServiceFound, got %v", err)
	}
}

func TestAppendFeeKeepsOrderAndRejectsDuplicates(t *testing.T) {
	module := newGroupModule()
	ctx := context.Background()

	created, err := module.Handler.CreateGroupHandler(ctx, createGroupRequest())
	if err != nil {
		t.Fatalf("create group failed: %v", err)
	}
	ref := created.Data.GroupReference

	if _, err := module.Handler.AppendFeeHandler(ctx, ref, grouphttp.FeeRequest{
		Code: "FEE0003", Version: "1", FeeAmount: "50.00",
	}); err != nil {
		t.Fatalf("append fee failed: %v", err)
	}

	_, err = module.Handler.AppendFeeHandler(ctx, ref, grouphttp.FeeRequest{
		Code: "FEE0001", Version: "1", FeeAmount: "5.00",
	})
	if !errors.Is(err, domainerrors.ErrDuplicateFeeCode) {
		t.Fatalf("expected ErrDuplicateFeeCode, got %v", err)
	}

	group, err := module.Handler.GetGroupHandler(ctx, ref)
	if err != nil {
		t.Fatalf("get group failed: %v", err)
	}
	codes := make([]string, 0, len(group.Data.Fees))
	for _, fee := range group.Data.Fees {
		codes = append(codes, fee.Code)
	}
	want := []string{"FEE0001", "FEE0002", "FEE0003"}
	for i, code := range want {
		if codes[i] != code {
			t.Fatalf("fee order = %v, want %v", codes, want)
		}
	}
}

func TestCreateRemissionReducesNetAndDue(t *testing.T) {
	module := newGroupModule()
	ctx := context.Background()

	created, err := module.Handler.CreateGroupHandler(ctx, createGroupRequest())
	if err != nil {
		t.Fatalf("create group failed: %v", err)
	}

	resp, err := module.Handler.CreateRemissionHandler(ctx, created.Data.GroupReference, grouphttp.CreateRemissionRequest{
		FeeCode:      "FEE0001",
		HwfReference: "HWF-A1B-23C",
		HwfAmount:    "10.00",
	})
	if err != nil {
		t.Fatalf("create remission failed: %v", err)
	}
	if resp.Data.RemissionReference == "" {
		t.Fatalf("expected a remission reference")
	}
	if resp.Fee.NetAmount != "20.00" || resp.Fee.AmountDue != "20.00" {
		t.Fatalf("fee after waiver = net %s due %s, want 20.00 both", resp.Fee.NetAmount, resp.Fee.AmountDue)
	}
	if resp.Fee.CalculatedAmount != "30.00" {
		t.Fatalf("calculated must not change on waiver, got %s", resp.Fee.CalculatedAmount)
	}
	if resp.Data.Retrospective {
		t.Fatalf("waiver on an unallocated fee must not be retrospective")
	}

	fetched, err := module.Handler.GetRemissionHandler(ctx, resp.Data.RemissionReference)
	if err != nil {
		t.Fatalf("get remission failed: %v", err)
	}
	if fetched.Data.HwfAmount != "10.00" {
		t.Fatalf("stored hwf amount = %s, want 10.00", fetched.Data.HwfAmount)
	}
}

func TestCreateRemissionOnPaidFeeIsRetrospective(t *testing.T) {
	module := newGroupModule()
	ctx := context.Background()

	created, err := module.Handler.CreateGroupHandler(ctx, createGroupRequest())
	if err != nil {
		t.Fatalf("create group failed: %v", err)
	}
	ref := created.Data.GroupReference
	module.Store.AllocateFee(ref, "FEE0001", decimal.NewFromInt(30))

	// Full waiver of an already-settled fee surfaces a refundable credit.
	resp, err := module.Handler.CreateRemissionHandler(ctx, ref, grouphttp.CreateRemissionRequest{
		FeeCode:      "FEE0001",
		HwfReference: "HWF-D4E-56F",
		HwfAmount:    "30.00",
	})
	if err != nil {
		t.Fatalf("create remission failed: %v", err)
	}
	if !resp.Data.Retrospective {
		t.Fatalf("waiver on an allocated fee must be retrospective")
	}
	if resp.Fee.NetAmount != "0.00" {
		t.Fatalf("net after full waiver = %s, want 0.00", resp.Fee.NetAmount)
	}
	if resp.Fee.AmountDue != "-30.00" {
		t.Fatalf("due after retrospective full waiver = %s, want -30.00 credit", resp.Fee.AmountDue)
	}
	if resp.Fee.CalculatedAmount != "30.00" {
		t.Fatalf("calculated must not change on waiver, got %s", resp.Fee.CalculatedAmount)
	}
}

func TestCreateRemissionRejectsInvalidWaivers(t *testing.T) {
	module := newGroupModule()
	ctx := context.Background()

	created, err := module.Handler.CreateGroupHandler(ctx, createGroupRequest())
	if err != nil {
		t.Fatalf("create group failed: %v", err)
	}
	ref := created.Data.GroupReference

	// Waiver above the calculated amount.
	_, err = module.Handler.CreateRemissionHandler(ctx, ref, grouphttp.CreateRemissionRequest{
		FeeCode: "FEE0001", HwfAmount: "30.01",
	})
	if !errors.Is(err, domainerrors.ErrInvalidWaiverAmount) {
		t.Fatalf("expected ErrInvalidWaiverAmount above calculated, got %v", err)
	}

	// Non-positive waiver.
	_, err = module.Handler.CreateRemissionHandler(ctx, ref, grouphttp.CreateRemissionRequest{
		FeeCode: "FEE0001", HwfAmount: "0.00",
	})
	if !errors.Is(err, domainerrors.ErrInvalidWaiverAmount) {
		t.Fatalf("expected ErrInvalidWaiverAmount at zero, got %v", err)
	}

	// Unknown fee.
	_, err = module.Handler.CreateRemissionHandler(ctx, ref, grouphttp.CreateRemissionRequest{
		FeeCode: "FEE9999", HwfAmount: "5.00",
	})
	if !errors.Is(err, domainerrors.ErrFeeNotFound) {
		t.Fatalf("expected ErrFeeNotFound, got %v", err)
	}

	// Stacked waivers may not push net below zero.
	if _, err := module.Handler.CreateRemissionHandler(ctx, ref, grouphttp.CreateRemissionRequest{
		FeeCode: "FEE0001", HwfAmount: "25.00",
	}); err != nil {
		t.Fatalf("first waiver failed: %v", err)
	}
	_, err = module.Handler.CreateRemissionHandler(ctx, ref, grouphttp.CreateRemissionRequest{
		FeeCode: "FEE0001", HwfAmount: "10.00",
	})
	if !errors.Is(err, domainerrors.ErrInvalidWaiverAmount) {
		t.Fatalf("expected ErrInvalidWaiverAmount on stacked waiver, got %v", err)
	}
}
