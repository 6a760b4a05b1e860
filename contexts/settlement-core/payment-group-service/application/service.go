package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"courtpay/contexts/settlement-core/payment-group-service/domain/entities"
	domainerrors "courtpay/contexts/settlement-core/payment-group-service/domain/errors"
	"courtpay/contexts/settlement-core/payment-group-service/ports"

	"github.com/shopspring/decimal"
)

type Service struct {
	Repo      ports.Repository
	OrgLookup ports.OrgLookupClient
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Logger    *slog.Logger
}

func (s Service) CreateGroup(ctx context.Context, input ports.CreateGroupInput) (entities.PaymentGroup, error) {
	if len(input.Fees) == 0 {
		return entities.PaymentGroup{}, domainerrors.ErrInvalidGroupInput
	}
	if strings.TrimSpace(input.CCDCaseNumber) == "" && strings.TrimSpace(input.CaseReference) == "" {
		return entities.PaymentGroup{}, domainerrors.ErrMissingCaseIdentifiers
	}
	seen := make(map[string]struct{}, len(input.Fees))
	for _, fee := range input.Fees {
		code := strings.TrimSpace(fee.Code)
		if code == "" || fee.FeeAmount.Sign() < 0 {
			return entities.PaymentGroup{}, domainerrors.ErrInvalidGroupInput
		}
		if _, dup := seen[code]; dup {
			return entities.PaymentGroup{}, domainerrors.ErrDuplicateFeeCode
		}
		seen[code] = struct{}{}
	}

	// Case type resolution happens before any ledger mutation.
	serviceCode := ""
	if strings.TrimSpace(input.CaseType) != "" && s.OrgLookup != nil {
		resolved, err := s.OrgLookup.ServiceCodeForCaseType(ctx, strings.TrimSpace(input.CaseType))
		if err != nil {
			return entities.PaymentGroup{}, err
		}
		serviceCode = resolved
	}

	now := s.now()
	groupID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return entities.PaymentGroup{}, err
	}
	group := entities.PaymentGroup{
		GroupReference: groupReference(now, groupID),
		CCDCaseNumber:  strings.TrimSpace(input.CCDCaseNumber),
		CaseReference:  strings.TrimSpace(input.CaseReference),
		ServiceCode:    serviceCode,
		CaseType:       strings.TrimSpace(input.CaseType),
		CallbackURL:    strings.TrimSpace(input.CallbackURL),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	for _, feeInput := range input.Fees {
		feeID, err := s.IDGen.NewID(ctx)
		if err != nil {
			return entities.PaymentGroup{}, err
		}
		group.Fees = append(group.Fees, buildFee(feeID, group, feeInput, now))
	}

	if err := s.Repo.CreateGroup(ctx, group); err != nil {
		return entities.PaymentGroup{}, err
	}

	resolveLogger(s.Logger).Info("payment group created",
		"event", "payment_group_created",
		"module", "settlement-core/payment-group-service",
		"layer", "application",
		"group_reference", group.GroupReference,
		"fee_count", len(group.Fees),
	)
	return group, nil
}

func (s Service) GetGroup(ctx context.Context, groupReference string) (entities.PaymentGroup, error) {
	if strings.TrimSpace(groupReference) == "" {
		return entities.PaymentGroup{}, domainerrors.ErrInvalidGroupInput
	}
	return s.Repo.GetGroup(ctx, strings.TrimSpace(groupReference))
}

// AppendFee adds a fee to an existing group. Fees are append-only: existing
// fee order never changes, so allocations stay deterministic.
func (s Service) AppendFee(ctx context.Context, groupReference string, input ports.FeeInput) (entities.Fee, error) {
	group, err := s.GetGroup(ctx, groupReference)
	if err != nil {
		return entities.Fee{}, err
	}
	code := strings.TrimSpace(input.Code)
	if code == "" || input.FeeAmount.Sign() < 0 {
		return entities.Fee{}, domainerrors.ErrInvalidGroupInput
	}
	for _, fee := range group.Fees {
		if fee.Code == code {
			return entities.Fee{}, domainerrors.ErrDuplicateFeeCode
		}
	}

	now := s.now()
	feeID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return entities.Fee{}, err
	}
	fee := buildFee(feeID, group, input, now)
	if err := s.Repo.AppendFee(ctx, fee); err != nil {
		return entities.Fee{}, err
	}
	return fee, nil
}

// CreateRemission applies a Help With Fees waiver to one fee and recomputes
// its balances immediately. A waiver on an already-paid fee is retrospective
// and may drive AmountDue negative, surfacing a refundable credit.
func (s Service) CreateRemission(ctx context.Context, groupReference string, input ports.RemissionInput) (entities.Remission, entities.Fee, error) {
	group, err := s.GetGroup(ctx, groupReference)
	if err != nil {
		return entities.Remission{}, entities.Fee{}, err
	}

	fee, err := findFee(group, input.FeeID, input.FeeCode)
	if err != nil {
		return entities.Remission{}, entities.Fee{}, err
	}

	hwf := input.HwfAmount
	if hwf.Sign() <= 0 || hwf.GreaterThan(fee.CalculatedAmount) || hwf.GreaterThan(fee.NetAmount) {
		return entities.Remission{}, entities.Fee{}, domainerrors.ErrInvalidWaiverAmount
	}

	now := s.now()
	remissionID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return entities.Remission{}, entities.Fee{}, err
	}
	remission := entities.Remission{
		RemissionReference: remissionReference(remissionID),
		GroupReference:     group.GroupReference,
		FeeID:              fee.FeeID,
		FeeCode:            fee.Code,
		HwfReference:       strings.TrimSpace(input.HwfReference),
		HwfAmount:          hwf,
		BeneficiaryName:    strings.TrimSpace(input.BeneficiaryName),
		Retrospective:      input.Retrospective || fee.AllocatedAmount.Sign() > 0,
		CreatedAt:          now,
	}

	fee.NetAmount = fee.NetAmount.Sub(hwf)
	fee.AmountDue = fee.NetAmount.Sub(fee.AllocatedAmount)
	fee.UpdatedAt = now

	if err := s.Repo.SaveRemission(ctx, remission, fee); err != nil {
		return entities.Remission{}, entities.Fee{}, err
	}

	resolveLogger(s.Logger).Info("remission applied",
		"event", "remission_applied",
		"module", "settlement-core/payment-group-service",
		"layer", "application",
		"group_reference", group.GroupReference,
		"remission_reference", remission.RemissionReference,
		"fee_code", fee.Code,
		"hwf_amount", hwf.String(),
		"retrospective", remission.Retrospective,
	)
	return remission, fee, nil
}

func (s Service) GetRemission(ctx context.Context, remissionReference string) (entities.Remission, error) {
	if strings.TrimSpace(remissionReference) == "" {
		return entities.Remission{}, domainerrors.ErrRemissionNotFound
	}
	return s.Repo.GetRemission(ctx, strings.TrimSpace(remissionReference))
}

func buildFee(feeID string, group entities.PaymentGroup, input ports.FeeInput, now time.Time) entities.Fee {
	volume := input.Volume
	if volume <= 0 {
		volume = 1
	}
	calculated := input.CalculatedAmount
	if calculated.Sign() == 0 {
		calculated = input.FeeAmount.Mul(decimal.NewFromInt(int64(volume)))
	}
	ccd := strings.TrimSpace(input.CCDCaseNumber)
	if ccd == "" {
		ccd = group.CCDCaseNumber
	}
	caseRef := strings.TrimSpace(input.CaseReference)
	if caseRef == "" {
		caseRef = group.CaseReference
	}
	return entities.Fee{
		FeeID:            feeID,
		GroupReference:   group.GroupReference,
		Code:             strings.TrimSpace(input.Code),
		Version:          strings.TrimSpace(input.Version),
		Volume:           volume,
		FeeAmount:        input.FeeAmount,
		CalculatedAmount: calculated,
		NetAmount:        calculated,
		AmountDue:        calculated,
		AllocatedAmount:  decimal.Zero,
		CCDCaseNumber:    ccd,
		CaseReference:    caseRef,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func findFee(group entities.PaymentGroup, feeID string, feeCode string) (entities.Fee, error) {
	feeID = strings.TrimSpace(feeID)
	feeCode = strings.TrimSpace(feeCode)
	for _, fee := range group.Fees {
		if feeID != "" && fee.FeeID == feeID {
			return fee, nil
		}
		if feeID == "" && feeCode != "" && fee.Code == feeCode {
			return fee, nil
		}
	}
	return entities.Fee{}, domainerrors.ErrFeeNotFound
}

func groupReference(now time.Time, id string) string {
	return fmt.Sprintf("%d-%s", now.Year(), shortID(id))
}

func remissionReference(id string) string {
	return "RM-" + shortID(id)
}

func shortID(id string) string {
	compact := strings.ReplaceAll(strings.TrimSpace(id), "-", "")
	if len(compact) > 16 {
		return compact[:16]
	}
	return compact
}

func (s Service) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now().UTC()
}

func resolveLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}
