package httpadapter

import (
	"context"
	"log/slog"

	"courtpay/contexts/settlement-core/payment-group-service/application"
	"courtpay/contexts/settlement-core/payment-group-service/domain/entities"
	domainerrors "courtpay/contexts/settlement-core/payment-group-service/domain/errors"
	"courtpay/contexts/settlement-core/payment-group-service/ports"
	httptransport "courtpay/contexts/settlement-core/payment-group-service/transport/http"

	"github.com/shopspring/decimal"
)

type Handler struct {
	Service application.Service
	Logger  *slog.Logger
}

func (h Handler) CreateGroupHandler(ctx context.Context, req httptransport.CreateGroupRequest) (httptransport.GroupResponse, error) {
	input := ports.CreateGroupInput{
		CCDCaseNumber: req.CCDCaseNumber,
		CaseReference: req.CaseReference,
		CaseType:      req.CaseType,
		CallbackURL:   req.CallbackURL,
	}
	for _, fee := range req.Fees {
		feeInput, err := toFeeInput(fee)
		if err != nil {
			return httptransport.GroupResponse{}, err
		}
		input.Fees = append(input.Fees, feeInput)
	}

	group, err := h.Service.CreateGroup(ctx, input)
	if err != nil {
		return httptransport.GroupResponse{}, err
	}
	return httptransport.GroupResponse{
		Status: "success",
		Data:   toGroupDTO(group),
	}, nil
}

func (h Handler) GetGroupHandler(ctx context.Context, groupReference string) (httptransport.GroupResponse, error) {
	group, err := h.Service.GetGroup(ctx, groupReference)
	if err != nil {
		return httptransport.GroupResponse{}, err
	}
	return httptransport.GroupResponse{
		Status: "success",
		Data:   toGroupDTO(group),
	}, nil
}

func (h Handler) AppendFeeHandler(ctx context.Context, groupReference string, req httptransport.FeeRequest) (httptransport.FeeResponse, error) {
	feeInput, err := toFeeInput(req)
	if err != nil {
		return httptransport.FeeResponse{}, err
	}
	fee, err := h.Service.AppendFee(ctx, groupReference, feeInput)
	if err != nil {
		return httptransport.FeeResponse{}, err
	}
	return httptransport.FeeResponse{
		Status: "success",
		Data:   toFeeDTO(fee),
	}, nil
}

func (h Handler) CreateRemissionHandler(ctx context.Context, groupReference string, req httptransport.CreateRemissionRequest) (httptransport.RemissionResponse, error) {
	hwfAmount, err := decimal.NewFromString(req.HwfAmount)
	if err != nil {
		return httptransport.RemissionResponse{}, domainerrors.ErrInvalidWaiverAmount
	}
	remission, fee, err := h.Service.CreateRemission(ctx, groupReference, ports.RemissionInput{
		FeeID:           req.FeeID,
		FeeCode:         req.FeeCode,
		HwfReference:    req.HwfReference,
		HwfAmount:       hwfAmount,
		BeneficiaryName: req.BeneficiaryName,
		Retrospective:   req.Retrospective,
	})
	if err != nil {
		return httptransport.RemissionResponse{}, err
	}
	return httptransport.RemissionResponse{
		Status: "success",
		Data:   toRemissionDTO(remission),
		Fee:    toFeeDTO(fee),
	}, nil
}

func (h Handler) GetRemissionHandler(ctx context.Context, remissionReference string) (httptransport.RemissionResponse, error) {
	remission, err := h.Service.GetRemission(ctx, remissionReference)
	if err != nil {
		return httptransport.RemissionResponse{}, err
	}
	return httptransport.RemissionResponse{
		Status: "success",
		Data:   toRemissionDTO(remission),
	}, nil
}

func toFeeInput(req httptransport.FeeRequest) (ports.FeeInput, error) {
	feeAmount, err := decimal.NewFromString(req.FeeAmount)
	if err != nil {
		return ports.FeeInput{}, domainerrors.ErrInvalidGroupInput
	}
	calculated := decimal.Zero
	if req.CalculatedAmount != "" {
		calculated, err = decimal.NewFromString(req.CalculatedAmount)
		if err != nil {
			return ports.FeeInput{}, domainerrors.ErrInvalidGroupInput
		}
	}
	return ports.FeeInput{
		Code:             req.Code,
		Version:          req.Version,
		Volume:           req.Volume,
		FeeAmount:        feeAmount,
		CalculatedAmount: calculated,
		CCDCaseNumber:    req.CCDCaseNumber,
		CaseReference:    req.CaseReference,
	}, nil
}

func toGroupDTO(group entities.PaymentGroup) httptransport.GroupDTO {
	dto := httptransport.GroupDTO{
		GroupReference: group.GroupReference,
		CCDCaseNumber:  group.CCDCaseNumber,
		CaseReference:  group.CaseReference,
		ServiceCode:    group.ServiceCode,
		CallbackURL:    group.CallbackURL,
		Fees:           make([]httptransport.FeeDTO, 0, len(group.Fees)),
	}
	for _, fee := range group.Fees {
		dto.Fees = append(dto.Fees, toFeeDTO(fee))
	}
	return dto
}

func toFeeDTO(fee entities.Fee) httptransport.FeeDTO {
	return httptransport.FeeDTO{
		FeeID:            fee.FeeID,
		Code:             fee.Code,
		Version:          fee.Version,
		Volume:           fee.Volume,
		CalculatedAmount: fee.CalculatedAmount.StringFixed(2),
		NetAmount:        fee.NetAmount.StringFixed(2),
		AmountDue:        fee.AmountDue.StringFixed(2),
		AllocatedAmount:  fee.AllocatedAmount.StringFixed(2),
		CCDCaseNumber:    fee.CCDCaseNumber,
		CaseReference:    fee.CaseReference,
	}
}

func toRemissionDTO(remission entities.Remission) httptransport.RemissionDTO {
	return httptransport.RemissionDTO{
		RemissionReference: remission.RemissionReference,
		GroupReference:     remission.GroupReference,
		FeeID:              remission.FeeID,
		FeeCode:            remission.FeeCode,
		HwfReference:       remission.HwfReference,
		HwfAmount:          remission.HwfAmount.StringFixed(2),
		Retrospective:      remission.Retrospective,
	}
}
