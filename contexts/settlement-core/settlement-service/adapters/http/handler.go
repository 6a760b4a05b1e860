package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"courtpay/contexts/settlement-core/settlement-service/application"
	"courtpay/contexts/settlement-core/settlement-service/domain/entities"
	domainerrors "courtpay/contexts/settlement-core/settlement-service/domain/errors"
	"courtpay/contexts/settlement-core/settlement-service/ports"
	httptransport "courtpay/contexts/settlement-core/settlement-service/transport/http"

	"github.com/shopspring/decimal"
)

type Handler struct {
	Service application.Service
	Logger  *slog.Logger
}

func (h Handler) SubmitPBAPaymentHandler(
	ctx context.Context,
	serviceRequestReference string,
	idempotencyKey string,
	req httptransport.PBAPaymentRequest,
) (httptransport.PBAPaymentResponse, error) {
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return httptransport.PBAPaymentResponse{}, domainerrors.ErrInvalidPaymentInput
	}
	outcome, replayed, err := h.Service.SubmitPBAPayment(ctx, serviceRequestReference, idempotencyKey, ports.PBAPaymentInput{
		Amount:            amount,
		Currency:          req.Currency,
		PBAAccountNumber:  req.AccountNumber,
		CustomerReference: req.CustomerReference,
		OrganisationName:  req.OrganisationName,
	})
	if err != nil {
		return httptransport.PBAPaymentResponse{}, err
	}
	return httptransport.PBAPaymentResponse{
		Status:   "success",
		Replayed: replayed,
		Data:     toOutcomeDTO(outcome),
	}, nil
}

func (h Handler) CreateCardPaymentHandler(
	ctx context.Context,
	serviceRequestReference string,
	req httptransport.CardPaymentRequest,
) (httptransport.CardPaymentResponse, error) {
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return httptransport.CardPaymentResponse{}, domainerrors.ErrInvalidPaymentInput
	}
	payment, nextURL, err := h.Service.CreateCardPayment(ctx, serviceRequestReference, ports.CardPaymentInput{
		Amount:    amount,
		Currency:  req.Currency,
		ReturnURL: req.ReturnURL,
		Language:  req.Language,
	})
	if err != nil {
		return httptransport.CardPaymentResponse{}, err
	}
	return httptransport.CardPaymentResponse{
		Status:  "success",
		NextURL: nextURL,
		Data:    toPaymentDTO(payment),
	}, nil
}

func (h Handler) GetPaymentHandler(
	ctx context.Context,
	paymentReference string,
) (httptransport.PaymentResponse, error) {
	payment, err := h.Service.GetPayment(ctx, paymentReference)
	if err != nil {
		return httptransport.PaymentResponse{}, err
	}
	return httptransport.PaymentResponse{
		Status: "success",
		Data:   toPaymentDTO(payment),
	}, nil
}

func (h Handler) RefreshPaymentStatusHandler(
	ctx context.Context,
	paymentReference string,
) (httptransport.RefreshPaymentResponse, error) {
	outcome, apportions, err := h.Service.RefreshPaymentStatus(ctx, paymentReference)
	if err != nil {
		return httptransport.RefreshPaymentResponse{}, err
	}
	resp := httptransport.RefreshPaymentResponse{
		Status:     "success",
		Data:       toOutcomeDTO(outcome),
		Apportions: make([]httptransport.ApportionDTO, 0, len(apportions)),
	}
	for _, apportion := range apportions {
		resp.Apportions = append(resp.Apportions, toApportionDTO(apportion))
	}
	return resp, nil
}

func (h Handler) CancelPaymentHandler(
	ctx context.Context,
	paymentReference string,
) (httptransport.PaymentResponse, error) {
	payment, err := h.Service.CancelPayment(ctx, paymentReference)
	if err != nil {
		return httptransport.PaymentResponse{}, err
	}
	return httptransport.PaymentResponse{
		Status: "success",
		Data:   toPaymentDTO(payment),
	}, nil
}

func (h Handler) ListAllocationsHandler(
	ctx context.Context,
	paymentReference string,
) (httptransport.ApportionListResponse, error) {
	apportions, err := h.Service.ListAllocations(ctx, paymentReference)
	if err != nil {
		return httptransport.ApportionListResponse{}, err
	}
	resp := httptransport.ApportionListResponse{
		Status: "success",
		Data:   make([]httptransport.ApportionDTO, 0, len(apportions)),
	}
	for _, apportion := range apportions {
		resp.Data = append(resp.Data, toApportionDTO(apportion))
	}
	return resp, nil
}

func toOutcomeDTO(outcome ports.PaymentOutcome) httptransport.PaymentOutcomeDTO {
	return httptransport.PaymentOutcomeDTO{
		PaymentReference: outcome.PaymentReference,
		GroupReference:   outcome.GroupReference,
		Status:           outcome.Status,
		Amount:           outcome.Amount.StringFixed(2),
		ErrorCode:        outcome.ErrorCode,
		ErrorMessage:     outcome.ErrorMessage,
		CreatedAt:        outcome.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toPaymentDTO(payment entities.Payment) httptransport.PaymentDTO {
	return httptransport.PaymentDTO{
		PaymentReference:  payment.PaymentReference,
		GroupReference:    payment.GroupReference,
		Amount:            payment.Amount.StringFixed(2),
		Currency:          payment.Currency,
		Channel:           payment.Channel,
		Method:            payment.Method,
		Provider:          payment.Provider,
		ExternalReference: payment.ExternalReference,
		CCDCaseNumber:     payment.CCDCaseNumber,
		Status:            string(payment.Status),
		ErrorCode:         payment.ErrorCode,
		ErrorMessage:      payment.ErrorMessage,
		CreatedAt:         payment.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:         payment.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func toApportionDTO(apportion entities.FeePayApportion) httptransport.ApportionDTO {
	return httptransport.ApportionDTO{
		ApportionID:     apportion.ApportionID,
		PaymentID:       apportion.PaymentID,
		FeeID:           apportion.FeeID,
		ApportionAmount: apportion.ApportionAmount.StringFixed(2),
		ApportionType:   string(apportion.ApportionType),
		CCDCaseNumber:   apportion.CCDCaseNumber,
		CreatedAt:       apportion.CreatedAt.UTC().Format(time.RFC3339),
	}
}
