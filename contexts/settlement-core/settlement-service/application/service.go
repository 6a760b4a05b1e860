package application

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"courtpay/contexts/settlement-core/settlement-service/domain/entities"
	domainerrors "courtpay/contexts/settlement-core/settlement-service/domain/errors"
	"courtpay/contexts/settlement-core/settlement-service/domain/services"
	"courtpay/contexts/settlement-core/settlement-service/ports"

	"github.com/shopspring/decimal"
)

// replayReadAttempts bounds how often a loser of the idempotency insert race
// re-reads before surfacing a transient try-again.
const replayReadAttempts = 3

// pendingStaleAfter bounds how long an in-flight record blocks retries of
// its key. A writer that died between claiming the key and completing the
// record is superseded once the record is older than this.
const pendingStaleAfter = 2 * time.Minute

const (
	errorCodeInsufficientFunds = "CA-E0001"
	errorCodeAccountOnHold     = "CA-E0003"
	errorCodeAccountDeleted    = "CA-E0004"
)

// Features holds the toggles resolved once at construction; components never
// consult configuration at request time.
type Features struct {
	ApportionEnabled bool
	CancelEnabled    bool
}

type Service struct {
	Ledger      ports.LedgerRepository
	Idempotency ports.IdempotencyStore
	Gateway     ports.GatewayClient
	Accounts    ports.AccountClient
	Clock       ports.Clock
	IDGen       ports.IDGenerator
	Features    Features
	Logger      *slog.Logger
}

// SubmitPBAPayment records a credit-account payment against a service
// request. Retries with the same key replay the stored outcome without a
// second mutation; the storage uniqueness constraint, not an in-process
// lock, resolves concurrent submitters.
func (s Service) SubmitPBAPayment(
	ctx context.Context,
	serviceRequestReference string,
	idempotencyKey string,
	input ports.PBAPaymentInput,
) (ports.PaymentOutcome, bool, error) {
	serviceRequestReference = strings.TrimSpace(serviceRequestReference)
	idempotencyKey = strings.TrimSpace(idempotencyKey)
	if idempotencyKey == "" {
		return ports.PaymentOutcome{}, false, domainerrors.ErrIdempotencyKeyMissing
	}
	if input.Amount.Sign() <= 0 || strings.TrimSpace(input.PBAAccountNumber) == "" {
		return ports.PaymentOutcome{}, false, domainerrors.ErrInvalidPaymentInput
	}

	requestHash := fingerprint(serviceRequestReference, input)

	// A known key replays its stored outcome before any business check, so
	// retries of a submission that already settled the service request do not
	// trip the already-paid precondition.
	if existing, found, err := s.Idempotency.GetRecord(ctx, serviceRequestReference, idempotencyKey); err != nil {
		return ports.PaymentOutcome{}, false, err
	} else if found {
		outcome, rerun, err := s.resolveRecord(existing, requestHash)
		if err != nil {
			return ports.PaymentOutcome{}, false, err
		}
		if !rerun {
			return outcome, true, nil
		}
	}

	serviceRequest, err := s.Ledger.LoadGroupForUpdate(ctx, serviceRequestReference)
	if err != nil {
		return ports.PaymentOutcome{}, false, err
	}

	// Under a fresh key, a settled service request rejects the submission
	// before any idempotency record is written.
	if serviceRequest.IsFullySettled() {
		return ports.PaymentOutcome{}, false, domainerrors.ErrServiceRequestAlreadyPaid
	}
	if !input.Amount.Equal(serviceRequest.TotalCalculatedAmount()) {
		return ports.PaymentOutcome{}, false, domainerrors.ErrAmountMismatch
	}

	now := s.now()

	inserted, err := s.Idempotency.InsertPendingRecord(ctx, entities.IdempotencyRecord{
		ServiceRequestReference: serviceRequestReference,
		IdempotencyKey:          idempotencyKey,
		RequestHash:             requestHash,
		State:                   entities.IdempotencyStatePending,
		CreatedAt:               now,
		UpdatedAt:               now,
	})
	if err != nil {
		return ports.PaymentOutcome{}, false, err
	}

	if !inserted {
		outcome, rerun, err := s.classifyExistingRecord(ctx, serviceRequestReference, idempotencyKey, requestHash)
		if err != nil {
			return ports.PaymentOutcome{}, false, err
		}
		if !rerun {
			return outcome, true, nil
		}
		// A stored gateway-class failure (5xx) is retryable: this attempt
		// runs again and supersedes the recorded outcome.
	}

	outcome, write, attemptErr := s.runPBAAttempt(ctx, serviceRequest, input, now)
	if attemptErr != nil {
		// Transport-class failure before any ledger mutation. The record is
		// completed with a retryable status so a later attempt may run.
		if completeErr := s.Idempotency.CompleteRecord(ctx, serviceRequestReference, idempotencyKey,
			statusForError(attemptErr), []byte(attemptErr.Error())); completeErr != nil {
			return ports.PaymentOutcome{}, false, completeErr
		}
		return ports.PaymentOutcome{}, false, attemptErr
	}

	body, err := json.Marshal(outcome)
	if err != nil {
		return ports.PaymentOutcome{}, false, err
	}
	record := entities.IdempotencyRecord{
		ServiceRequestReference: serviceRequestReference,
		IdempotencyKey:          idempotencyKey,
		RequestHash:             requestHash,
		ResponseStatus:          statusForOutcome(outcome),
		ResponseBody:            body,
		State:                   entities.IdempotencyStateCompleted,
		CreatedAt:               now,
		UpdatedAt:               now,
	}
	write.Idempotency = &record

	if err := s.Ledger.SaveSettlement(ctx, write); err != nil {
		return ports.PaymentOutcome{}, false, err
	}

	ResolveLogger(s.Logger).Info("pba payment recorded",
		"event", "pba_payment_recorded",
		"module", "settlement-core/settlement-service",
		"layer", "application",
		"service_request_reference", serviceRequestReference,
		"payment_reference", outcome.PaymentReference,
		"status", outcome.Status,
		"amount", outcome.Amount.String(),
	)
	return outcome, false, nil
}

// classifyExistingRecord resolves the loser of the insert race: replay,
// conflict, retryable re-run, or transient try-again. Under snapshot
// isolation the winner's row may not be visible yet, hence the bounded
// re-read loop.
func (s Service) classifyExistingRecord(
	ctx context.Context,
	serviceRequestReference string,
	idempotencyKey string,
	requestHash string,
) (ports.PaymentOutcome, bool, error) {
	for attempt := 0; attempt < replayReadAttempts; attempt++ {
		existing, found, err := s.Idempotency.GetRecord(ctx, serviceRequestReference, idempotencyKey)
		if err != nil {
			return ports.PaymentOutcome{}, false, err
		}
		if !found {
			continue
		}
		return s.resolveRecord(existing, requestHash)
	}
	return ports.PaymentOutcome{}, false, domainerrors.ErrTryAgain
}

// resolveRecord decides what an existing record means for this submission:
// replay the stored outcome, reject on payload drift, wait out an in-flight
// writer, or re-run a stale pending record or a gateway-class (5xx) failure.
func (s Service) resolveRecord(existing entities.IdempotencyRecord, requestHash string) (ports.PaymentOutcome, bool, error) {
	if existing.RequestHash != requestHash {
		return ports.PaymentOutcome{}, false, domainerrors.ErrIdempotencyConflict
	}
	if existing.State == entities.IdempotencyStatePending {
		if s.now().Sub(existing.UpdatedAt) > pendingStaleAfter {
			return ports.PaymentOutcome{}, true, nil
		}
		return ports.PaymentOutcome{}, false, domainerrors.ErrTryAgain
	}
	if existing.ResponseStatus >= http.StatusInternalServerError {
		return ports.PaymentOutcome{}, true, nil
	}
	var outcome ports.PaymentOutcome
	if err := json.Unmarshal(existing.ResponseBody, &outcome); err != nil {
		return ports.PaymentOutcome{}, false, err
	}
	return outcome, false, nil
}

// runPBAAttempt drives the payment lifecycle for one credit-account attempt
// and assembles the settlement write. Transport failures return an error and
// leave the ledger untouched; business declines produce a Failed payment.
func (s Service) runPBAAttempt(
	ctx context.Context,
	serviceRequest entities.ServiceRequest,
	input ports.PBAPaymentInput,
	now time.Time,
) (ports.PaymentOutcome, ports.SettlementWrite, error) {
	paymentID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return ports.PaymentOutcome{}, ports.SettlementWrite{}, err
	}

	payment := entities.Payment{
		PaymentID:         paymentID,
		PaymentReference:  paymentReference(paymentID),
		GroupReference:    serviceRequest.GroupReference,
		Amount:            input.Amount,
		Currency:          currencyOrDefault(input.Currency),
		Channel:           "online",
		Method:            "payment by account",
		Provider:          "middle office provider",
		PBAAccountNumber:  strings.TrimSpace(input.PBAAccountNumber),
		CustomerReference: strings.TrimSpace(input.CustomerReference),
		OrganisationName:  strings.TrimSpace(input.OrganisationName),
		CCDCaseNumber:     serviceRequest.CCDCaseNumber,
		Status:            entities.PaymentStatusCreated,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if _, err := services.Transition(&payment, entities.PaymentStatusInitiated); err != nil {
		return ports.PaymentOutcome{}, ports.SettlementWrite{}, err
	}

	account, err := s.Accounts.GetAccount(ctx, payment.PBAAccountNumber)
	if err != nil {
		return ports.PaymentOutcome{}, ports.SettlementWrite{}, err
	}

	if code, message, declined := classifyAccount(account, input.Amount); declined {
		payment.ErrorCode = code
		payment.ErrorMessage = message
		if _, err := services.Transition(&payment, entities.PaymentStatusFailed); err != nil {
			return ports.PaymentOutcome{}, ports.SettlementWrite{}, err
		}
		outcome := outcomeFromPayment(payment)
		return outcome, ports.SettlementWrite{Payment: payment}, nil
	}

	if _, err := services.Transition(&payment, entities.PaymentStatusSuccess); err != nil {
		return ports.PaymentOutcome{}, ports.SettlementWrite{}, err
	}

	write := ports.SettlementWrite{Payment: payment}
	if s.Features.ApportionEnabled {
		settled, err := s.settle(ctx, serviceRequest, payment, now)
		if err != nil {
			return ports.PaymentOutcome{}, ports.SettlementWrite{}, err
		}
		write.Fees = settled.Fees
		write.Apportions = settled.Apportions
		write.Callback = settled.Callback
	}
	return outcomeFromPayment(payment), write, nil
}

type settlementParts struct {
	Fees       []entities.Fee
	Apportions []entities.FeePayApportion
	Callback   *ports.EventEnvelope
}

// settle runs the waterfall engine for a Success payment and asserts
// conservation before anything is handed to the repository.
func (s Service) settle(
	ctx context.Context,
	serviceRequest entities.ServiceRequest,
	payment entities.Payment,
	now time.Time,
) (settlementParts, error) {
	result, err := services.Apportion(serviceRequest.Fees, payment, now)
	if err != nil {
		return settlementParts{}, err
	}
	if !result.TotalApportioned().Equal(payment.Amount) {
		return settlementParts{}, fmt.Errorf(
			"apportioned total %s does not equal payment amount %s for payment %s",
			result.TotalApportioned(), payment.Amount, payment.PaymentReference)
	}
	for i := range result.Apportions {
		apportionID, err := s.IDGen.NewID(ctx)
		if err != nil {
			return settlementParts{}, err
		}
		result.Apportions[i].ApportionID = apportionID
	}

	parts := settlementParts{
		Fees:       result.Fees,
		Apportions: result.Apportions,
	}
	if serviceRequest.CallbackURL != "" {
		settledView := serviceRequest
		settledView.Fees = result.Fees
		envelope, err := s.buildCallbackEnvelope(ctx, settledView, payment, now)
		if err != nil {
			return settlementParts{}, err
		}
		parts.Callback = envelope
	}
	return parts, nil
}

func (s Service) buildCallbackEnvelope(
	ctx context.Context,
	serviceRequest entities.ServiceRequest,
	payment entities.Payment,
	now time.Time,
) (*ports.EventEnvelope, error) {
	eventID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(map[string]any{
		"service_request_reference": serviceRequest.GroupReference,
		"service_request_status":    serviceRequest.StatusLabel(),
		"payment_reference":         payment.PaymentReference,
		"payment_amount":            payment.Amount.StringFixed(2),
		"ccd_case_number":           serviceRequest.CCDCaseNumber,
		"callback_url":              serviceRequest.CallbackURL,
	})
	if err != nil {
		return nil, err
	}
	return &ports.EventEnvelope{
		EventID:          strings.TrimSpace(eventID),
		EventType:        "servicerequest.status_changed",
		OccurredAt:       now,
		SourceService:    "settlement-service",
		TraceID:          strings.TrimSpace(eventID),
		SchemaVersion:    1,
		PartitionKeyPath: "service_request_reference",
		PartitionKey:     serviceRequest.GroupReference,
		Data:             data,
	}, nil
}

// CreateCardPayment starts an online card payment via the downstream
// gateway. The payment stays Initiated until the gateway reports a terminal
// status; settlement happens on that later transition, never here.
func (s Service) CreateCardPayment(
	ctx context.Context,
	serviceRequestReference string,
	input ports.CardPaymentInput,
) (entities.Payment, string, error) {
	serviceRequestReference = strings.TrimSpace(serviceRequestReference)
	if input.Amount.Sign() <= 0 {
		return entities.Payment{}, "", domainerrors.ErrInvalidPaymentInput
	}

	serviceRequest, err := s.Ledger.LoadGroupForUpdate(ctx, serviceRequestReference)
	if err != nil {
		return entities.Payment{}, "", err
	}
	if serviceRequest.IsFullySettled() {
		return entities.Payment{}, "", domainerrors.ErrServiceRequestAlreadyPaid
	}
	if !input.Amount.Equal(serviceRequest.TotalCalculatedAmount()) {
		return entities.Payment{}, "", domainerrors.ErrAmountMismatch
	}

	now := s.now()
	paymentID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return entities.Payment{}, "", err
	}
	payment := entities.Payment{
		PaymentID:        paymentID,
		PaymentReference: paymentReference(paymentID),
		GroupReference:   serviceRequest.GroupReference,
		Amount:           input.Amount,
		Currency:         currencyOrDefault(input.Currency),
		Channel:          "online",
		Method:           "card",
		Provider:         "gov pay",
		CCDCaseNumber:    serviceRequest.CCDCaseNumber,
		Status:           entities.PaymentStatusCreated,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	gatewayPayment, err := s.Gateway.CreatePayment(ctx, ports.CreateGatewayPaymentInput{
		Amount:      input.Amount,
		Currency:    payment.Currency,
		Description: "Payment for service request " + serviceRequest.GroupReference,
		ReturnURL:   strings.TrimSpace(input.ReturnURL),
		Language:    strings.TrimSpace(input.Language),
	})
	if err != nil {
		return entities.Payment{}, "", err
	}
	payment.ExternalReference = gatewayPayment.ExternalReference
	if _, err := services.Transition(&payment, entities.PaymentStatusInitiated); err != nil {
		return entities.Payment{}, "", err
	}

	if err := s.Ledger.SavePayment(ctx, payment); err != nil {
		return entities.Payment{}, "", err
	}
	return payment, gatewayPayment.NextURL, nil
}

// RefreshPaymentStatus pulls the gateway's view of an Initiated payment and
// drives the state machine. A payment already in a terminal state is left
// untouched and its existing allocations are returned rather than
// recomputed.
func (s Service) RefreshPaymentStatus(ctx context.Context, paymentReference string) (ports.PaymentOutcome, []entities.FeePayApportion, error) {
	payment, err := s.Ledger.GetPayment(ctx, strings.TrimSpace(paymentReference))
	if err != nil {
		return ports.PaymentOutcome{}, nil, err
	}
	if payment.Status.IsTerminal() {
		apportions, err := s.Ledger.ListApportionsByPayment(ctx, payment.PaymentID)
		if err != nil {
			return ports.PaymentOutcome{}, nil, err
		}
		return outcomeFromPayment(payment), apportions, nil
	}

	gatewayPayment, err := s.Gateway.RetrievePayment(ctx, payment.ExternalReference)
	if err != nil {
		return ports.PaymentOutcome{}, nil, err
	}
	target, terminal := mapGatewayStatus(gatewayPayment.Status)
	if !terminal {
		return outcomeFromPayment(payment), nil, nil
	}

	now := s.now()
	payment.UpdatedAt = now
	changed, err := services.Transition(&payment, target)
	if err != nil {
		return ports.PaymentOutcome{}, nil, err
	}
	if !changed {
		return outcomeFromPayment(payment), nil, nil
	}

	if target != entities.PaymentStatusSuccess {
		if err := s.Ledger.UpdatePayment(ctx, payment); err != nil {
			return ports.PaymentOutcome{}, nil, err
		}
		return outcomeFromPayment(payment), nil, nil
	}

	serviceRequest, err := s.Ledger.LoadGroupForUpdate(ctx, payment.GroupReference)
	if err != nil {
		return ports.PaymentOutcome{}, nil, err
	}
	write := ports.SettlementWrite{Payment: payment}
	if s.Features.ApportionEnabled {
		settled, err := s.settle(ctx, serviceRequest, payment, now)
		if err != nil {
			return ports.PaymentOutcome{}, nil, err
		}
		write.Fees = settled.Fees
		write.Apportions = settled.Apportions
		write.Callback = settled.Callback
	}
	if err := s.Ledger.SaveSettlement(ctx, write); err != nil {
		return ports.PaymentOutcome{}, nil, err
	}

	ResolveLogger(s.Logger).Info("card payment settled",
		"event", "card_payment_settled",
		"module", "settlement-core/settlement-service",
		"layer", "application",
		"payment_reference", payment.PaymentReference,
		"group_reference", payment.GroupReference,
		"amount", payment.Amount.String(),
	)
	return outcomeFromPayment(payment), write.Apportions, nil
}

// CancelPayment cancels an Initiated payment, but only when the cancel
// feature is enabled and the gateway confirms synchronously. A gateway
// failure leaves the payment's state untouched. Cancelling never reverses
// allocations a completed settlement already committed.
func (s Service) CancelPayment(ctx context.Context, paymentReference string) (entities.Payment, error) {
	if !s.Features.CancelEnabled {
		return entities.Payment{}, domainerrors.ErrCancelDisabled
	}
	payment, err := s.Ledger.GetPayment(ctx, strings.TrimSpace(paymentReference))
	if err != nil {
		return entities.Payment{}, err
	}
	if payment.Status != entities.PaymentStatusInitiated {
		return entities.Payment{}, domainerrors.ErrInvalidStatusTransition
	}

	if err := s.Gateway.CancelPayment(ctx, payment.ExternalReference); err != nil {
		return entities.Payment{}, err
	}

	payment.UpdatedAt = s.now()
	if _, err := services.Transition(&payment, entities.PaymentStatusCancelled); err != nil {
		return entities.Payment{}, err
	}
	if err := s.Ledger.UpdatePayment(ctx, payment); err != nil {
		return entities.Payment{}, err
	}

	ResolveLogger(s.Logger).Info("payment cancelled",
		"event", "payment_cancelled",
		"module", "settlement-core/settlement-service",
		"layer", "application",
		"payment_reference", payment.PaymentReference,
	)
	return payment, nil
}

func (s Service) GetPayment(ctx context.Context, paymentReference string) (entities.Payment, error) {
	return s.Ledger.GetPayment(ctx, strings.TrimSpace(paymentReference))
}

func (s Service) ListAllocations(ctx context.Context, paymentReference string) ([]entities.FeePayApportion, error) {
	payment, err := s.Ledger.GetPayment(ctx, strings.TrimSpace(paymentReference))
	if err != nil {
		return nil, err
	}
	return s.Ledger.ListApportionsByPayment(ctx, payment.PaymentID)
}

func classifyAccount(account ports.AccountInfo, amount decimal.Decimal) (string, string, bool) {
	switch account.Status {
	case ports.AccountStatusOnHold:
		return errorCodeAccountOnHold, "Your account is on hold", true
	case ports.AccountStatusDeleted:
		return errorCodeAccountDeleted, "Your account is deleted", true
	}
	if account.AvailableBalance.LessThan(amount) {
		return errorCodeInsufficientFunds, "Payment request failed. PBA account have insufficient funds available", true
	}
	return "", "", false
}

func mapGatewayStatus(status string) (entities.PaymentStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "success", "captured":
		return entities.PaymentStatusSuccess, true
	case "failed", "error", "expired":
		return entities.PaymentStatusFailed, true
	case "declined", "cancelled":
		return entities.PaymentStatusDeclined, true
	default:
		return entities.PaymentStatusInitiated, false
	}
}

func outcomeFromPayment(payment entities.Payment) ports.PaymentOutcome {
	return ports.PaymentOutcome{
		PaymentReference: payment.PaymentReference,
		GroupReference:   payment.GroupReference,
		Status:           string(payment.Status),
		Amount:           payment.Amount,
		ErrorCode:        payment.ErrorCode,
		ErrorMessage:     payment.ErrorMessage,
		CreatedAt:        payment.CreatedAt.UTC(),
	}
}

func statusForOutcome(outcome ports.PaymentOutcome) int {
	switch outcome.ErrorCode {
	case errorCodeInsufficientFunds:
		return http.StatusPaymentRequired
	case errorCodeAccountOnHold:
		return http.StatusPreconditionFailed
	case errorCodeAccountDeleted:
		return http.StatusGone
	}
	return http.StatusCreated
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, domainerrors.ErrGatewayTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, domainerrors.ErrGatewayUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, domainerrors.ErrAccountNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// fingerprint hashes the normalized payload: json.Marshal writes map keys in
// sorted order, so equal payloads always produce equal hashes.
func fingerprint(serviceRequestReference string, input ports.PBAPaymentInput) string {
	raw, _ := json.Marshal(map[string]any{
		"service_request_reference": serviceRequestReference,
		"amount":                    input.Amount.StringFixed(2),
		"currency":                  currencyOrDefault(input.Currency),
		"pba_account_number":        strings.TrimSpace(input.PBAAccountNumber),
		"customer_reference":        strings.TrimSpace(input.CustomerReference),
		"organisation_name":         strings.TrimSpace(input.OrganisationName),
	})
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func paymentReference(id string) string {
	compact := strings.ReplaceAll(strings.TrimSpace(id), "-", "")
	if len(compact) > 16 {
		compact = compact[:16]
	}
	return "RC-" + compact
}

func currencyOrDefault(currency string) string {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return "GBP"
	}
	return currency
}

func (s Service) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now().UTC()
}

func ResolveLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}
