package ports

import (
	"context"
	"time"

	contractsv1 "courtpay/contracts/gen/events/v1"
	"courtpay/contexts/settlement-core/settlement-service/domain/entities"

	"github.com/shopspring/decimal"
)

type PBAPaymentInput struct {
	Amount            decimal.Decimal
	Currency          string
	PBAAccountNumber  string
	CustomerReference string
	OrganisationName  string
}

type CardPaymentInput struct {
	Amount    decimal.Decimal
	Currency  string
	ReturnURL string
	Language  string
}

// PaymentOutcome is the stored, replayable result of a submission attempt.
type PaymentOutcome struct {
	PaymentReference string          `json:"payment_reference"`
	GroupReference   string          `json:"group_reference"`
	Status           string          `json:"status"`
	Amount           decimal.Decimal `json:"amount"`
	ErrorCode        string          `json:"error_code,omitempty"`
	ErrorMessage     string          `json:"error_message,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// SettlementWrite is everything one settlement commits atomically: the
// payment's terminal state, the fees' recomputed balances, the immutable
// allocation rows, the optional callback outbox event, and the idempotency
// record completion. A crash between any two of these must roll back all.
type SettlementWrite struct {
	Payment     entities.Payment
	Fees        []entities.Fee
	Apportions  []entities.FeePayApportion
	Callback    *EventEnvelope
	Idempotency *entities.IdempotencyRecord
}

// LedgerRepository is the durable store for payments and allocations.
type LedgerRepository interface {
	LoadGroupForUpdate(ctx context.Context, groupReference string) (entities.ServiceRequest, error)
	SavePayment(ctx context.Context, payment entities.Payment) error
	UpdatePayment(ctx context.Context, payment entities.Payment) error
	GetPayment(ctx context.Context, paymentReference string) (entities.Payment, error)
	SaveSettlement(ctx context.Context, write SettlementWrite) error
	ListApportionsByPayment(ctx context.Context, paymentID string) ([]entities.FeePayApportion, error)
}

// IdempotencyStore races concurrent submitters on the storage uniqueness
// constraint. InsertPendingRecord reports false when a record for the
// (reference, key) pair already exists, committed or in flight.
type IdempotencyStore interface {
	InsertPendingRecord(ctx context.Context, record entities.IdempotencyRecord) (bool, error)
	GetRecord(ctx context.Context, serviceRequestReference string, idempotencyKey string) (entities.IdempotencyRecord, bool, error)
	CompleteRecord(ctx context.Context, serviceRequestReference string, idempotencyKey string, status int, body []byte) error
}

type GatewayPayment struct {
	ExternalReference string
	Status            string
	Amount            decimal.Decimal
	NextURL           string
}

type CreateGatewayPaymentInput struct {
	Amount      decimal.Decimal
	Currency    string
	Description string
	ReturnURL   string
	Language    string
}

// GatewayClient is the downstream card/telephony gateway. Transport errors
// map to the typed gateway errors before they reach the state machine.
type GatewayClient interface {
	CreatePayment(ctx context.Context, input CreateGatewayPaymentInput) (GatewayPayment, error)
	RetrievePayment(ctx context.Context, externalReference string) (GatewayPayment, error)
	CancelPayment(ctx context.Context, externalReference string) error
}

type AccountStatus string

const (
	AccountStatusActive  AccountStatus = "ACTIVE"
	AccountStatusOnHold  AccountStatus = "ON_HOLD"
	AccountStatusDeleted AccountStatus = "DELETED"
)

type AccountInfo struct {
	AccountNumber    string
	AccountName      string
	Status           AccountStatus
	AvailableBalance decimal.Decimal
}

// AccountClient resolves a payment-by-account number to its status and
// available balance. ON_HOLD, deleted, or insufficient balance must prevent
// the state machine from ever reaching Success.
type AccountClient interface {
	GetAccount(ctx context.Context, pbaAccountNumber string) (AccountInfo, error)
}

type EventEnvelope = contractsv1.Envelope

type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
