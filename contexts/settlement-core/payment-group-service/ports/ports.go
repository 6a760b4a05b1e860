package ports

import (
	"context"
	"time"

	"courtpay/contexts/settlement-core/payment-group-service/domain/entities"

	"github.com/shopspring/decimal"
)

type FeeInput struct {
	Code             string
	Version          string
	Volume           int
	FeeAmount        decimal.Decimal
	CalculatedAmount decimal.Decimal
	CCDCaseNumber    string
	CaseReference    string
}

type CreateGroupInput struct {
	CCDCaseNumber string
	CaseReference string
	CaseType      string
	CallbackURL   string
	Fees          []FeeInput
}

type RemissionInput struct {
	FeeID           string
	FeeCode         string
	HwfReference    string
	HwfAmount       decimal.Decimal
	BeneficiaryName string
	Retrospective   bool
}

// Repository is the durable store for the PaymentGroup aggregate.
// SaveRemission persists the remission row and the recomputed fee in one
// transaction so a waiver can never be recorded without its balance change.
type Repository interface {
	CreateGroup(ctx context.Context, group entities.PaymentGroup) error
	GetGroup(ctx context.Context, groupReference string) (entities.PaymentGroup, error)
	AppendFee(ctx context.Context, fee entities.Fee) error
	SaveRemission(ctx context.Context, remission entities.Remission, fee entities.Fee) error
	GetRemission(ctx context.Context, remissionReference string) (entities.Remission, error)
	ListRemissionsByFee(ctx context.Context, feeID string) ([]entities.Remission, error)
}

// OrgLookupClient resolves a case type to an organisational service code.
// Failures surface before any ledger mutation.
type OrgLookupClient interface {
	ServiceCodeForCaseType(ctx context.Context, caseType string) (string, error)
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
