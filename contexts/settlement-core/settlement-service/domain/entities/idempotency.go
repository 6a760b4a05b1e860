package entities

import "time"

type IdempotencyState string

const (
	IdempotencyStatePending   IdempotencyState = "pending"
	IdempotencyStateCompleted IdempotencyState = "completed"
)

// IdempotencyRecord deduplicates submission attempts. Exactly one record may
// exist per (service request reference, idempotency key) pair; the storage
// layer's uniqueness constraint, not application logic, enforces that. A
// record is created pending and completed in the same transaction that
// performed the ledger mutation.
type IdempotencyRecord struct {
	ServiceRequestReference string
	IdempotencyKey          string
	RequestHash             string
	ResponseStatus          int
	ResponseBody            []byte
	State                   IdempotencyState
	CreatedAt               time.Time
	UpdatedAt               time.Time
}
