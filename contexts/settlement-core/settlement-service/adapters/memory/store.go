package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"courtpay/contexts/settlement-core/settlement-service/domain/entities"
	domainerrors "courtpay/contexts/settlement-core/settlement-service/domain/errors"
	"courtpay/contexts/settlement-core/settlement-service/ports"

	"github.com/google/uuid"
)

// Store is the in-memory adapter behind every settlement port. One mutex
// guards all maps, so SaveSettlement is atomic the same way the postgres
// adapter's transaction is.
type Store struct {
	mu              sync.Mutex
	groups          map[string]entities.ServiceRequest
	payments        map[string]entities.Payment
	apportions      map[string][]entities.FeePayApportion
	idempotency     map[string]entities.IdempotencyRecord
	outbox          []outboxRow
	accounts        map[string]ports.AccountInfo
	gatewayPayments map[string]ports.GatewayPayment
	published       []publishedEvent

	// Error injection for tests: returned by the next gateway, account, or
	// settlement write when non-nil.
	GatewayErr error
	AccountErr error
	LedgerErr  error

	FixedNow time.Time
}

type outboxRow struct {
	message   ports.OutboxMessage
	published bool
}

type publishedEvent struct {
	Topic string
	Event ports.EventEnvelope
}

func NewStore() *Store {
	return &Store{
		groups:          map[string]entities.ServiceRequest{},
		payments:        map[string]entities.Payment{},
		apportions:      map[string][]entities.FeePayApportion{},
		idempotency:     map[string]entities.IdempotencyRecord{},
		accounts:        map[string]ports.AccountInfo{},
		gatewayPayments: map[string]ports.GatewayPayment{},
	}
}

// SeedGroup loads a service request view so the module can be exercised
// without the payment-group context.
func (s *Store) SeedGroup(group entities.ServiceRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[group.GroupReference] = cloneGroup(group)
}

func (s *Store) RegisterAccount(account ports.AccountInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[account.AccountNumber] = account
}

// SetGatewayStatus scripts what the fake gateway reports for a payment.
func (s *Store) SetGatewayStatus(externalReference string, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	gatewayPayment, ok := s.gatewayPayments[externalReference]
	if !ok {
		gatewayPayment = ports.GatewayPayment{ExternalReference: externalReference}
	}
	gatewayPayment.Status = status
	s.gatewayPayments[externalReference] = gatewayPayment
}

func (s *Store) LoadGroupForUpdate(ctx context.Context, groupReference string) (entities.ServiceRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	group, ok := s.groups[groupReference]
	if !ok {
		return entities.ServiceRequest{}, domainerrors.ErrServiceRequestNotFound
	}
	return cloneGroup(group), nil
}

func (s *Store) SavePayment(ctx context.Context, payment entities.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments[payment.PaymentReference] = payment
	return nil
}

func (s *Store) UpdatePayment(ctx context.Context, payment entities.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.payments[payment.PaymentReference]; !ok {
		return domainerrors.ErrPaymentNotFound
	}
	s.payments[payment.PaymentReference] = payment
	return nil
}

// PaymentCount reports how many payment rows the store holds.
func (s *Store) PaymentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.payments)
}

func (s *Store) GetPayment(ctx context.Context, paymentReference string) (entities.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	payment, ok := s.payments[paymentReference]
	if !ok {
		return entities.Payment{}, domainerrors.ErrPaymentNotFound
	}
	return payment, nil
}

func (s *Store) SaveSettlement(ctx context.Context, write ports.SettlementWrite) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.LedgerErr != nil {
		err := s.LedgerErr
		s.LedgerErr = nil
		return err
	}

	s.payments[write.Payment.PaymentReference] = write.Payment

	if len(write.Fees) > 0 {
		group, ok := s.groups[write.Payment.GroupReference]
		if !ok {
			return domainerrors.ErrServiceRequestNotFound
		}
		for _, updated := range write.Fees {
			for i := range group.Fees {
				if group.Fees[i].FeeID == updated.FeeID {
					group.Fees[i] = updated
					break
				}
			}
		}
		s.groups[write.Payment.GroupReference] = group
	}

	if len(write.Apportions) > 0 {
		s.apportions[write.Payment.PaymentID] = append(
			s.apportions[write.Payment.PaymentID], write.Apportions...)
	}

	if write.Callback != nil {
		payload, err := json.Marshal(write.Callback)
		if err != nil {
			return err
		}
		s.outbox = append(s.outbox, outboxRow{message: ports.OutboxMessage{
			OutboxID:     uuid.NewString(),
			EventType:    write.Callback.EventType,
			PartitionKey: write.Callback.PartitionKey,
			Payload:      payload,
			CreatedAt:    write.Callback.OccurredAt,
		}})
	}

	if write.Idempotency != nil {
		s.idempotency[idempotencyKey(write.Idempotency.ServiceRequestReference, write.Idempotency.IdempotencyKey)] = *write.Idempotency
	}
	return nil
}

func (s *Store) ListApportionsByPayment(ctx context.Context, paymentID string) ([]entities.FeePayApportion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.apportions[paymentID]
	out := make([]entities.FeePayApportion, len(rows))
	copy(out, rows)
	return out, nil
}

func (s *Store) InsertPendingRecord(ctx context.Context, record entities.IdempotencyRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := idempotencyKey(record.ServiceRequestReference, record.IdempotencyKey)
	if _, ok := s.idempotency[key]; ok {
		return false, nil
	}
	s.idempotency[key] = record
	return true, nil
}

func (s *Store) GetRecord(ctx context.Context, serviceRequestReference string, key string) (entities.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.idempotency[idempotencyKey(serviceRequestReference, key)]
	return record, ok, nil
}

func (s *Store) CompleteRecord(ctx context.Context, serviceRequestReference string, key string, status int, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	mapKey := idempotencyKey(serviceRequestReference, key)
	record, ok := s.idempotency[mapKey]
	if !ok {
		return domainerrors.ErrTryAgain
	}
	record.ResponseStatus = status
	record.ResponseBody = append([]byte(nil), body...)
	record.State = entities.IdempotencyStateCompleted
	record.UpdatedAt = s.Now()
	s.idempotency[mapKey] = record
	return nil
}

func (s *Store) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ports.OutboxMessage, 0, limit)
	for _, row := range s.outbox {
		if row.published {
			continue
		}
		out = append(out, row.message)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.outbox {
		if s.outbox[i].message.OutboxID == outboxID {
			s.outbox[i].published = true
			return nil
		}
	}
	return nil
}

func (s *Store) Publish(ctx context.Context, topic string, event ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.published = append(s.published, publishedEvent{Topic: topic, Event: event})
	return nil
}

// PublishedEvents returns what the fake publisher has accepted so far.
func (s *Store) PublishedEvents() []ports.EventEnvelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ports.EventEnvelope, 0, len(s.published))
	for _, p := range s.published {
		out = append(out, p.Event)
	}
	return out
}

func (s *Store) GetAccount(ctx context.Context, pbaAccountNumber string) (ports.AccountInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.AccountErr != nil {
		err := s.AccountErr
		s.AccountErr = nil
		return ports.AccountInfo{}, err
	}
	account, ok := s.accounts[pbaAccountNumber]
	if !ok {
		return ports.AccountInfo{}, domainerrors.ErrAccountNotFound
	}
	return account, nil
}

func (s *Store) CreatePayment(ctx context.Context, input ports.CreateGatewayPaymentInput) (ports.GatewayPayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GatewayErr != nil {
		err := s.GatewayErr
		s.GatewayErr = nil
		return ports.GatewayPayment{}, err
	}
	gatewayPayment := ports.GatewayPayment{
		ExternalReference: uuid.NewString(),
		Status:            "created",
		Amount:            input.Amount,
		NextURL:           "https://card-gateway.local/secure/" + uuid.NewString(),
	}
	s.gatewayPayments[gatewayPayment.ExternalReference] = gatewayPayment
	return gatewayPayment, nil
}

func (s *Store) RetrievePayment(ctx context.Context, externalReference string) (ports.GatewayPayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GatewayErr != nil {
		err := s.GatewayErr
		s.GatewayErr = nil
		return ports.GatewayPayment{}, err
	}
	gatewayPayment, ok := s.gatewayPayments[externalReference]
	if !ok {
		return ports.GatewayPayment{}, domainerrors.ErrGatewayNotFound
	}
	return gatewayPayment, nil
}

func (s *Store) CancelPayment(ctx context.Context, externalReference string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GatewayErr != nil {
		err := s.GatewayErr
		s.GatewayErr = nil
		return err
	}
	gatewayPayment, ok := s.gatewayPayments[externalReference]
	if !ok {
		return domainerrors.ErrGatewayNotFound
	}
	gatewayPayment.Status = "cancelled"
	s.gatewayPayments[externalReference] = gatewayPayment
	return nil
}

func (s *Store) Now() time.Time {
	if !s.FixedNow.IsZero() {
		return s.FixedNow
	}
	return time.Now().UTC()
}

func (s *Store) NewID(ctx context.Context) (string, error) {
	return uuid.NewString(), nil
}

func idempotencyKey(serviceRequestReference string, key string) string {
	return serviceRequestReference + "|" + key
}

func cloneGroup(group entities.ServiceRequest) entities.ServiceRequest {
	out := group
	out.Fees = make([]entities.Fee, len(group.Fees))
	copy(out.Fees, group.Fees)
	return out
}
