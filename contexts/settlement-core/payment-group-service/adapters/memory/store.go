package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"courtpay/contexts/settlement-core/payment-group-service/domain/entities"
	domainerrors "courtpay/contexts/settlement-core/payment-group-service/domain/errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Store is the in-memory adapter backing unit tests and local runs. It
// satisfies every port of the payment-group module.
type Store struct {
	mu sync.RWMutex

	groups       map[string]entities.PaymentGroup
	remissions   map[string]entities.Remission
	serviceCodes map[string]string
}

func NewStore() *Store {
	return &Store{
		groups:       make(map[string]entities.PaymentGroup),
		remissions:   make(map[string]entities.Remission),
		serviceCodes: make(map[string]string),
	}
}

func (s *Store) CreateGroup(_ context.Context, group entities.PaymentGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ref := strings.TrimSpace(group.GroupReference)
	if ref == "" {
		return domainerrors.ErrInvalidGroupInput
	}
	if _, exists := s.groups[ref]; exists {
		return domainerrors.ErrInvalidGroupInput
	}
	s.groups[ref] = cloneGroup(group)
	return nil
}

func (s *Store) GetGroup(_ context.Context, groupReference string) (entities.PaymentGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	group, ok := s.groups[strings.TrimSpace(groupReference)]
	if !ok {
		return entities.PaymentGroup{}, domainerrors.ErrGroupNotFound
	}
	return cloneGroup(group), nil
}

func (s *Store) AppendFee(_ context.Context, fee entities.Fee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	group, ok := s.groups[fee.GroupReference]
	if !ok {
		return domainerrors.ErrGroupNotFound
	}
	group.Fees = append(group.Fees, fee)
	group.UpdatedAt = fee.UpdatedAt
	s.groups[fee.GroupReference] = group
	return nil
}

func (s *Store) SaveRemission(_ context.Context, remission entities.Remission, fee entities.Fee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	group, ok := s.groups[remission.GroupReference]
	if !ok {
		return domainerrors.ErrGroupNotFound
	}
	replaced := false
	for i := range group.Fees {
		if group.Fees[i].FeeID == fee.FeeID {
			group.Fees[i] = fee
			replaced = true
			break
		}
	}
	if !replaced {
		return domainerrors.ErrFeeNotFound
	}
	group.UpdatedAt = fee.UpdatedAt
	s.groups[remission.GroupReference] = group
	s.remissions[remission.RemissionReference] = remission
	return nil
}

func (s *Store) GetRemission(_ context.Context, remissionReference string) (entities.Remission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	remission, ok := s.remissions[strings.TrimSpace(remissionReference)]
	if !ok {
		return entities.Remission{}, domainerrors.ErrRemissionNotFound
	}
	return remission, nil
}

func (s *Store) ListRemissionsByFee(_ context.Context, feeID string) ([]entities.Remission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.Remission, 0)
	for _, remission := range s.remissions {
		if remission.FeeID == strings.TrimSpace(feeID) {
			items = append(items, remission)
		}
	}
	return items, nil
}

// AllocateFee seeds a settled balance on one fee, standing in for the
// apportionment the settlement context writes against the shared tables.
func (s *Store) AllocateFee(groupReference string, feeCode string, amount decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ref := strings.TrimSpace(groupReference)
	group, ok := s.groups[ref]
	if !ok {
		return
	}
	for i := range group.Fees {
		if group.Fees[i].Code == strings.TrimSpace(feeCode) {
			group.Fees[i].AllocatedAmount = group.Fees[i].AllocatedAmount.Add(amount)
			group.Fees[i].AmountDue = group.Fees[i].AmountDue.Sub(amount)
		}
	}
	s.groups[ref] = group
}

// RegisterServiceCode seeds the case-type lookup used by ServiceCodeForCaseType.
func (s *Store) RegisterServiceCode(caseType string, serviceCode string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.serviceCodes[strings.ToLower(strings.TrimSpace(caseType))] = strings.TrimSpace(serviceCode)
}

func (s *Store) ServiceCodeForCaseType(_ context.Context, caseType string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	code, ok := s.serviceCodes[strings.ToLower(strings.TrimSpace(caseType))]
	if !ok {
		return "", domainerrors.ErrNoServiceFound
	}
	return code, nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func cloneGroup(group entities.PaymentGroup) entities.PaymentGroup {
	copied := group
	copied.Fees = append([]entities.Fee(nil), group.Fees...)
	return copied
}
