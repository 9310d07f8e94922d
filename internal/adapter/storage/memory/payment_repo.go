package memory

import (
	"context"
	"time"

	"marketplace-settlement/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// PaymentRepo implements ports.PaymentRepository.
type PaymentRepo struct {
	store *Store
}

// NewPaymentRepo creates a payment repository over store.
func NewPaymentRepo(store *Store) *PaymentRepo {
	return &PaymentRepo{store: store}
}

func (r *PaymentRepo) Create(_ context.Context, p *domain.PaymentRecord) (bool, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.payments[p.OrderID]; exists {
		return false, nil
	}
	cp := *p
	s.payments[p.OrderID] = &cp
	if p.ProviderTransactionID != nil {
		s.paymentByTxID[*p.ProviderTransactionID] = p.OrderID
	}
	return true, nil
}

func (r *PaymentRepo) GetByOrderID(_ context.Context, orderID string) (*domain.PaymentRecord, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.payment(orderID), nil
}

func (r *PaymentRepo) GetByProviderTransactionID(_ context.Context, transactionID string) (*domain.PaymentRecord, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	orderID, ok := s.paymentByTxID[transactionID]
	if !ok {
		return nil, nil
	}
	return s.payment(orderID), nil
}

func (r *PaymentRepo) MarkPaid(_ context.Context, tx pgx.Tx, orderID, transactionID string, paidAt time.Time) (bool, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[orderID]
	if !ok || p.Status != domain.PaymentStatusPending {
		return false, nil
	}
	if other, taken := s.paymentByTxID[transactionID]; taken && other != orderID {
		return false, domain.ErrTransactionIDUsed
	}

	prev := *p
	record(tx, func() {
		*p = prev
		delete(s.paymentByTxID, transactionID)
	})

	p.Status = domain.PaymentStatusPaid
	p.ProviderTransactionID = &transactionID
	p.PaidAt = &paidAt
	p.UpdatedAt = paidAt
	s.paymentByTxID[transactionID] = orderID
	return true, nil
}

func (r *PaymentRepo) MarkFailed(_ context.Context, orderID, reason string) (bool, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[orderID]
	if !ok || p.Status != domain.PaymentStatusPending {
		return false, nil
	}
	p.Status = domain.PaymentStatusFailed
	p.FailureReason = &reason
	p.UpdatedAt = time.Now().UTC()
	return true, nil
}

// payment returns a copy of the record. Caller holds s.mu.
func (s *Store) payment(orderID string) *domain.PaymentRecord {
	p, ok := s.payments[orderID]
	if !ok {
		return nil
	}
	cp := *p
	return &cp
}
