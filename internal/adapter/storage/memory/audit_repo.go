package memory

import (
	"context"

	"marketplace-settlement/internal/core/domain"
)

// AuditRepo implements ports.AuditRepository.
type AuditRepo struct {
	store *Store
}

// NewAuditRepo creates an audit repository over store.
func NewAuditRepo(store *Store) *AuditRepo {
	return &AuditRepo{store: store}
}

func (r *AuditRepo) Create(_ context.Context, log *domain.AuditLog) error {
	r.store.mu.Lock()
	r.store.audits = append(r.store.audits, *log)
	r.store.mu.Unlock()
	return nil
}

// Logs returns every recorded audit log, oldest first.
func (r *AuditRepo) Logs() []domain.AuditLog {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return append([]domain.AuditLog(nil), r.store.audits...)
}
