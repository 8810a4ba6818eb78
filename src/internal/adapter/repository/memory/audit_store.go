package memory

import (
	"context"
	"sync"

	"github.com/api-sage/ledger-core/src/internal/domain"
	"github.com/google/uuid"
)

type AuditStore struct {
	mu      sync.RWMutex
	records []domain.AuditRecord
}

func NewAuditStore() *AuditStore {
	return &AuditStore{}
}

func (s *AuditStore) Record(_ context.Context, record domain.AuditRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}

	s.mu.Lock()
	s.records = append(s.records, record)
	s.mu.Unlock()
	return nil
}

func (s *AuditStore) Recent(_ context.Context, limit int) ([]domain.AuditRecord, error) {
	return s.filter(limit, func(domain.AuditRecord) bool { return true }), nil
}

func (s *AuditStore) BySeverity(_ context.Context, severity domain.Severity, limit int) ([]domain.AuditRecord, error) {
	return s.filter(limit, func(r domain.AuditRecord) bool { return r.Severity == severity }), nil
}

func (s *AuditStore) ByResource(_ context.Context, resourceType string, resourceID string, limit int) ([]domain.AuditRecord, error) {
	return s.filter(limit, func(r domain.AuditRecord) bool {
		return r.ResourceType == resourceType && r.ResourceID == resourceID
	}), nil
}

// filter walks newest first.
func (s *AuditStore) filter(limit int, keep func(domain.AuditRecord) bool) []domain.AuditRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.AuditRecord, 0)
	for i := len(s.records) - 1; i >= 0; i-- {
		if !keep(s.records[i]) {
			continue
		}
		out = append(out, s.records[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
