package service_interfaces

import (
	"context"

	"github.com/api-sage/ledger-core/src/internal/domain"
)

type AuditService interface {
	Record(ctx context.Context, entry domain.AuditRecord)
	Recent(ctx context.Context, limit int) ([]domain.AuditRecord, error)
	BySeverity(ctx context.Context, severity string, limit int) ([]domain.AuditRecord, error)
	ByResource(ctx context.Context, resourceType string, resourceID string, limit int) ([]domain.AuditRecord, error)
}
