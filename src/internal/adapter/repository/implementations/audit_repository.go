package implementations

import (
	"context"
	"database/sql"
	"time"

	"github.com/api-sage/ledger-core/src/internal/domain"
	"github.com/api-sage/ledger-core/src/internal/logger"
	"github.com/google/uuid"
)

const auditColumns = `id, actor_id, action, resource_type, resource_id, severity, detail, recorded_at`

type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Record(ctx context.Context, record domain.AuditRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.RecordedAt.IsZero() {
		record.RecordedAt = time.Now().UTC()
	}

	const query = `
INSERT INTO audit_records (
	id,
	actor_id,
	action,
	resource_type,
	resource_id,
	severity,
	detail,
	recorded_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	if _, err := r.db.ExecContext(
		ctx,
		query,
		record.ID,
		record.ActorID,
		record.Action,
		record.ResourceType,
		record.ResourceID,
		record.Severity,
		record.Detail,
		record.RecordedAt,
	); err != nil {
		logger.Error("audit repository record failed", err, logger.Fields{
			"action":     record.Action,
			"resourceId": record.ResourceID,
		})
		return mapStoreError("record audit", err)
	}
	return nil
}

func (r *AuditRepository) Recent(ctx context.Context, limit int) ([]domain.AuditRecord, error) {
	query := `SELECT ` + auditColumns + ` FROM audit_records ORDER BY recorded_at DESC, id DESC LIMIT $1`
	return r.list(ctx, "recent audit records", query, limit)
}

func (r *AuditRepository) BySeverity(ctx context.Context, severity domain.Severity, limit int) ([]domain.AuditRecord, error) {
	query := `
SELECT ` + auditColumns + `
FROM audit_records
WHERE severity = $2
ORDER BY recorded_at DESC, id DESC
LIMIT $1`
	return r.list(ctx, "audit records by severity", query, limit, severity)
}

func (r *AuditRepository) ByResource(ctx context.Context, resourceType string, resourceID string, limit int) ([]domain.AuditRecord, error) {
	query := `
SELECT ` + auditColumns + `
FROM audit_records
WHERE resource_type = $2
  AND resource_id = $3
ORDER BY recorded_at DESC, id DESC
LIMIT $1`
	return r.list(ctx, "audit records by resource", query, limit, resourceType, resourceID)
}

func (r *AuditRepository) list(ctx context.Context, operation string, query string, limit int, args ...any) ([]domain.AuditRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, append([]any{limit}, args...)...)
	if err != nil {
		logger.Error("audit repository "+operation+" failed", err, nil)
		return nil, mapStoreError(operation, err)
	}
	defer rows.Close()

	records := make([]domain.AuditRecord, 0, limit)
	for rows.Next() {
		var record domain.AuditRecord
		if err := rows.Scan(
			&record.ID,
			&record.ActorID,
			&record.Action,
			&record.ResourceType,
			&record.ResourceID,
			&record.Severity,
			&record.Detail,
			&record.RecordedAt,
		); err != nil {
			return nil, mapStoreError("scan audit record", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, mapStoreError("iterate audit records", err)
	}
	return records, nil
}
