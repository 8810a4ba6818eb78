package immudb

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/api-sage/ledger-core/src/internal/domain"
	"github.com/api-sage/ledger-core/src/internal/logger"
	"github.com/codenotary/immudb/pkg/api/schema"
	"github.com/codenotary/immudb/pkg/client"
	"github.com/google/uuid"
)

const tableName = "audit_records"

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS audit_records (
		id VARCHAR[36] NOT NULL,
		actor_id VARCHAR[128] NOT NULL,
		action VARCHAR[64] NOT NULL,
		resource_type VARCHAR[32] NOT NULL,
		resource_id VARCHAR[128] NOT NULL,
		severity VARCHAR[10] NOT NULL,
		detail VARCHAR[500],
		recorded_at INTEGER NOT NULL,
		PRIMARY KEY id
	)`,
	`CREATE INDEX IF NOT EXISTS ON audit_records(recorded_at)`,
	`CREATE INDEX IF NOT EXISTS ON audit_records(severity, recorded_at)`,
	`CREATE INDEX IF NOT EXISTS ON audit_records(resource_type, resource_id, recorded_at)`,
}

// SQLClient is the part of the immudb session client the audit store uses.
type SQLClient interface {
	SQLExec(ctx context.Context, sql string, params map[string]interface{}) (*schema.SQLExecResult, error)
	SQLQuery(ctx context.Context, sql string, params map[string]interface{}, renewSnapshot bool) (*schema.SQLQueryResult, error)
	CloseSession(ctx context.Context) error
}

type Options struct {
	Address  string
	Port     int
	Username string
	Password string
	Database string
}

// AuditStore writes audit records to immudb, whose history is tamper
// evident, and reads them back for the audit queries.
type AuditStore struct {
	mu     sync.Mutex
	client SQLClient
}

// Open starts a session and makes sure the audit table exists.
func Open(ctx context.Context, opts Options) (*AuditStore, error) {
	c := client.NewClient().WithOptions(client.DefaultOptions().
		WithAddress(opts.Address).
		WithPort(opts.Port))

	if err := c.OpenSession(ctx, []byte(opts.Username), []byte(opts.Password), opts.Database); err != nil {
		return nil, fmt.Errorf("open immudb session: %w", err)
	}

	store := NewAuditStore(c)
	if err := store.EnsureSchema(ctx); err != nil {
		_ = c.CloseSession(ctx)
		return nil, err
	}

	logger.Info("immudb audit store ready", logger.Fields{
		"address":  opts.Address,
		"port":     opts.Port,
		"database": opts.Database,
	})
	return store, nil
}

func NewAuditStore(c SQLClient) *AuditStore {
	return &AuditStore{client: c}
}

func (s *AuditStore) EnsureSchema(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, stmt := range schemaStatements {
		if _, err := s.client.SQLExec(ctx, stmt, nil); err != nil {
			return fmt.Errorf("ensure immudb audit schema: %w", err)
		}
	}
	return nil
}

func (s *AuditStore) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client.CloseSession(ctx)
}

func (s *AuditStore) Record(ctx context.Context, record domain.AuditRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.RecordedAt.IsZero() {
		record.RecordedAt = time.Now().UTC()
	}

	const stmt = `INSERT INTO audit_records (id, actor_id, action, resource_type, resource_id, severity, detail, recorded_at)
VALUES (@id, @actor_id, @action, @resource_type, @resource_id, @severity, @detail, @recorded_at)`

	params := map[string]interface{}{
		"id":            record.ID,
		"actor_id":      record.ActorID,
		"action":        record.Action,
		"resource_type": record.ResourceType,
		"resource_id":   record.ResourceID,
		"severity":      string(record.Severity),
		"detail":        record.Detail,
		"recorded_at":   record.RecordedAt.UnixMicro(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.client.SQLExec(ctx, stmt, params); err != nil {
		return fmt.Errorf("insert immudb audit record: %w", err)
	}
	return nil
}

func (s *AuditStore) Recent(ctx context.Context, limit int) ([]domain.AuditRecord, error) {
	query := selectRecords("", limit)
	return s.query(ctx, query, nil)
}

func (s *AuditStore) BySeverity(ctx context.Context, severity domain.Severity, limit int) ([]domain.AuditRecord, error) {
	query := selectRecords("WHERE severity = @severity", limit)
	return s.query(ctx, query, map[string]interface{}{"severity": string(severity)})
}

func (s *AuditStore) ByResource(ctx context.Context, resourceType string, resourceID string, limit int) ([]domain.AuditRecord, error) {
	query := selectRecords("WHERE resource_type = @resource_type AND resource_id = @resource_id", limit)
	return s.query(ctx, query, map[string]interface{}{
		"resource_type": resourceType,
		"resource_id":   resourceID,
	})
}

func (s *AuditStore) query(ctx context.Context, query string, params map[string]interface{}) ([]domain.AuditRecord, error) {
	s.mu.Lock()
	result, err := s.client.SQLQuery(ctx, query, params, true)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("query immudb audit records: %w", err)
	}

	records := make([]domain.AuditRecord, 0, len(result.Rows))
	for _, row := range result.Rows {
		records = append(records, rowToRecord(row))
	}
	return records, nil
}

func selectRecords(where string, limit int) string {
	return fmt.Sprintf(
		"SELECT id, actor_id, action, resource_type, resource_id, severity, detail, recorded_at FROM %s %s ORDER BY recorded_at DESC LIMIT %d",
		tableName, where, limit,
	)
}

func rowToRecord(row *schema.Row) domain.AuditRecord {
	values := row.GetValues()
	get := func(i int) *schema.SQLValue {
		if i < len(values) {
			return values[i]
		}
		return nil
	}

	return domain.AuditRecord{
		ID:           get(0).GetS(),
		ActorID:      get(1).GetS(),
		Action:       get(2).GetS(),
		ResourceType: get(3).GetS(),
		ResourceID:   get(4).GetS(),
		Severity:     domain.Severity(get(5).GetS()),
		Detail:       get(6).GetS(),
		RecordedAt:   time.UnixMicro(get(7).GetN()).UTC(),
	}
}
