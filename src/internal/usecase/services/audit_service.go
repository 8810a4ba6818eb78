package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/api-sage/ledger-core/src/internal/domain"
	"github.com/api-sage/ledger-core/src/internal/logger"
	"github.com/google/uuid"
)

const auditWriteTimeout = 3 * time.Second

type AuditService struct {
	sink   domain.AuditSink
	reader domain.AuditReader
	clock  domain.Clock
}

func NewAuditService(sink domain.AuditSink, reader domain.AuditReader, clock domain.Clock) *AuditService {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &AuditService{sink: sink, reader: reader, clock: clock}
}

// Record never fails the caller. The write is detached from the request
// context so a finished request does not cancel it.
func (s *AuditService) Record(ctx context.Context, entry domain.AuditRecord) {
	if s == nil || s.sink == nil {
		return
	}

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = s.clock.Now()
	}
	if entry.Severity == "" {
		entry.Severity = domain.SeverityInfo
	}
	entry.Detail = truncateDetail(entry.Detail)

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditWriteTimeout)
	defer cancel()

	if err := s.sink.Record(writeCtx, entry); err != nil {
		logger.Error("audit service record failed", err, logger.Fields{
			"action":       entry.Action,
			"resourceType": entry.ResourceType,
			"resourceId":   entry.ResourceID,
		})
		return
	}

	logger.Debug("audit service record success", logger.Fields{
		"auditId": entry.ID,
		"action":  entry.Action,
	})
}

func (s *AuditService) Recent(ctx context.Context, limit int) ([]domain.AuditRecord, error) {
	records, err := s.reader.Recent(ctx, clampLimit(limit))
	if err != nil {
		logger.Error("audit service recent failed", err, nil)
		return nil, storeFailure("recent audit records", err)
	}
	return records, nil
}

func (s *AuditService) BySeverity(ctx context.Context, severity string, limit int) ([]domain.AuditRecord, error) {
	level := domain.Severity(strings.ToUpper(strings.TrimSpace(severity)))
	if !level.Valid() {
		return nil, &domain.ValidationError{Errors: []string{fmt.Sprintf("unknown severity %q", severity)}}
	}

	records, err := s.reader.BySeverity(ctx, level, clampLimit(limit))
	if err != nil {
		logger.Error("audit service by severity failed", err, logger.Fields{"severity": level})
		return nil, storeFailure("audit records by severity", err)
	}
	return records, nil
}

func (s *AuditService) ByResource(ctx context.Context, resourceType string, resourceID string, limit int) ([]domain.AuditRecord, error) {
	resourceType = strings.ToUpper(strings.TrimSpace(resourceType))
	resourceID = strings.TrimSpace(resourceID)

	var errs []string
	if resourceType == "" {
		errs = append(errs, "resource type is required")
	}
	if resourceID == "" {
		errs = append(errs, "resource id is required")
	}
	if len(errs) > 0 {
		return nil, &domain.ValidationError{Errors: errs}
	}

	records, err := s.reader.ByResource(ctx, resourceType, resourceID, clampLimit(limit))
	if err != nil {
		logger.Error("audit service by resource failed", err, logger.Fields{
			"resourceType": resourceType,
			"resourceId":   resourceID,
		})
		return nil, storeFailure("audit records by resource", err)
	}
	return records, nil
}

// truncateDetail cuts to MaxAuditDetailLength bytes without splitting a rune;
// the immudb column limit counts bytes.
func truncateDetail(detail string) string {
	if len(detail) <= domain.MaxAuditDetailLength {
		return detail
	}
	cut := domain.MaxAuditDetailLength
	for cut > 0 && !utf8.RuneStart(detail[cut]) {
		cut--
	}
	return detail[:cut]
}
