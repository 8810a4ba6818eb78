package models

import "github.com/api-sage/ledger-core/src/internal/domain"

type AuditRecordResponse struct {
	ID           string `json:"id"`
	ActorID      string `json:"actorId"`
	Action       string `json:"action"`
	ResourceType string `json:"resourceType"`
	ResourceID   string `json:"resourceId"`
	Severity     string `json:"severity"`
	Detail       string `json:"detail"`
	RecordedAt   string `json:"recordedAt"`
}

func NewAuditRecordResponses(records []domain.AuditRecord) []AuditRecordResponse {
	out := make([]AuditRecordResponse, 0, len(records))
	for _, record := range records {
		out = append(out, AuditRecordResponse{
			ID:           record.ID,
			ActorID:      record.ActorID,
			Action:       record.Action,
			ResourceType: record.ResourceType,
			ResourceID:   record.ResourceID,
			Severity:     string(record.Severity),
			Detail:       record.Detail,
			RecordedAt:   formatTime(record.RecordedAt),
		})
	}
	return out
}
