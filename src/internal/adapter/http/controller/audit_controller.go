package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/api-sage/ledger-core/src/internal/adapter/http/models"
	"github.com/api-sage/ledger-core/src/internal/domain"
)

type AuditService interface {
	Recent(ctx context.Context, limit int) ([]domain.AuditRecord, error)
	BySeverity(ctx context.Context, severity string, limit int) ([]domain.AuditRecord, error)
	ByResource(ctx context.Context, resourceType string, resourceID string, limit int) ([]domain.AuditRecord, error)
}

type AuditController struct {
	service AuditService
}

func NewAuditController(service AuditService) *AuditController {
	return &AuditController{service: service}
}

func (c *AuditController) RegisterRoutes(mux *http.ServeMux, authMiddleware func(http.Handler) http.Handler) {
	mux.Handle("/audit/recent", protect(c.recent, authMiddleware))
	mux.Handle("/audit/severity", protect(c.bySeverity, authMiddleware))
	mux.Handle("/audit/resource", protect(c.byResource, authMiddleware))
}

func (c *AuditController) recent(w http.ResponseWriter, r *http.Request) {
	c.list(w, r, func(ctx context.Context) ([]domain.AuditRecord, error) {
		return c.service.Recent(ctx, queryLimit(r))
	})
}

func (c *AuditController) bySeverity(w http.ResponseWriter, r *http.Request) {
	c.list(w, r, func(ctx context.Context) ([]domain.AuditRecord, error) {
		return c.service.BySeverity(ctx, r.URL.Query().Get("level"), queryLimit(r))
	})
}

func (c *AuditController) byResource(w http.ResponseWriter, r *http.Request) {
	c.list(w, r, func(ctx context.Context) ([]domain.AuditRecord, error) {
		query := r.URL.Query()
		return c.service.ByResource(ctx, query.Get("type"), query.Get("id"), queryLimit(r))
	})
}

func (c *AuditController) list(w http.ResponseWriter, r *http.Request, fetch func(ctx context.Context) ([]domain.AuditRecord, error)) {
	start := time.Now()
	logRequest(r, nil)

	if r.Method != http.MethodGet {
		writeFailure[[]models.AuditRecordResponse](w, r, http.StatusMethodNotAllowed, start, "method not allowed")
		return
	}

	records, err := fetch(r.Context())
	if err != nil {
		writeServiceError[[]models.AuditRecordResponse](w, r, err, start)
		return
	}

	writeSuccess(w, r, http.StatusOK, "audit records retrieved", models.NewAuditRecordResponses(records), start)
}
