package controller

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/api-sage/ledger-core/src/internal/adapter/http/models"
	"github.com/api-sage/ledger-core/src/internal/domain"
)

type TransactionService interface {
	GetTransaction(ctx context.Context, id string) (domain.Transaction, error)
	GetTransactionByReference(ctx context.Context, referenceNumber string) (domain.Transaction, error)
	ListAccountTransactions(ctx context.Context, accountID string, limit int) ([]domain.Transaction, error)
}

type TransactionController struct {
	service TransactionService
}

func NewTransactionController(service TransactionService) *TransactionController {
	return &TransactionController{service: service}
}

func (c *TransactionController) RegisterRoutes(mux *http.ServeMux, authMiddleware func(http.Handler) http.Handler) {
	mux.Handle("/transactions", protect(c.getTransaction, authMiddleware))
	mux.Handle("/transactions/account", protect(c.listByAccount, authMiddleware))
}

func (c *TransactionController) getTransaction(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logRequest(r, nil)

	if r.Method != http.MethodGet {
		writeFailure[models.TransactionResponse](w, r, http.StatusMethodNotAllowed, start, "method not allowed")
		return
	}

	id := strings.TrimSpace(r.URL.Query().Get("id"))
	reference := strings.TrimSpace(r.URL.Query().Get("reference"))

	var (
		tx  domain.Transaction
		err error
	)
	switch {
	case id != "":
		tx, err = c.service.GetTransaction(r.Context(), id)
	case reference != "":
		tx, err = c.service.GetTransactionByReference(r.Context(), reference)
	default:
		writeFailure[models.TransactionResponse](w, r, http.StatusBadRequest, start, "validation failed", "id or reference query parameter is required")
		return
	}
	if err != nil {
		writeServiceError[models.TransactionResponse](w, r, err, start)
		return
	}

	writeSuccess(w, r, http.StatusOK, "transaction retrieved", models.NewTransactionResponse(tx), start)
}

func (c *TransactionController) listByAccount(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logRequest(r, nil)

	if r.Method != http.MethodGet {
		writeFailure[[]models.TransactionResponse](w, r, http.StatusMethodNotAllowed, start, "method not allowed")
		return
	}

	txs, err := c.service.ListAccountTransactions(r.Context(), r.URL.Query().Get("accountId"), queryLimit(r))
	if err != nil {
		writeServiceError[[]models.TransactionResponse](w, r, err, start)
		return
	}

	writeSuccess(w, r, http.StatusOK, "transactions retrieved", models.NewTransactionResponses(txs), start)
}
