package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/api-sage/ledger-core/src/internal/adapter/http/models"
	"github.com/api-sage/ledger-core/src/internal/domain"
	"github.com/api-sage/ledger-core/src/internal/usecase/service_interfaces"
	"github.com/api-sage/ledger-core/src/internal/usecase/services"
)

type TransferService interface {
	Transfer(ctx context.Context, cmd service_interfaces.TransferCommand) (domain.Transaction, error)
}

type TransferController struct {
	service TransferService
}

func NewTransferController(service TransferService) *TransferController {
	return &TransferController{service: service}
}

func (c *TransferController) RegisterRoutes(mux *http.ServeMux, authMiddleware func(http.Handler) http.Handler) {
	mux.Handle("/transfer-funds", protect(c.transfer, authMiddleware))
}

func (c *TransferController) transfer(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logRequest(r, nil)

	if r.Method != http.MethodPost {
		writeFailure[models.TransactionResponse](w, r, http.StatusMethodNotAllowed, start, "method not allowed")
		return
	}

	var req models.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logError(r, err, nil)
		writeFailure[models.TransactionResponse](w, r, http.StatusBadRequest, start, "invalid request body", err.Error())
		return
	}
	logRequest(r, req)

	if err := req.Validate(); err != nil {
		writeFailure[models.TransactionResponse](w, r, http.StatusBadRequest, start, "validation failed", err.Error())
		return
	}

	tx, err := c.service.Transfer(r.Context(), req.ToCommand(actorID(r)))
	if err != nil {
		// a transfer that reached the ledger returns its FAILED or CANCELLED entry
		var failed *services.TransferFailedError
		if errors.As(err, &failed) {
			logError(r, err, nil)
			status := statusFor(err)
			response := errorBody[models.TransactionResponse](err).WithData(models.NewTransactionResponse(failed.Transaction))
			writeJSON(w, status, response)
			logResponse(r, status, response, start)
			return
		}
		writeServiceError[models.TransactionResponse](w, r, err, start)
		return
	}

	writeSuccess(w, r, http.StatusOK, "transfer completed", models.NewTransactionResponse(tx), start)
}
