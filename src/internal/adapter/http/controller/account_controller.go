package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/api-sage/ledger-core/src/internal/adapter/http/models"
	"github.com/api-sage/ledger-core/src/internal/domain"
	"github.com/api-sage/ledger-core/src/internal/usecase/service_interfaces"
)

type AccountService interface {
	CreateAccount(ctx context.Context, cmd service_interfaces.CreateAccountCommand) (domain.Account, error)
	GetAccount(ctx context.Context, id string) (domain.Account, error)
	GetAccountByNumber(ctx context.Context, accountNumber string) (domain.Account, error)
	ListActiveAccountsByOwner(ctx context.Context, ownerID string) ([]domain.Account, error)
	UpdateStatus(ctx context.Context, id string, status domain.AccountStatus, actorID string) (domain.Account, error)
	Deposit(ctx context.Context, cmd service_interfaces.MovementCommand) (domain.Transaction, error)
	Withdraw(ctx context.Context, cmd service_interfaces.MovementCommand) (domain.Transaction, error)
}

type AccountController struct {
	service AccountService
}

func NewAccountController(service AccountService) *AccountController {
	return &AccountController{service: service}
}

func (c *AccountController) RegisterRoutes(mux *http.ServeMux, authMiddleware func(http.Handler) http.Handler) {
	mux.Handle("/accounts", protect(c.accounts, authMiddleware))
	mux.Handle("/accounts/owner", protect(c.listByOwner, authMiddleware))
	mux.Handle("/accounts/status", protect(c.updateStatus, authMiddleware))
	mux.Handle("/accounts/deposit", protect(c.deposit, authMiddleware))
	mux.Handle("/accounts/withdraw", protect(c.withdraw, authMiddleware))
}

func (c *AccountController) accounts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		c.createAccount(w, r)
	case http.MethodGet:
		c.getAccount(w, r)
	default:
		start := time.Now()
		writeFailure[models.AccountResponse](w, r, http.StatusMethodNotAllowed, start, "method not allowed")
	}
}

func (c *AccountController) createAccount(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req models.CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logError(r, err, nil)
		writeFailure[models.AccountResponse](w, r, http.StatusBadRequest, start, "invalid request body", err.Error())
		return
	}
	logRequest(r, req)

	if err := req.Validate(); err != nil {
		writeFailure[models.AccountResponse](w, r, http.StatusBadRequest, start, "validation failed", err.Error())
		return
	}

	account, err := c.service.CreateAccount(r.Context(), req.ToCommand(actorID(r)))
	if err != nil {
		writeServiceError[models.AccountResponse](w, r, err, start)
		return
	}

	writeSuccess(w, r, http.StatusCreated, "account created", models.NewAccountResponse(account), start)
}

func (c *AccountController) getAccount(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logRequest(r, nil)

	id := strings.TrimSpace(r.URL.Query().Get("id"))
	number := strings.TrimSpace(r.URL.Query().Get("number"))

	var (
		account domain.Account
		err     error
	)
	switch {
	case id != "":
		account, err = c.service.GetAccount(r.Context(), id)
	case number != "":
		account, err = c.service.GetAccountByNumber(r.Context(), number)
	default:
		writeFailure[models.AccountResponse](w, r, http.StatusBadRequest, start, "validation failed", "id or number query parameter is required")
		return
	}
	if err != nil {
		writeServiceError[models.AccountResponse](w, r, err, start)
		return
	}

	writeSuccess(w, r, http.StatusOK, "account retrieved", models.NewAccountResponse(account), start)
}

func (c *AccountController) listByOwner(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logRequest(r, nil)

	if r.Method != http.MethodGet {
		writeFailure[[]models.AccountResponse](w, r, http.StatusMethodNotAllowed, start, "method not allowed")
		return
	}

	accounts, err := c.service.ListActiveAccountsByOwner(r.Context(), r.URL.Query().Get("ownerId"))
	if err != nil {
		writeServiceError[[]models.AccountResponse](w, r, err, start)
		return
	}

	writeSuccess(w, r, http.StatusOK, "accounts retrieved", models.NewAccountResponses(accounts), start)
}

func (c *AccountController) updateStatus(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if r.Method != http.MethodPost {
		writeFailure[models.AccountResponse](w, r, http.StatusMethodNotAllowed, start, "method not allowed")
		return
	}

	var req models.UpdateAccountStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logError(r, err, nil)
		writeFailure[models.AccountResponse](w, r, http.StatusBadRequest, start, "invalid request body", err.Error())
		return
	}
	logRequest(r, req)

	if err := req.Validate(); err != nil {
		writeFailure[models.AccountResponse](w, r, http.StatusBadRequest, start, "validation failed", err.Error())
		return
	}

	account, err := c.service.UpdateStatus(r.Context(), req.AccountID, domain.AccountStatus(req.Status), actorID(r))
	if err != nil {
		writeServiceError[models.AccountResponse](w, r, err, start)
		return
	}

	writeSuccess(w, r, http.StatusOK, "account status updated", models.NewAccountResponse(account), start)
}

func (c *AccountController) deposit(w http.ResponseWriter, r *http.Request) {
	c.movement(w, r, c.service.Deposit, "deposit completed")
}

func (c *AccountController) withdraw(w http.ResponseWriter, r *http.Request) {
	c.movement(w, r, c.service.Withdraw, "withdrawal completed")
}

func (c *AccountController) movement(
	w http.ResponseWriter,
	r *http.Request,
	post func(ctx context.Context, cmd service_interfaces.MovementCommand) (domain.Transaction, error),
	message string,
) {
	start := time.Now()
	if r.Method != http.MethodPost {
		writeFailure[models.TransactionResponse](w, r, http.StatusMethodNotAllowed, start, "method not allowed")
		return
	}

	var req models.MovementRequest
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

	tx, err := post(r.Context(), req.ToCommand(actorID(r)))
	if err != nil {
		writeServiceError[models.TransactionResponse](w, r, err, start)
		return
	}

	writeSuccess(w, r, http.StatusOK, message, models.NewTransactionResponse(tx), start)
}
