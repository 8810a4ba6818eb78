package controller_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/api-sage/ledger-core/src/internal/adapter/http/controller"
	"github.com/api-sage/ledger-core/src/internal/adapter/http/models"
	"github.com/api-sage/ledger-core/src/internal/adapter/http/router"
	"github.com/api-sage/ledger-core/src/internal/commons"
	"github.com/api-sage/ledger-core/src/internal/domain"
	"github.com/api-sage/ledger-core/src/internal/usecase/service_interfaces"
	"github.com/api-sage/ledger-core/src/internal/usecase/services"
	"github.com/shopspring/decimal"
)

type transferServiceStub struct {
	transferFn func(ctx context.Context, cmd service_interfaces.TransferCommand) (domain.Transaction, error)
}

func (s transferServiceStub) Transfer(ctx context.Context, cmd service_interfaces.TransferCommand) (domain.Transaction, error) {
	return s.transferFn(ctx, cmd)
}

type accountServiceStub struct {
	service_interfaces.AccountService
	getAccountFn func(ctx context.Context, id string) (domain.Account, error)
	withdrawFn   func(ctx context.Context, cmd service_interfaces.MovementCommand) (domain.Transaction, error)
	byOwnerFn    func(ctx context.Context, ownerID string) ([]domain.Account, error)
}

func (s accountServiceStub) GetAccount(ctx context.Context, id string) (domain.Account, error) {
	return s.getAccountFn(ctx, id)
}

func (s accountServiceStub) ListActiveAccountsByOwner(ctx context.Context, ownerID string) ([]domain.Account, error) {
	return s.byOwnerFn(ctx, ownerID)
}

func (s accountServiceStub) Withdraw(ctx context.Context, cmd service_interfaces.MovementCommand) (domain.Transaction, error) {
	return s.withdrawFn(ctx, cmd)
}

type auditServiceStub struct {
	bySeverityFn func(ctx context.Context, severity string, limit int) ([]domain.AuditRecord, error)
}

func (s auditServiceStub) Recent(context.Context, int) ([]domain.AuditRecord, error) {
	return nil, nil
}

func (s auditServiceStub) BySeverity(ctx context.Context, severity string, limit int) ([]domain.AuditRecord, error) {
	return s.bySeverityFn(ctx, severity, limit)
}

func (s auditServiceStub) ByResource(context.Context, string, string, int) ([]domain.AuditRecord, error) {
	return nil, nil
}

type pingerStub struct{ err error }

func (p pingerStub) PingContext(context.Context) error { return p.err }

func serve(t *testing.T, mux *http.ServeMux, method, target, body string) (*httptest.ResponseRecorder, commons.Response[json.RawMessage]) {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("X-Actor-ID", "teller-7")
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	var envelope commons.Response[json.RawMessage]
	if err := json.Unmarshal(rr.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("expected JSON envelope, got %q: %v", rr.Body.String(), err)
	}
	return rr, envelope
}

func completedTransfer() domain.Transaction {
	target := "acc-b"
	return domain.Transaction{
		AuditMetadata:   domain.AuditMetadata{ID: "tx-1"},
		ReferenceNumber: "260401100000001ABCDE",
		SourceAccountID: "acc-a",
		TargetAccountID: &target,
		Amount:          decimal.RequireFromString("25"),
		FeeAmount:       decimal.Zero,
		Currency:        "USD",
		Type:            domain.TransactionTypeTransfer,
		Status:          domain.TransactionStatusCompleted,
		ActorID:         "teller-7",
	}
}

func TestTransfer_Success(t *testing.T) {
	var got service_interfaces.TransferCommand
	mux := router.New(router.Controllers{
		Transfer: controller.NewTransferController(transferServiceStub{
			transferFn: func(_ context.Context, cmd service_interfaces.TransferCommand) (domain.Transaction, error) {
				got = cmd
				return completedTransfer(), nil
			},
		}),
	}, nil)

	rr, envelope := serve(t, mux, http.MethodPost, "/transfer-funds", `{"sourceAccountId":"acc-a","targetAccountId":"acc-b","amount":"25.00"}`)

	if rr.Code != http.StatusOK || !envelope.Success {
		t.Fatalf("expected 200 success, got %d %+v", rr.Code, envelope)
	}
	if got.ActorID != "teller-7" || !got.Amount.Equal(decimal.RequireFromString("25")) {
		t.Fatalf("unexpected command: %+v", got)
	}

	var data models.TransactionResponse
	if err := json.Unmarshal(*envelope.Data, &data); err != nil {
		t.Fatalf("expected transaction payload, got %v", err)
	}
	if data.Amount != "25.00" || data.Status != "COMPLETED" || data.TargetAccountID != "acc-b" {
		t.Fatalf("unexpected payload: %+v", data)
	}
}

func TestTransfer_ErrorKindsMapToStatus(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{&domain.ValidationError{Errors: []string{"amount must be greater than zero"}}, http.StatusBadRequest},
		{fmt.Errorf("%w: acc-x", domain.ErrAccountNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: frozen", domain.ErrAccountInactive), http.StatusConflict},
		{&domain.InsufficientFundsError{AccountID: "acc-a", Available: decimal.Zero, Requested: decimal.NewFromInt(1)}, http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: limit", domain.ErrDailyLimitExceeded), http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: retries", domain.ErrConcurrencyConflict), http.StatusConflict},
		{fmt.Errorf("%w: db down", domain.ErrPersistenceUnavailable), http.StatusServiceUnavailable},
		{errors.New("surprise"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		mux := router.New(router.Controllers{
			Transfer: controller.NewTransferController(transferServiceStub{
				transferFn: func(context.Context, service_interfaces.TransferCommand) (domain.Transaction, error) {
					return domain.Transaction{}, tc.err
				},
			}),
		}, nil)

		rr, envelope := serve(t, mux, http.MethodPost, "/transfer-funds", `{"sourceAccountId":"acc-a","targetAccountId":"acc-b","amount":"1"}`)
		if rr.Code != tc.status || envelope.Success {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.status, rr.Code)
		}
	}
}

func TestTransfer_FailedTransactionIsReturned(t *testing.T) {
	cancelled := completedTransfer()
	cancelled.Status = domain.TransactionStatusCancelled
	mux := router.New(router.Controllers{
		Transfer: controller.NewTransferController(transferServiceStub{
			transferFn: func(context.Context, service_interfaces.TransferCommand) (domain.Transaction, error) {
				return domain.Transaction{}, &services.TransferFailedError{
					Transaction: cancelled,
					Err:         fmt.Errorf("%w: gave up", domain.ErrConcurrencyConflict),
				}
			},
		}),
	}, nil)

	rr, envelope := serve(t, mux, http.MethodPost, "/transfer-funds", `{"sourceAccountId":"acc-a","targetAccountId":"acc-b","amount":"1"}`)
	if rr.Code != http.StatusConflict || envelope.Data == nil {
		t.Fatalf("expected 409 with the cancelled transaction, got %d %+v", rr.Code, envelope)
	}
	if !strings.Contains(string(*envelope.Data), `"status":"CANCELLED"`) {
		t.Fatalf("expected CANCELLED payload, got %s", *envelope.Data)
	}
}

func TestTransfer_RejectsBadRequests(t *testing.T) {
	mux := router.New(router.Controllers{
		Transfer: controller.NewTransferController(transferServiceStub{
			transferFn: func(context.Context, service_interfaces.TransferCommand) (domain.Transaction, error) {
				t.Fatal("service must not be called")
				return domain.Transaction{}, nil
			},
		}),
	}, nil)

	if rr, _ := serve(t, mux, http.MethodGet, "/transfer-funds", ""); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
	if rr, _ := serve(t, mux, http.MethodPost, "/transfer-funds", "{"); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", rr.Code)
	}
	rr, envelope := serve(t, mux, http.MethodPost, "/transfer-funds", `{"sourceAccountId":"acc-a","targetAccountId":"acc-a","amount":"abc"}`)
	if rr.Code != http.StatusBadRequest || len(envelope.Errors) != 1 || !strings.Contains(envelope.Errors[0], "must differ") {
		t.Fatalf("expected validation failure, got %d %+v", rr.Code, envelope)
	}
}

func TestAccounts_GetAndWithdraw(t *testing.T) {
	account := domain.NewAccount("acc-a", "1234567890", "owner-1", "USD", completedTransfer().CreatedAt)
	account.Balance = decimal.RequireFromString("10.5")

	mux := router.New(router.Controllers{
		Account: controller.NewAccountController(accountServiceStub{
			getAccountFn: func(_ context.Context, id string) (domain.Account, error) {
				if id != "acc-a" {
					return domain.Account{}, domain.ErrAccountNotFound
				}
				return account, nil
			},
			withdrawFn: func(_ context.Context, cmd service_interfaces.MovementCommand) (domain.Transaction, error) {
				return domain.Transaction{}, fmt.Errorf("%w: 24h window", domain.ErrDailyLimitExceeded)
			},
		}),
	}, nil)

	rr, envelope := serve(t, mux, http.MethodGet, "/accounts?id=acc-a", "")
	if rr.Code != http.StatusOK || !strings.Contains(string(*envelope.Data), `"balance":"10.50"`) {
		t.Fatalf("expected account payload, got %d %s", rr.Code, rr.Body.String())
	}

	if rr, _ := serve(t, mux, http.MethodGet, "/accounts?id=missing", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if rr, _ := serve(t, mux, http.MethodGet, "/accounts", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without id or number, got %d", rr.Code)
	}

	rr, envelope = serve(t, mux, http.MethodPost, "/accounts/withdraw", `{"accountId":"acc-a","amount":"5"}`)
	if rr.Code != http.StatusUnprocessableEntity || envelope.Message != "daily limit exceeded" || envelope.Kind != "DAILY_LIMIT_EXCEEDED" {
		t.Fatalf("expected 422 daily limit, got %d %+v", rr.Code, envelope)
	}
}

func TestAccounts_ListByOwner(t *testing.T) {
	var gotOwner string
	mux := router.New(router.Controllers{
		Account: controller.NewAccountController(accountServiceStub{
			byOwnerFn: func(_ context.Context, ownerID string) ([]domain.Account, error) {
				gotOwner = ownerID
				if strings.TrimSpace(ownerID) == "" {
					return nil, &domain.ValidationError{Errors: []string{"ownerId is required"}}
				}
				return []domain.Account{
					domain.NewAccount("acc-a", "1234567890", ownerID, "USD", completedTransfer().CreatedAt),
					domain.NewAccount("acc-b", "1234567891", ownerID, "EUR", completedTransfer().CreatedAt),
				}, nil
			},
		}),
	}, nil)

	rr, envelope := serve(t, mux, http.MethodGet, "/accounts/owner?ownerId=owner-1", "")
	if rr.Code != http.StatusOK || gotOwner != "owner-1" {
		t.Fatalf("unexpected call: %d %q", rr.Code, gotOwner)
	}
	var accounts []models.AccountResponse
	if err := json.Unmarshal(*envelope.Data, &accounts); err != nil || len(accounts) != 2 || accounts[1].Currency != "EUR" {
		t.Fatalf("expected two accounts, got %s %v", *envelope.Data, err)
	}

	if rr, _ := serve(t, mux, http.MethodGet, "/accounts/owner", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without ownerId, got %d", rr.Code)
	}
	if rr, _ := serve(t, mux, http.MethodPost, "/accounts/owner?ownerId=owner-1", ""); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}

func TestAudit_BySeverityPassesQuery(t *testing.T) {
	var gotLevel string
	var gotLimit int
	mux := router.New(router.Controllers{
		Audit: controller.NewAuditController(auditServiceStub{
			bySeverityFn: func(_ context.Context, severity string, limit int) ([]domain.AuditRecord, error) {
				gotLevel, gotLimit = severity, limit
				return []domain.AuditRecord{{ID: "a-1", Severity: domain.SeverityWarn}}, nil
			},
		}),
	}, nil)

	rr, envelope := serve(t, mux, http.MethodGet, "/audit/severity?level=warn&limit=5", "")
	if rr.Code != http.StatusOK || gotLevel != "warn" || gotLimit != 5 {
		t.Fatalf("unexpected call: %d %q %d", rr.Code, gotLevel, gotLimit)
	}

	var records []models.AuditRecordResponse
	if err := json.Unmarshal(*envelope.Data, &records); err != nil || len(records) != 1 {
		t.Fatalf("expected one record, got %s %v", *envelope.Data, err)
	}
}

func TestHealth_IsUnauthenticated(t *testing.T) {
	denyAll := func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
	}

	mux := router.New(router.Controllers{
		Health: controller.NewHealthController("memory", nil),
	}, denyAll)
	if rr, envelope := serve(t, mux, http.MethodGet, "/health", ""); rr.Code != http.StatusOK || !envelope.Success {
		t.Fatalf("expected healthy, got %d", rr.Code)
	}

	mux = router.New(router.Controllers{
		Health: controller.NewHealthController("postgres", pingerStub{err: errors.New("connection refused")}),
	}, denyAll)
	if rr, _ := serve(t, mux, http.MethodGet, "/health", ""); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}
