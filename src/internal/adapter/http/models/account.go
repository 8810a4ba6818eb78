package models

import (
	"errors"
	"strings"
	"time"

	"github.com/api-sage/ledger-core/src/internal/domain"
	"github.com/api-sage/ledger-core/src/internal/usecase/service_interfaces"
	"github.com/shopspring/decimal"
)

type CreateAccountRequest struct {
	OwnerID        string `json:"ownerId"`
	Currency       string `json:"currency"`
	InitialDeposit string `json:"initialDeposit,omitempty"`
	OverdraftLimit string `json:"overdraftLimit,omitempty"`
	MinimumBalance string `json:"minimumBalance,omitempty"`
	DailyLimit     string `json:"dailyLimit,omitempty"`
	InterestRate   string `json:"interestRate,omitempty"`
}

func (r CreateAccountRequest) Validate() error {
	var errs []string

	if strings.TrimSpace(r.OwnerID) == "" {
		errs = append(errs, "ownerId is required")
	}
	if len(strings.TrimSpace(r.Currency)) != 3 {
		errs = append(errs, "currency must be 3 characters")
	}

	for _, field := range []struct{ name, value string }{
		{"initialDeposit", r.InitialDeposit},
		{"overdraftLimit", r.OverdraftLimit},
		{"minimumBalance", r.MinimumBalance},
		{"dailyLimit", r.DailyLimit},
		{"interestRate", r.InterestRate},
	} {
		if msg := optionalAmountError(field.name, field.value); msg != "" {
			errs = append(errs, msg)
		}
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// ToCommand assumes Validate passed.
func (r CreateAccountRequest) ToCommand(actorID string) service_interfaces.CreateAccountCommand {
	return service_interfaces.CreateAccountCommand{
		OwnerID:        strings.TrimSpace(r.OwnerID),
		Currency:       strings.TrimSpace(r.Currency),
		InitialDeposit: parseOptional(r.InitialDeposit),
		OverdraftLimit: parseOptional(r.OverdraftLimit),
		MinimumBalance: parseOptional(r.MinimumBalance),
		DailyLimit:     parseOptional(r.DailyLimit),
		InterestRate:   parseOptional(r.InterestRate),
		ActorID:        actorID,
	}
}

type UpdateAccountStatusRequest struct {
	AccountID string `json:"accountId"`
	Status    string `json:"status"`
}

func (r UpdateAccountStatusRequest) Validate() error {
	var errs []string

	if strings.TrimSpace(r.AccountID) == "" {
		errs = append(errs, "accountId is required")
	}
	if !domain.AccountStatus(strings.ToUpper(strings.TrimSpace(r.Status))).Valid() {
		errs = append(errs, "status must be one of ACTIVE, FROZEN, CLOSED")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

type MovementRequest struct {
	AccountID   string `json:"accountId"`
	Amount      string `json:"amount"`
	Description string `json:"description,omitempty"`
}

func (r MovementRequest) Validate() error {
	var errs []string

	if strings.TrimSpace(r.AccountID) == "" {
		errs = append(errs, "accountId is required")
	}
	if msg := requiredAmountError("amount", r.Amount); msg != "" {
		errs = append(errs, msg)
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func (r MovementRequest) ToCommand(actorID string) service_interfaces.MovementCommand {
	return service_interfaces.MovementCommand{
		AccountID:   strings.TrimSpace(r.AccountID),
		Amount:      parseOptional(r.Amount),
		Description: strings.TrimSpace(r.Description),
		ActorID:     actorID,
	}
}

type AccountResponse struct {
	ID             string `json:"id"`
	AccountNumber  string `json:"accountNumber"`
	OwnerID        string `json:"ownerId"`
	Currency       string `json:"currency"`
	Balance        string `json:"balance"`
	AvailableFunds string `json:"availableFunds"`
	Status         string `json:"status"`
	OverdraftLimit string `json:"overdraftLimit"`
	MinimumBalance string `json:"minimumBalance"`
	DailyLimit     string `json:"dailyLimit"`
	DailyUsed      string `json:"dailyUsed"`
	DailyResetAt   string `json:"dailyResetAt"`
	InterestRate   string `json:"interestRate"`
	LastInterestAt string `json:"lastInterestAt"`
	Version        int64  `json:"version"`
	CreatedAt      string `json:"createdAt"`
	UpdatedAt      string `json:"updatedAt"`
}

func NewAccountResponse(account domain.Account) AccountResponse {
	return AccountResponse{
		ID:             account.ID,
		AccountNumber:  account.AccountNumber,
		OwnerID:        account.OwnerID,
		Currency:       account.Currency,
		Balance:        account.Balance.StringFixed(2),
		AvailableFunds: account.AvailableFunds().StringFixed(2),
		Status:         string(account.Status),
		OverdraftLimit: account.OverdraftLimit.StringFixed(2),
		MinimumBalance: account.MinimumBalance.StringFixed(2),
		DailyLimit:     account.DailyLimit.StringFixed(2),
		DailyUsed:      account.DailyUsed.StringFixed(2),
		DailyResetAt:   formatTime(account.DailyResetAt),
		InterestRate:   account.InterestRate.String(),
		LastInterestAt: formatTime(account.LastInterestAt),
		Version:        account.Version,
		CreatedAt:      formatTime(account.CreatedAt),
		UpdatedAt:      formatTime(account.UpdatedAt),
	}
}

func NewAccountResponses(accounts []domain.Account) []AccountResponse {
	out := make([]AccountResponse, 0, len(accounts))
	for _, account := range accounts {
		out = append(out, NewAccountResponse(account))
	}
	return out
}

func optionalAmountError(field string, value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	parsed, err := decimal.NewFromString(value)
	if err != nil {
		return field + " must be numeric"
	}
	if parsed.IsNegative() {
		return field + " cannot be negative"
	}
	return ""
}

func requiredAmountError(field string, value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return field + " is required"
	}
	parsed, err := decimal.NewFromString(value)
	if err != nil {
		return field + " must be numeric"
	}
	if parsed.LessThanOrEqual(decimal.Zero) {
		return field + " must be greater than zero"
	}
	return ""
}

func parseOptional(value string) decimal.Decimal {
	parsed, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return decimal.Zero
	}
	return parsed
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
