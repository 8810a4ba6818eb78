package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/api-sage/ledger-core/src/internal/commons"
	"github.com/api-sage/ledger-core/src/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
	systemActorID    = "system"
)

// AmountPolicy bounds every money movement entering the ledger.
type AmountPolicy struct {
	MinAmount             decimal.Decimal
	MaxAmount             decimal.Decimal
	MaxDailyTransactions  int
	EnforceMinimumBalance bool
	// DefaultDailyLimit applies to accounts opened without a daily limit.
	DefaultDailyLimit decimal.Decimal
}

func DefaultAmountPolicy() AmountPolicy {
	return AmountPolicy{
		MinAmount:            decimal.RequireFromString("0.01"),
		MaxAmount:            decimal.RequireFromString("1000000.00"),
		MaxDailyTransactions: 100,
		DefaultDailyLimit:    decimal.RequireFromString("50000.00"),
	}
}

// TransferFailedError carries the FAILED or CANCELLED entry that was
// persisted for a transfer that did not complete.
type TransferFailedError struct {
	Transaction domain.Transaction
	Err         error
}

func (e *TransferFailedError) Error() string {
	return fmt.Sprintf("transfer %s %s: %v", e.Transaction.ReferenceNumber, strings.ToLower(string(e.Transaction.Status)), e.Err)
}

func (e *TransferFailedError) Unwrap() error {
	return e.Err
}

func (p AmountPolicy) amountErrors(field string, amount decimal.Decimal) []string {
	var errs []string
	if amount.LessThan(p.MinAmount) || amount.GreaterThan(p.MaxAmount) {
		errs = append(errs, fmt.Sprintf("%s must be between %s and %s", field, p.MinAmount.StringFixed(2), p.MaxAmount.StringFixed(2)))
	}
	if !amount.Equal(amount.Round(2)) {
		errs = append(errs, fmt.Sprintf("%s must have at most 2 decimal places", field))
	}
	return errs
}

// checkDebit applies the funds and minimum balance rules to a debit of total.
func (p AmountPolicy) checkDebit(account domain.Account, total decimal.Decimal) error {
	if !account.HasSufficientFunds(total) {
		return &domain.InsufficientFundsError{
			AccountID: account.ID,
			Available: account.AvailableFunds(),
			Requested: total,
		}
	}
	if p.EnforceMinimumBalance && !account.KeepsMinimumBalance(total) {
		available := account.Balance.Sub(account.MinimumBalance)
		if available.IsNegative() {
			available = decimal.Zero
		}
		return &domain.InsufficientFundsError{
			AccountID: account.ID,
			Available: available,
			Requested: total,
		}
	}
	return nil
}

func requireActive(role string, account domain.Account) error {
	if account.IsActive() {
		return nil
	}
	return fmt.Errorf("%w: %s account %s is %s", domain.ErrAccountInactive, role, account.ID, account.Status)
}

func pendingTransaction(reference string, txType domain.TransactionType, source domain.Account, amount decimal.Decimal, description string, actorID string, now time.Time) domain.Transaction {
	return domain.Transaction{
		AuditMetadata: domain.AuditMetadata{
			CreatedAt: now,
			UpdatedAt: now,
		},
		ReferenceNumber: reference,
		SourceAccountID: source.ID,
		Amount:          amount,
		FeeAmount:       decimal.Zero,
		Currency:        source.Currency,
		Type:            txType,
		Status:          domain.TransactionStatusPending,
		Description:     description,
		ActorID:         actorID,
	}
}

func translateNotFound(err error, notFound error, id string) error {
	if errors.Is(err, commons.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", notFound, id)
	}
	return storeFailure("read", err)
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

func actorOrDefault(actorID string, fallback string) string {
	if strings.TrimSpace(actorID) != "" {
		return strings.TrimSpace(actorID)
	}
	if strings.TrimSpace(fallback) != "" {
		return fallback
	}
	return systemActorID
}

func stringPtr(value string) *string {
	return &value
}
