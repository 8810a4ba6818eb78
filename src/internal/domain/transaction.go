package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionTypeTransfer   TransactionType = "TRANSFER"
	TransactionTypeDeposit    TransactionType = "DEPOSIT"
	TransactionTypeWithdrawal TransactionType = "WITHDRAWAL"
	TransactionTypeInterest   TransactionType = "INTEREST"
)

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
	TransactionStatusCancelled TransactionStatus = "CANCELLED"
)

func (s TransactionStatus) Terminal() bool {
	return s == TransactionStatusCompleted || s == TransactionStatusFailed || s == TransactionStatusCancelled
}

type Transaction struct {
	AuditMetadata
	ReferenceNumber string
	SourceAccountID string
	TargetAccountID *string
	Amount          decimal.Decimal
	FeeAmount       decimal.Decimal
	Currency        string
	Type            TransactionType
	Status          TransactionStatus
	Description     string
	FailureReason   *string
	ActorID         string
	ProcessedAt     *time.Time
}

// Validate checks the shape of a transaction before it is processed.
func (t Transaction) Validate() error {
	var errs []string

	if strings.TrimSpace(t.SourceAccountID) == "" {
		errs = append(errs, "source account is required")
	}
	if !t.Amount.IsPositive() {
		errs = append(errs, "amount must be greater than zero")
	}
	if !t.Amount.Equal(t.Amount.Round(2)) {
		errs = append(errs, "amount must have at most 2 decimal places")
	}
	if t.FeeAmount.IsNegative() {
		errs = append(errs, "fee amount cannot be negative")
	}
	if t.Type == TransactionTypeTransfer {
		if t.TargetAccountID == nil || strings.TrimSpace(*t.TargetAccountID) == "" {
			errs = append(errs, "transfer requires a target account")
		} else if *t.TargetAccountID == t.SourceAccountID {
			errs = append(errs, "source and target accounts must differ")
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

func (t Transaction) IsTerminal() bool {
	return t.Status.Terminal()
}

func (t *Transaction) Complete(now time.Time) error {
	return t.finish(TransactionStatusCompleted, "", now)
}

func (t *Transaction) Fail(reason string, now time.Time) error {
	return t.finish(TransactionStatusFailed, reason, now)
}

func (t *Transaction) Cancel(reason string, now time.Time) error {
	return t.finish(TransactionStatusCancelled, reason, now)
}

func (t *Transaction) finish(status TransactionStatus, reason string, now time.Time) error {
	if t.IsTerminal() {
		return fmt.Errorf("%w: transaction %s is already %s", ErrInvalidStatusTransition, t.ReferenceNumber, t.Status)
	}

	t.Status = status
	t.ProcessedAt = &now
	t.UpdatedAt = now
	if reason != "" {
		r := reason
		t.FailureReason = &r
	}
	return nil
}
