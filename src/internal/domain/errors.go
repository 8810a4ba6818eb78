package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidParameters       = errors.New("invalid parameters")
	ErrAccountNotFound         = errors.New("account not found")
	ErrAccountInactive         = errors.New("account inactive")
	ErrInsufficientFunds       = errors.New("insufficient funds")
	ErrDailyLimitExceeded      = errors.New("daily limit exceeded")
	ErrConcurrencyConflict     = errors.New("concurrency conflict")
	ErrPersistenceUnavailable  = errors.New("persistence unavailable")
	ErrTransactionNotFound     = errors.New("transaction not found")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
)

type ErrorKind string

const (
	KindInvalidParameters      ErrorKind = "INVALID_PARAMETERS"
	KindAccountNotFound        ErrorKind = "ACCOUNT_NOT_FOUND"
	KindAccountInactive        ErrorKind = "ACCOUNT_INACTIVE"
	KindInsufficientFunds      ErrorKind = "INSUFFICIENT_FUNDS"
	KindDailyLimitExceeded     ErrorKind = "DAILY_LIMIT_EXCEEDED"
	KindConcurrencyConflict    ErrorKind = "CONCURRENCY_CONFLICT"
	KindPersistenceUnavailable ErrorKind = "PERSISTENCE_UNAVAILABLE"
	KindNotFound               ErrorKind = "NOT_FOUND"
	KindInvalidState           ErrorKind = "INVALID_STATE"
	KindUnknown                ErrorKind = "UNKNOWN"
)

type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return "invalid parameters: " + strings.Join(e.Errors, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidParameters
}

type InsufficientFundsError struct {
	AccountID string
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds on account %s: available %s, requested %s",
		e.AccountID, e.Available.StringFixed(2), e.Requested.StringFixed(2))
}

func (e *InsufficientFundsError) Unwrap() error {
	return ErrInsufficientFunds
}

var kinds = []struct {
	err  error
	kind ErrorKind
}{
	{ErrInvalidParameters, KindInvalidParameters},
	{ErrAccountNotFound, KindAccountNotFound},
	{ErrAccountInactive, KindAccountInactive},
	{ErrInsufficientFunds, KindInsufficientFunds},
	{ErrDailyLimitExceeded, KindDailyLimitExceeded},
	{ErrConcurrencyConflict, KindConcurrencyConflict},
	{ErrPersistenceUnavailable, KindPersistenceUnavailable},
	{ErrTransactionNotFound, KindNotFound},
	{ErrInvalidStatusTransition, KindInvalidState},
}

func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindUnknown
}

// IsRetryable is true for failures the caller may retry as a whole operation.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindConcurrencyConflict, KindPersistenceUnavailable:
		return true
	default:
		return false
	}
}
