package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type AccountStatus string

const (
	AccountStatusActive AccountStatus = "ACTIVE"
	AccountStatusFrozen AccountStatus = "FROZEN"
	AccountStatusClosed AccountStatus = "CLOSED"
)

const DailyWindow = 24 * time.Hour

const daysPerYear = 365

func (s AccountStatus) Valid() bool {
	switch s {
	case AccountStatusActive, AccountStatusFrozen, AccountStatusClosed:
		return true
	default:
		return false
	}
}

type Account struct {
	AuditMetadata
	AccountNumber  string
	OwnerID        string
	Currency       string
	Balance        decimal.Decimal
	Status         AccountStatus
	OverdraftLimit decimal.Decimal
	MinimumBalance decimal.Decimal
	DailyLimit     decimal.Decimal
	DailyUsed      decimal.Decimal
	DailyResetAt   time.Time
	InterestRate   decimal.Decimal
	LastInterestAt time.Time
}

// NewAccount returns an ACTIVE account whose daily window and interest
// anchor start at now.
func NewAccount(id, accountNumber, ownerID, currency string, now time.Time) Account {
	return Account{
		AuditMetadata: AuditMetadata{
			ID:        id,
			CreatedAt: now,
			UpdatedAt: now,
		},
		AccountNumber:  accountNumber,
		OwnerID:        ownerID,
		Currency:       currency,
		Balance:        decimal.Zero,
		Status:         AccountStatusActive,
		OverdraftLimit: decimal.Zero,
		MinimumBalance: decimal.Zero,
		DailyLimit:     decimal.Zero,
		DailyUsed:      decimal.Zero,
		DailyResetAt:   now,
		InterestRate:   decimal.Zero,
		LastInterestAt: now,
	}
}

func (a Account) IsActive() bool { return a.Status == AccountStatusActive }
func (a Account) IsFrozen() bool { return a.Status == AccountStatusFrozen }
func (a Account) IsClosed() bool { return a.Status == AccountStatusClosed }

func (a Account) AvailableFunds() decimal.Decimal {
	return a.Balance.Add(a.OverdraftLimit)
}

func (a Account) HasSufficientFunds(amount decimal.Decimal) bool {
	return amount.IsPositive() && a.AvailableFunds().GreaterThanOrEqual(amount)
}

// KeepsMinimumBalance reports whether debiting amount leaves the balance at or
// above the configured minimum.
func (a Account) KeepsMinimumBalance(amount decimal.Decimal) bool {
	return a.Balance.Sub(amount).GreaterThanOrEqual(a.MinimumBalance)
}

// WithinDailyLimit evaluates amount against the rolling window as it would
// look at now. An expired window counts as already reset.
func (a Account) WithinDailyLimit(amount decimal.Decimal, now time.Time) bool {
	return a.dailyUsedAt(now).Add(amount.Abs()).LessThanOrEqual(a.DailyLimit)
}

// DailyRemaining is the budget left in the window at now, never negative.
func (a Account) DailyRemaining(now time.Time) decimal.Decimal {
	remaining := a.DailyLimit.Sub(a.dailyUsedAt(now))
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

func (a *Account) RecordUsage(amount decimal.Decimal, now time.Time) {
	if a.windowExpired(now) {
		a.DailyUsed = decimal.Zero
		a.DailyResetAt = now
	}
	a.DailyUsed = a.DailyUsed.Add(amount.Abs())
}

func (a Account) windowExpired(now time.Time) bool {
	return a.DailyResetAt.IsZero() || now.Sub(a.DailyResetAt) >= DailyWindow
}

func (a Account) dailyUsedAt(now time.Time) decimal.Decimal {
	if a.windowExpired(now) {
		return decimal.Zero
	}
	return a.DailyUsed
}

func (a *Account) Debit(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return &ValidationError{Errors: []string{"debit amount must be greater than zero"}}
	}
	if !a.HasSufficientFunds(amount) {
		return &InsufficientFundsError{
			AccountID: a.ID,
			Available: a.AvailableFunds(),
			Requested: amount,
		}
	}
	a.Balance = a.Balance.Sub(amount)
	return nil
}

func (a *Account) Credit(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return &ValidationError{Errors: []string{"credit amount must be greater than zero"}}
	}
	a.Balance = a.Balance.Add(amount)
	return nil
}

// ApplyInterest accrues simple daily interest for every whole day elapsed
// since the last calculation and returns the amount credited. The anchor
// moves by whole days even when nothing is credited.
func (a *Account) ApplyInterest(now time.Time) decimal.Decimal {
	anchor := a.LastInterestAt
	if anchor.IsZero() {
		anchor = a.CreatedAt
	}
	if anchor.IsZero() {
		a.LastInterestAt = now
		return decimal.Zero
	}

	days := int64(now.Sub(anchor) / DailyWindow)
	if days < 1 {
		return decimal.Zero
	}
	a.LastInterestAt = anchor.Add(time.Duration(days) * DailyWindow)

	if !a.Balance.IsPositive() || !a.InterestRate.IsPositive() {
		return decimal.Zero
	}

	dailyRate := a.InterestRate.Div(decimal.NewFromInt(daysPerYear))
	interest := a.Balance.Mul(dailyRate).Mul(decimal.NewFromInt(days)).Round(2)
	a.Balance = a.Balance.Add(interest)
	return interest
}

// TransitionStatus allows ACTIVE and FROZEN to swap and anything to close.
// CLOSED is terminal.
func (a *Account) TransitionStatus(next AccountStatus) error {
	if !next.Valid() {
		return &ValidationError{Errors: []string{fmt.Sprintf("unknown account status %q", next)}}
	}
	if a.Status == next {
		return nil
	}
	if a.Status == AccountStatusClosed {
		return fmt.Errorf("%w: account %s is closed", ErrInvalidStatusTransition, a.ID)
	}
	a.Status = next
	return nil
}
