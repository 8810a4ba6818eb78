package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/api-sage/ledger-core/src/internal/domain"
	"github.com/shopspring/decimal"
)

var t0 = time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func newAccount(balance string) domain.Account {
	account := domain.NewAccount("acc-1", "1234567890", "owner-1", "USD", t0)
	account.Balance = dec(balance)
	account.DailyLimit = dec("10000.00")
	return account
}

func TestHasSufficientFunds(t *testing.T) {
	account := newAccount("100.00")
	account.OverdraftLimit = dec("20.00")

	cases := []struct {
		amount string
		want   bool
	}{
		{"0", false},
		{"-1", false},
		{"100.00", true},
		{"120.00", true},
		{"120.01", false},
	}

	for _, tc := range cases {
		if got := account.HasSufficientFunds(dec(tc.amount)); got != tc.want {
			t.Fatalf("amount %s: expected %v, got %v", tc.amount, tc.want, got)
		}
	}
}

func TestDebit_InsufficientFundsCarriesAmounts(t *testing.T) {
	account := newAccount("100.00")

	err := account.Debit(dec("150.00"))

	var insufficient *domain.InsufficientFundsError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientFundsError, got %v", err)
	}
	if !insufficient.Available.Equal(dec("100.00")) || !insufficient.Requested.Equal(dec("150.00")) {
		t.Fatalf("unexpected amounts: %+v", insufficient)
	}
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatal("expected error to unwrap to ErrInsufficientFunds")
	}
	if !account.Balance.Equal(dec("100.00")) {
		t.Fatalf("expected balance untouched, got %s", account.Balance)
	}
}

func TestDailyWindow_ResetsAfterTwentyFourHours(t *testing.T) {
	account := newAccount("1000.00")
	account.DailyLimit = dec("100.00")

	if !account.WithinDailyLimit(dec("80.00"), t0) {
		t.Fatal("expected first 80.00 to fit")
	}
	account.RecordUsage(dec("80.00"), t0)

	if account.WithinDailyLimit(dec("80.00"), t0.Add(23*time.Hour)) {
		t.Fatal("expected second 80.00 to breach the window")
	}
	if !account.WithinDailyLimit(dec("80.00"), t0.Add(24*time.Hour)) {
		t.Fatal("expected expired window to count as reset")
	}

	account.RecordUsage(dec("-80.00"), t0.Add(24*time.Hour))
	if !account.DailyUsed.Equal(dec("80.00")) {
		t.Fatalf("expected usage reset then absolute add, got %s", account.DailyUsed)
	}
	if !account.DailyResetAt.Equal(t0.Add(24 * time.Hour)) {
		t.Fatalf("expected anchor to move, got %s", account.DailyResetAt)
	}
}

func TestWithinDailyLimit_DoesNotMutate(t *testing.T) {
	account := newAccount("1000.00")
	account.DailyUsed = dec("50.00")

	_ = account.WithinDailyLimit(dec("10.00"), t0.Add(48*time.Hour))

	if !account.DailyUsed.Equal(dec("50.00")) || !account.DailyResetAt.Equal(t0) {
		t.Fatal("expected limit check to be a pure query")
	}
}

func TestApplyInterest_OneDay(t *testing.T) {
	account := newAccount("1000.00")
	account.InterestRate = dec("0.025")

	interest := account.ApplyInterest(t0.Add(24 * time.Hour))

	if !interest.Equal(dec("0.07")) {
		t.Fatalf("expected interest 0.07, got %s", interest)
	}
	if !account.Balance.Equal(dec("1000.07")) {
		t.Fatalf("expected balance 1000.07, got %s", account.Balance)
	}
	if !account.LastInterestAt.Equal(t0.Add(24 * time.Hour)) {
		t.Fatalf("expected anchor to advance one day, got %s", account.LastInterestAt)
	}
}

func TestApplyInterest_SameDayIsNoop(t *testing.T) {
	account := newAccount("1000.00")
	account.InterestRate = dec("0.025")

	interest := account.ApplyInterest(t0.Add(23 * time.Hour))

	if !interest.IsZero() || !account.Balance.Equal(dec("1000.00")) || !account.LastInterestAt.Equal(t0) {
		t.Fatal("expected no accrual within the same day")
	}
}

func TestApplyInterest_MultipleDaysKeepsRemainder(t *testing.T) {
	account := newAccount("1000.00")
	account.InterestRate = dec("0.0365")

	interest := account.ApplyInterest(t0.Add(3*24*time.Hour + 5*time.Hour))

	if !interest.Equal(dec("0.30")) {
		t.Fatalf("expected interest 0.30, got %s", interest)
	}
	if !account.LastInterestAt.Equal(t0.Add(3 * 24 * time.Hour)) {
		t.Fatalf("expected anchor on whole days, got %s", account.LastInterestAt)
	}
}

func TestApplyInterest_NonPositiveBalanceAdvancesAnchor(t *testing.T) {
	account := newAccount("-5.00")
	account.InterestRate = dec("0.025")

	interest := account.ApplyInterest(t0.Add(48 * time.Hour))

	if !interest.IsZero() || !account.Balance.Equal(dec("-5.00")) {
		t.Fatalf("expected no interest on negative balance, got %s", interest)
	}
	if !account.LastInterestAt.Equal(t0.Add(48 * time.Hour)) {
		t.Fatalf("expected anchor to advance, got %s", account.LastInterestAt)
	}
}

func TestTransitionStatus(t *testing.T) {
	account := newAccount("0")

	if err := account.TransitionStatus(domain.AccountStatusFrozen); err != nil || !account.IsFrozen() {
		t.Fatalf("expected ACTIVE -> FROZEN, got %v", err)
	}
	if err := account.TransitionStatus(domain.AccountStatusActive); err != nil || !account.IsActive() {
		t.Fatalf("expected FROZEN -> ACTIVE, got %v", err)
	}
	if err := account.TransitionStatus(domain.AccountStatusClosed); err != nil || !account.IsClosed() {
		t.Fatalf("expected ACTIVE -> CLOSED, got %v", err)
	}
	if err := account.TransitionStatus(domain.AccountStatusActive); !errors.Is(err, domain.ErrInvalidStatusTransition) {
		t.Fatalf("expected CLOSED to be terminal, got %v", err)
	}
	if err := account.TransitionStatus("SUSPENDED"); !errors.Is(err, domain.ErrInvalidParameters) {
		t.Fatalf("expected unknown status to be rejected, got %v", err)
	}
}
