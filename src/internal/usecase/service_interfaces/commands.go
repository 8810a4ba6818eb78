package service_interfaces

import "github.com/shopspring/decimal"

type TransferCommand struct {
	SourceAccountID string          `json:"sourceAccountId"`
	TargetAccountID string          `json:"targetAccountId"`
	Amount          decimal.Decimal `json:"amount"`
	Description     string          `json:"description"`
	ActorID         string          `json:"actorId"`
}

type CreateAccountCommand struct {
	OwnerID        string          `json:"ownerId"`
	Currency       string          `json:"currency"`
	InitialDeposit decimal.Decimal `json:"initialDeposit"`
	OverdraftLimit decimal.Decimal `json:"overdraftLimit"`
	MinimumBalance decimal.Decimal `json:"minimumBalance"`
	DailyLimit     decimal.Decimal `json:"dailyLimit"`
	InterestRate   decimal.Decimal `json:"interestRate"`
	ActorID        string          `json:"actorId"`
}

// MovementCommand drives single-account deposits and withdrawals.
type MovementCommand struct {
	AccountID   string          `json:"accountId"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	ActorID     string          `json:"actorId"`
}

type InterestRunSummary struct {
	RunID         string          `json:"runId"`
	Processed     int             `json:"processed"`
	Credited      int             `json:"credited"`
	Skipped       int             `json:"skipped"`
	Failed        int             `json:"failed"`
	TotalInterest decimal.Decimal `json:"totalInterest"`
	FailedIDs     []string        `json:"failedIds,omitempty"`
}
