package dynamodb

import (
	"fmt"
	"time"

	"github.com/api-sage/ledger-core/src/internal/domain"
	"github.com/shopspring/decimal"
)

// Money is stored as decimal strings and instants as unix nanoseconds so
// range conditions on created_at sort numerically.
type accountRecord struct {
	ID             string `dynamodbav:"id"`
	AccountNumber  string `dynamodbav:"account_number"`
	OwnerID        string `dynamodbav:"owner_id"`
	Currency       string `dynamodbav:"currency"`
	Balance        string `dynamodbav:"balance"`
	Status         string `dynamodbav:"status"`
	OverdraftLimit string `dynamodbav:"overdraft_limit"`
	MinimumBalance string `dynamodbav:"minimum_balance"`
	DailyLimit     string `dynamodbav:"daily_limit"`
	DailyUsed      string `dynamodbav:"daily_used"`
	DailyResetAt   int64  `dynamodbav:"daily_reset_at"`
	InterestRate   string `dynamodbav:"interest_rate"`
	LastInterestAt int64  `dynamodbav:"last_interest_at"`
	Version        int64  `dynamodbav:"version"`
	CreatedAt      int64  `dynamodbav:"created_at"`
	UpdatedAt      int64  `dynamodbav:"updated_at"`
}

type transactionRecord struct {
	ID              string  `dynamodbav:"id"`
	ReferenceNumber string  `dynamodbav:"reference_number"`
	SourceAccountID string  `dynamodbav:"source_account_id"`
	TargetAccountID *string `dynamodbav:"target_account_id,omitempty"`
	Amount          string  `dynamodbav:"amount"`
	FeeAmount       string  `dynamodbav:"fee_amount"`
	Currency        string  `dynamodbav:"currency"`
	Type            string  `dynamodbav:"type"`
	Status          string  `dynamodbav:"status"`
	Description     string  `dynamodbav:"description"`
	FailureReason   *string `dynamodbav:"failure_reason,omitempty"`
	ActorID         string  `dynamodbav:"actor_id"`
	ProcessedAt     *int64  `dynamodbav:"processed_at,omitempty"`
	Version         int64   `dynamodbav:"version"`
	CreatedAt       int64   `dynamodbav:"created_at"`
	UpdatedAt       int64   `dynamodbav:"updated_at"`
}

// uniqueMarker claims a natural key inside a table. Markers carry no
// indexed attributes so they stay out of every GSI and status scan.
type uniqueMarker struct {
	ID      string `dynamodbav:"id"`
	OwnerID string `dynamodbav:"owner"`
}

func accountNumberKey(accountNumber string) string {
	return "NUM#" + accountNumber
}

func referenceKey(referenceNumber string) string {
	return "REF#" + referenceNumber
}

func toAccountRecord(account domain.Account) accountRecord {
	return accountRecord{
		ID:             account.ID,
		AccountNumber:  account.AccountNumber,
		OwnerID:        account.OwnerID,
		Currency:       account.Currency,
		Balance:        account.Balance.String(),
		Status:         string(account.Status),
		OverdraftLimit: account.OverdraftLimit.String(),
		MinimumBalance: account.MinimumBalance.String(),
		DailyLimit:     account.DailyLimit.String(),
		DailyUsed:      account.DailyUsed.String(),
		DailyResetAt:   toNanos(account.DailyResetAt),
		InterestRate:   account.InterestRate.String(),
		LastInterestAt: toNanos(account.LastInterestAt),
		Version:        account.Version,
		CreatedAt:      toNanos(account.CreatedAt),
		UpdatedAt:      toNanos(account.UpdatedAt),
	}
}

func (r accountRecord) toDomain() (domain.Account, error) {
	amounts, err := parseDecimals(r.Balance, r.OverdraftLimit, r.MinimumBalance, r.DailyLimit, r.DailyUsed, r.InterestRate)
	if err != nil {
		return domain.Account{}, fmt.Errorf("decode account %s: %w", r.ID, err)
	}

	return domain.Account{
		AuditMetadata: domain.AuditMetadata{
			ID:        r.ID,
			Version:   r.Version,
			CreatedAt: fromNanos(r.CreatedAt),
			UpdatedAt: fromNanos(r.UpdatedAt),
		},
		AccountNumber:  r.AccountNumber,
		OwnerID:        r.OwnerID,
		Currency:       r.Currency,
		Balance:        amounts[0],
		Status:         domain.AccountStatus(r.Status),
		OverdraftLimit: amounts[1],
		MinimumBalance: amounts[2],
		DailyLimit:     amounts[3],
		DailyUsed:      amounts[4],
		DailyResetAt:   fromNanos(r.DailyResetAt),
		InterestRate:   amounts[5],
		LastInterestAt: fromNanos(r.LastInterestAt),
	}, nil
}

func toTransactionRecord(tx domain.Transaction) transactionRecord {
	record := transactionRecord{
		ID:              tx.ID,
		ReferenceNumber: tx.ReferenceNumber,
		SourceAccountID: tx.SourceAccountID,
		TargetAccountID: tx.TargetAccountID,
		Amount:          tx.Amount.String(),
		FeeAmount:       tx.FeeAmount.String(),
		Currency:        tx.Currency,
		Type:            string(tx.Type),
		Status:          string(tx.Status),
		Description:     tx.Description,
		FailureReason:   tx.FailureReason,
		ActorID:         tx.ActorID,
		Version:         tx.Version,
		CreatedAt:       toNanos(tx.CreatedAt),
		UpdatedAt:       toNanos(tx.UpdatedAt),
	}
	if tx.ProcessedAt != nil {
		processed := toNanos(*tx.ProcessedAt)
		record.ProcessedAt = &processed
	}
	return record
}

func (r transactionRecord) toDomain() (domain.Transaction, error) {
	amounts, err := parseDecimals(r.Amount, r.FeeAmount)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("decode transaction %s: %w", r.ID, err)
	}

	tx := domain.Transaction{
		AuditMetadata: domain.AuditMetadata{
			ID:        r.ID,
			Version:   r.Version,
			CreatedAt: fromNanos(r.CreatedAt),
			UpdatedAt: fromNanos(r.UpdatedAt),
		},
		ReferenceNumber: r.ReferenceNumber,
		SourceAccountID: r.SourceAccountID,
		TargetAccountID: r.TargetAccountID,
		Amount:          amounts[0],
		FeeAmount:       amounts[1],
		Currency:        r.Currency,
		Type:            domain.TransactionType(r.Type),
		Status:          domain.TransactionStatus(r.Status),
		Description:     r.Description,
		FailureReason:   r.FailureReason,
		ActorID:         r.ActorID,
	}
	if r.ProcessedAt != nil {
		processed := fromNanos(*r.ProcessedAt)
		tx.ProcessedAt = &processed
	}
	return tx, nil
}

func parseDecimals(values ...string) ([]decimal.Decimal, error) {
	out := make([]decimal.Decimal, len(values))
	for i, value := range values {
		if value == "" {
			out[i] = decimal.Zero
			continue
		}
		parsed, err := decimal.NewFromString(value)
		if err != nil {
			return nil, err
		}
		out[i] = parsed
	}
	return out, nil
}

func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
