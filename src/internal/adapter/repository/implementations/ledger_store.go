package implementations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/api-sage/ledger-core/src/internal/commons"
	"github.com/api-sage/ledger-core/src/internal/domain"
	"github.com/api-sage/ledger-core/src/internal/logger"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const accountColumns = `id, account_number, owner_id, currency, balance, status, overdraft_limit, minimum_balance,
	daily_limit, daily_used, daily_reset_at, interest_rate, last_interest_at, version, created_at, updated_at`

const transactionColumns = `id, reference_number, source_account_id, target_account_id, amount, fee_amount, currency,
	type, status, description, failure_reason, actor_id, processed_at, version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// LedgerStore keeps accounts and transactions in postgres. Writes go through
// InUnitOfWork so balances and ledger entries commit together.
type LedgerStore struct {
	db    *sql.DB
	clock domain.Clock
}

func NewLedgerStore(db *sql.DB, clock domain.Clock) *LedgerStore {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &LedgerStore{db: db, clock: clock}
}

func (s *LedgerStore) CreateAccount(ctx context.Context, account domain.Account) (domain.Account, error) {
	logger.Info("ledger repository create account", logger.Fields{
		"ownerId":       account.OwnerID,
		"accountNumber": account.AccountNumber,
		"currency":      account.Currency,
	})

	if account.ID == "" {
		account.ID = uuid.NewString()
	}

	const query = `
INSERT INTO accounts (
	id,
	account_number,
	owner_id,
	currency,
	balance,
	status,
	overdraft_limit,
	minimum_balance,
	daily_limit,
	daily_used,
	daily_reset_at,
	interest_rate,
	last_interest_at,
	version
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 1)
RETURNING version, created_at, updated_at`

	if err := s.db.QueryRowContext(
		ctx,
		query,
		account.ID,
		account.AccountNumber,
		account.OwnerID,
		account.Currency,
		account.Balance,
		account.Status,
		account.OverdraftLimit,
		account.MinimumBalance,
		account.DailyLimit,
		account.DailyUsed,
		account.DailyResetAt,
		account.InterestRate,
		account.LastInterestAt,
	).Scan(&account.Version, &account.CreatedAt, &account.UpdatedAt); err != nil {
		logger.Error("ledger repository create account failed", err, logger.Fields{
			"accountNumber": account.AccountNumber,
		})
		return domain.Account{}, mapStoreError("create account", err)
	}

	logger.Info("ledger repository create account success", logger.Fields{
		"accountId":     account.ID,
		"accountNumber": account.AccountNumber,
	})
	return account, nil
}

func (s *LedgerStore) GetAccount(ctx context.Context, id string) (domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return s.getAccount(ctx, "get account", query, id)
}

func (s *LedgerStore) GetAccountByNumber(ctx context.Context, accountNumber string) (domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_number = $1`
	return s.getAccount(ctx, "get account by number", query, accountNumber)
}

func (s *LedgerStore) getAccount(ctx context.Context, operation string, query string, key string) (domain.Account, error) {
	account, err := scanAccount(s.db.QueryRowContext(ctx, query, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			logger.Info("ledger repository account not found", logger.Fields{"key": key})
			return domain.Account{}, commons.ErrRecordNotFound
		}
		logger.Error("ledger repository "+operation+" failed", err, logger.Fields{"key": key})
		return domain.Account{}, mapStoreError(operation, err)
	}
	return account, nil
}

func (s *LedgerStore) ListActiveAccounts(ctx context.Context, afterID string, limit int) ([]domain.Account, error) {
	query := `
SELECT ` + accountColumns + `
FROM accounts
WHERE status = 'ACTIVE'
  AND id > $1
ORDER BY id
LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, afterID, limit)
	if err != nil {
		logger.Error("ledger repository list active accounts failed", err, logger.Fields{"afterId": afterID})
		return nil, mapStoreError("list active accounts", err)
	}
	return scanAccounts(rows, limit)
}

func (s *LedgerStore) ListActiveAccountsByOwner(ctx context.Context, ownerID string) ([]domain.Account, error) {
	query := `
SELECT ` + accountColumns + `
FROM accounts
WHERE owner_id = $1
  AND status = 'ACTIVE'
ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		logger.Error("ledger repository list owner accounts failed", err, logger.Fields{"ownerId": ownerID})
		return nil, mapStoreError("list owner accounts", err)
	}
	return scanAccounts(rows, 0)
}

func scanAccounts(rows *sql.Rows, capacity int) ([]domain.Account, error) {
	defer rows.Close()

	accounts := make([]domain.Account, 0, capacity)
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, mapStoreError("scan account", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, mapStoreError("iterate accounts", err)
	}
	return accounts, nil
}

func (s *LedgerStore) GetTransaction(ctx context.Context, id string) (domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	return s.getTransaction(ctx, "get transaction", query, id)
}

func (s *LedgerStore) GetTransactionByReference(ctx context.Context, referenceNumber string) (domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE reference_number = $1`
	return s.getTransaction(ctx, "get transaction by reference", query, referenceNumber)
}

func (s *LedgerStore) getTransaction(ctx context.Context, operation string, query string, key string) (domain.Transaction, error) {
	tx, err := scanTransaction(s.db.QueryRowContext(ctx, query, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			logger.Info("ledger repository transaction not found", logger.Fields{"key": key})
			return domain.Transaction{}, commons.ErrRecordNotFound
		}
		logger.Error("ledger repository "+operation+" failed", err, logger.Fields{"key": key})
		return domain.Transaction{}, mapStoreError(operation, err)
	}
	return tx, nil
}

func (s *LedgerStore) ListTransactionsByAccount(ctx context.Context, accountID string, limit int) ([]domain.Transaction, error) {
	query := `
SELECT ` + transactionColumns + `
FROM transactions
WHERE source_account_id = $1
   OR target_account_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, accountID, limit)
	if err != nil {
		logger.Error("ledger repository list transactions failed", err, logger.Fields{"accountId": accountID})
		return nil, mapStoreError("list transactions", err)
	}
	defer rows.Close()

	txs := make([]domain.Transaction, 0, limit)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, mapStoreError("scan transaction", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, mapStoreError("iterate transactions", err)
	}
	return txs, nil
}

func (s *LedgerStore) CountOutgoingSince(ctx context.Context, accountID string, since time.Time) (int, error) {
	const query = `
SELECT COUNT(1)
FROM transactions
WHERE source_account_id = $1
  AND status = 'COMPLETED'
  AND type IN ('TRANSFER', 'WITHDRAWAL')
  AND created_at >= $2`

	var count int
	if err := s.db.QueryRowContext(ctx, query, accountID, since).Scan(&count); err != nil {
		logger.Error("ledger repository count outgoing failed", err, logger.Fields{"accountId": accountID})
		return 0, mapStoreError("count outgoing transactions", err)
	}
	return count, nil
}

// InUnitOfWork runs fn inside one database transaction. Any error from fn
// rolls everything back.
func (s *LedgerStore) InUnitOfWork(ctx context.Context, fn func(uow domain.UnitOfWork) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return mapStoreError("begin unit of work", err)
	}

	if err := fn(&unitOfWork{tx: tx, clock: s.clock}); err != nil {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			logger.Error("ledger repository rollback failed", rollbackErr, nil)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		logger.Error("ledger repository commit failed", err, nil)
		return mapStoreError("commit unit of work", err)
	}
	return nil
}

type unitOfWork struct {
	tx    *sql.Tx
	clock domain.Clock
}

func (u *unitOfWork) CompareAndSwap(ctx context.Context, account domain.Account, expectedVersion int64) (domain.Account, error) {
	const query = `
UPDATE accounts
SET balance = $3,
    status = $4,
    overdraft_limit = $5,
    minimum_balance = $6,
    daily_limit = $7,
    daily_used = $8,
    daily_reset_at = $9,
    interest_rate = $10,
    last_interest_at = $11,
    version = version + 1,
    updated_at = $12
WHERE id = $1
  AND version = $2
RETURNING version, updated_at`

	err := u.tx.QueryRowContext(
		ctx,
		query,
		account.ID,
		expectedVersion,
		account.Balance,
		account.Status,
		account.OverdraftLimit,
		account.MinimumBalance,
		account.DailyLimit,
		account.DailyUsed,
		account.DailyResetAt,
		account.InterestRate,
		account.LastInterestAt,
		u.clock.Now(),
	).Scan(&account.Version, &account.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			logger.Warn("ledger repository version conflict", logger.Fields{
				"accountId":       account.ID,
				"expectedVersion": expectedVersion,
			})
			return domain.Account{}, fmt.Errorf("%w: account %s at version %d", commons.ErrVersionConflict, account.ID, expectedVersion)
		}
		return domain.Account{}, mapStoreError("compare and swap account", err)
	}
	return account, nil
}

func (u *unitOfWork) Append(ctx context.Context, transaction domain.Transaction) (domain.Transaction, error) {
	if transaction.ID == "" {
		transaction.ID = uuid.NewString()
	}
	now := u.clock.Now()
	if transaction.CreatedAt.IsZero() {
		transaction.CreatedAt = now
	}
	transaction.UpdatedAt = now
	transaction.Version = 1

	const query = `
INSERT INTO transactions (
	id,
	reference_number,
	source_account_id,
	target_account_id,
	amount,
	fee_amount,
	currency,
	type,
	status,
	description,
	failure_reason,
	actor_id,
	processed_at,
	version,
	created_at,
	updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	if _, err := u.tx.ExecContext(
		ctx,
		query,
		transaction.ID,
		transaction.ReferenceNumber,
		transaction.SourceAccountID,
		nullString(transaction.TargetAccountID),
		transaction.Amount,
		transaction.FeeAmount,
		transaction.Currency,
		transaction.Type,
		transaction.Status,
		transaction.Description,
		nullString(transaction.FailureReason),
		transaction.ActorID,
		nullTime(transaction.ProcessedAt),
		transaction.Version,
		transaction.CreatedAt,
		transaction.UpdatedAt,
	); err != nil {
		logger.Error("ledger repository append transaction failed", err, logger.Fields{
			"referenceNumber": transaction.ReferenceNumber,
		})
		return domain.Transaction{}, mapStoreError("append transaction", err)
	}
	return transaction, nil
}

func scanAccount(row rowScanner) (domain.Account, error) {
	var account domain.Account
	err := row.Scan(
		&account.ID,
		&account.AccountNumber,
		&account.OwnerID,
		&account.Currency,
		&account.Balance,
		&account.Status,
		&account.OverdraftLimit,
		&account.MinimumBalance,
		&account.DailyLimit,
		&account.DailyUsed,
		&account.DailyResetAt,
		&account.InterestRate,
		&account.LastInterestAt,
		&account.Version,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	return account, err
}

func scanTransaction(row rowScanner) (domain.Transaction, error) {
	var (
		tx            domain.Transaction
		targetAccount sql.NullString
		failure       sql.NullString
		processedAt   sql.NullTime
	)
	if err := row.Scan(
		&tx.ID,
		&tx.ReferenceNumber,
		&tx.SourceAccountID,
		&targetAccount,
		&tx.Amount,
		&tx.FeeAmount,
		&tx.Currency,
		&tx.Type,
		&tx.Status,
		&tx.Description,
		&failure,
		&tx.ActorID,
		&processedAt,
		&tx.Version,
		&tx.CreatedAt,
		&tx.UpdatedAt,
	); err != nil {
		return domain.Transaction{}, err
	}

	if targetAccount.Valid {
		value := targetAccount.String
		tx.TargetAccountID = &value
	}
	if failure.Valid {
		value := failure.String
		tx.FailureReason = &value
	}
	if processedAt.Valid {
		value := processedAt.Time
		tx.ProcessedAt = &value
	}
	return tx, nil
}

// mapStoreError turns postgres failures the ledger can act on into the shared
// sentinels. Unique violations mean a duplicate reference or account number.
// Serialization failures and deadlocks are treated like a lost version race.
func mapStoreError(operation string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s: %s", commons.ErrDuplicateReference, operation, pqErr.Constraint)
		case "40001", "40P01":
			return fmt.Errorf("%w: %s: %s", commons.ErrVersionConflict, operation, pqErr.Message)
		}
	}
	return fmt.Errorf("%s: %w", operation, err)
}

func nullString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}

func nullTime(value *time.Time) sql.NullTime {
	if value == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *value, Valid: true}
}
