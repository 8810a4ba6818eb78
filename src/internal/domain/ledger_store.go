package domain

import (
	"context"
	"time"
)

type AccountReader interface {
	GetAccount(ctx context.Context, id string) (Account, error)
	GetAccountByNumber(ctx context.Context, accountNumber string) (Account, error)
	// ListActiveAccounts pages ACTIVE accounts in id order, starting after afterID.
	ListActiveAccounts(ctx context.Context, afterID string, limit int) ([]Account, error)
	// ListActiveAccountsByOwner returns the owner's ACTIVE accounts, oldest first.
	ListActiveAccountsByOwner(ctx context.Context, ownerID string) ([]Account, error)
}

type TransactionReader interface {
	GetTransaction(ctx context.Context, id string) (Transaction, error)
	GetTransactionByReference(ctx context.Context, referenceNumber string) (Transaction, error)
	// ListTransactionsByAccount returns entries touching the account, newest first.
	ListTransactionsByAccount(ctx context.Context, accountID string, limit int) ([]Transaction, error)
	// CountOutgoingSince counts COMPLETED TRANSFER and WITHDRAWAL entries sourced
	// from the account created at or after since.
	CountOutgoingSince(ctx context.Context, accountID string, since time.Time) (int, error)
}

// UnitOfWork is the atomic write boundary. Nothing staged through it is
// visible until the enclosing InUnitOfWork call returns nil.
type UnitOfWork interface {
	// CompareAndSwap stores account iff the persisted version equals
	// expectedVersion, returning the stored copy with its new version.
	CompareAndSwap(ctx context.Context, account Account, expectedVersion int64) (Account, error)
	Append(ctx context.Context, transaction Transaction) (Transaction, error)
}

type LedgerStore interface {
	AccountReader
	TransactionReader
	CreateAccount(ctx context.Context, account Account) (Account, error)
	InUnitOfWork(ctx context.Context, fn func(uow UnitOfWork) error) error
}

type AuditSink interface {
	Record(ctx context.Context, record AuditRecord) error
}

type AuditReader interface {
	Recent(ctx context.Context, limit int) ([]AuditRecord, error)
	BySeverity(ctx context.Context, severity Severity, limit int) ([]AuditRecord, error)
	ByResource(ctx context.Context, resourceType string, resourceID string, limit int) ([]AuditRecord, error)
}

type AuditStore interface {
	AuditSink
	AuditReader
}
