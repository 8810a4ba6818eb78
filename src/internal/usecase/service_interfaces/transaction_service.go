package service_interfaces

import (
	"context"

	"github.com/api-sage/ledger-core/src/internal/domain"
)

type TransactionService interface {
	GetTransaction(ctx context.Context, id string) (domain.Transaction, error)
	GetTransactionByReference(ctx context.Context, referenceNumber string) (domain.Transaction, error)
	ListAccountTransactions(ctx context.Context, accountID string, limit int) ([]domain.Transaction, error)
}
