package services

import (
	"context"
	"strings"

	"github.com/api-sage/ledger-core/src/internal/domain"
	"github.com/api-sage/ledger-core/src/internal/logger"
)

type TransactionService struct {
	store domain.LedgerStore
}

func NewTransactionService(store domain.LedgerStore) *TransactionService {
	return &TransactionService{store: store}
}

func (s *TransactionService) GetTransaction(ctx context.Context, id string) (domain.Transaction, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Transaction{}, &domain.ValidationError{Errors: []string{"id is required"}}
	}

	tx, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return domain.Transaction{}, translateNotFound(err, domain.ErrTransactionNotFound, id)
	}
	return tx, nil
}

func (s *TransactionService) GetTransactionByReference(ctx context.Context, referenceNumber string) (domain.Transaction, error) {
	referenceNumber = strings.ToUpper(strings.TrimSpace(referenceNumber))
	if referenceNumber == "" {
		return domain.Transaction{}, &domain.ValidationError{Errors: []string{"reference is required"}}
	}

	tx, err := s.store.GetTransactionByReference(ctx, referenceNumber)
	if err != nil {
		return domain.Transaction{}, translateNotFound(err, domain.ErrTransactionNotFound, referenceNumber)
	}
	return tx, nil
}

// ListAccountTransactions returns newest entries first; limit is clamped to
// [1, 100] with 20 as the default.
func (s *TransactionService) ListAccountTransactions(ctx context.Context, accountID string, limit int) ([]domain.Transaction, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return nil, &domain.ValidationError{Errors: []string{"accountId is required"}}
	}

	if _, err := s.store.GetAccount(ctx, accountID); err != nil {
		return nil, translateNotFound(err, domain.ErrAccountNotFound, accountID)
	}

	txs, err := s.store.ListTransactionsByAccount(ctx, accountID, clampLimit(limit))
	if err != nil {
		logger.Error("transaction service list account transactions failed", err, logger.Fields{
			"accountId": accountID,
		})
		return nil, storeFailure("list account transactions", err)
	}
	return txs, nil
}
