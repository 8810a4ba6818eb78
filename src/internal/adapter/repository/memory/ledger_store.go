package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/api-sage/ledger-core/src/internal/commons"
	"github.com/api-sage/ledger-core/src/internal/domain"
	"github.com/api-sage/ledger-core/src/internal/logger"
	"github.com/google/uuid"
)

// LedgerStore keeps accounts and transactions in process memory. Units of
// work stage their writes and validate versions when they commit, so callers
// race exactly as they would against a database.
type LedgerStore struct {
	mu           sync.RWMutex
	clock        domain.Clock
	accounts     map[string]domain.Account
	byNumber     map[string]string
	transactions map[string]domain.Transaction
	byReference  map[string]string
	sequence     []string
}

func NewLedgerStore(clock domain.Clock) *LedgerStore {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &LedgerStore{
		clock:        clock,
		accounts:     map[string]domain.Account{},
		byNumber:     map[string]string{},
		transactions: map[string]domain.Transaction{},
		byReference:  map[string]string{},
	}
}

func (s *LedgerStore) CreateAccount(_ context.Context, account domain.Account) (domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	if _, exists := s.accounts[account.ID]; exists {
		return domain.Account{}, commons.ErrDuplicateReference
	}
	if _, exists := s.byNumber[account.AccountNumber]; exists {
		return domain.Account{}, commons.ErrDuplicateReference
	}

	now := s.clock.Now()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = account.CreatedAt
	account.Version = 1

	s.accounts[account.ID] = account
	s.byNumber[account.AccountNumber] = account.ID

	logger.Debug("memory store create account", logger.Fields{
		"accountId":     account.ID,
		"accountNumber": account.AccountNumber,
	})
	return account, nil
}

func (s *LedgerStore) GetAccount(_ context.Context, id string) (domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[strings.TrimSpace(id)]
	if !ok {
		return domain.Account{}, commons.ErrRecordNotFound
	}
	return account, nil
}

func (s *LedgerStore) GetAccountByNumber(_ context.Context, accountNumber string) (domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byNumber[strings.TrimSpace(accountNumber)]
	if !ok {
		return domain.Account{}, commons.ErrRecordNotFound
	}
	return s.accounts[id], nil
}

func (s *LedgerStore) ListActiveAccounts(_ context.Context, afterID string, limit int) ([]domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.accounts))
	for id, account := range s.accounts {
		if account.IsActive() && id > afterID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	out := make([]domain.Account, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.accounts[id])
	}
	return out, nil
}

func (s *LedgerStore) ListActiveAccountsByOwner(_ context.Context, ownerID string) ([]domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Account, 0)
	for _, account := range s.accounts {
		if account.IsActive() && account.OwnerID == ownerID {
			out = append(out, account)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *LedgerStore) GetTransaction(_ context.Context, id string) (domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.transactions[strings.TrimSpace(id)]
	if !ok {
		return domain.Transaction{}, commons.ErrRecordNotFound
	}
	return tx, nil
}

func (s *LedgerStore) GetTransactionByReference(_ context.Context, referenceNumber string) (domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byReference[strings.TrimSpace(referenceNumber)]
	if !ok {
		return domain.Transaction{}, commons.ErrRecordNotFound
	}
	return s.transactions[id], nil
}

func (s *LedgerStore) ListTransactionsByAccount(_ context.Context, accountID string, limit int) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Transaction, 0)
	for i := len(s.sequence) - 1; i >= 0; i-- {
		tx := s.transactions[s.sequence[i]]
		if tx.SourceAccountID != accountID && (tx.TargetAccountID == nil || *tx.TargetAccountID != accountID) {
			continue
		}
		out = append(out, tx)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *LedgerStore) CountOutgoingSince(_ context.Context, accountID string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, tx := range s.transactions {
		if tx.SourceAccountID != accountID || tx.Status != domain.TransactionStatusCompleted {
			continue
		}
		if tx.Type != domain.TransactionTypeTransfer && tx.Type != domain.TransactionTypeWithdrawal {
			continue
		}
		if tx.CreatedAt.Before(since) {
			continue
		}
		count++
	}
	return count, nil
}

func (s *LedgerStore) InUnitOfWork(ctx context.Context, fn func(uow domain.UnitOfWork) error) error {
	uow := &unitOfWork{
		store:    s,
		now:      s.clock.Now(),
		accounts: map[string]stagedAccount{},
	}

	if err := fn(uow); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.commit(uow)
}

func (s *LedgerStore) commit(uow *unitOfWork) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, staged := range uow.accounts {
		current, ok := s.accounts[id]
		if !ok {
			return commons.ErrRecordNotFound
		}
		if current.Version != staged.baseVersion {
			return commons.ErrVersionConflict
		}
	}

	seen := map[string]struct{}{}
	for _, tx := range uow.transactions {
		if _, exists := s.byReference[tx.ReferenceNumber]; exists {
			return commons.ErrDuplicateReference
		}
		if _, exists := seen[tx.ReferenceNumber]; exists {
			return commons.ErrDuplicateReference
		}
		seen[tx.ReferenceNumber] = struct{}{}
	}

	for id, staged := range uow.accounts {
		s.accounts[id] = staged.account
	}
	for _, tx := range uow.transactions {
		s.transactions[tx.ID] = tx
		s.byReference[tx.ReferenceNumber] = tx.ID
		s.sequence = append(s.sequence, tx.ID)
	}
	return nil
}

type stagedAccount struct {
	baseVersion int64
	account     domain.Account
}

type unitOfWork struct {
	store        *LedgerStore
	now          time.Time
	accounts     map[string]stagedAccount
	transactions []domain.Transaction
}

func (u *unitOfWork) CompareAndSwap(_ context.Context, account domain.Account, expectedVersion int64) (domain.Account, error) {
	staged, ok := u.accounts[account.ID]
	if ok {
		if staged.account.Version != expectedVersion {
			return domain.Account{}, commons.ErrVersionConflict
		}
	} else {
		current, err := u.store.GetAccount(context.Background(), account.ID)
		if err != nil {
			return domain.Account{}, err
		}
		if current.Version != expectedVersion {
			return domain.Account{}, commons.ErrVersionConflict
		}
		staged = stagedAccount{baseVersion: expectedVersion}
	}

	account.Version = expectedVersion + 1
	account.UpdatedAt = u.now
	staged.account = account
	u.accounts[account.ID] = staged
	return account, nil
}

func (u *unitOfWork) Append(_ context.Context, tx domain.Transaction) (domain.Transaction, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = u.now
	}
	if tx.UpdatedAt.IsZero() {
		tx.UpdatedAt = tx.CreatedAt
	}
	tx.Version = 1
	u.transactions = append(u.transactions, tx)
	return tx, nil
}
