package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/api-sage/ledger-core/src/internal/commons"
	"github.com/api-sage/ledger-core/src/internal/domain"
	"github.com/api-sage/ledger-core/src/internal/logger"
)

type RetryPolicy struct {
	MaxAttempts    int
	Backoff        time.Duration
	AttemptTimeout time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		Backoff:        25 * time.Millisecond,
		AttemptTimeout: 5 * time.Second,
	}
}

// ConcurrencyGuard owns the optimistic read-validate-write cycle: ordered
// account loads, compare-and-swap commits and the bounded conflict retry.
type ConcurrencyGuard struct {
	store  domain.LedgerStore
	policy RetryPolicy
}

func NewConcurrencyGuard(store domain.LedgerStore, policy RetryPolicy) *ConcurrencyGuard {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &ConcurrencyGuard{store: store, policy: policy}
}

// Run executes attempt until it succeeds, fails with anything other than a
// write conflict, or the attempt budget is spent.
func (g *ConcurrencyGuard) Run(ctx context.Context, operation string, attempt func(ctx context.Context, n int) error) error {
	var lastErr error

	for n := 1; n <= g.policy.MaxAttempts; n++ {
		attemptCtx, cancel := g.attemptContext(ctx)
		err := attempt(attemptCtx, n)
		cancel()

		if err == nil {
			return nil
		}
		if !isWriteConflict(err) {
			return err
		}

		lastErr = err
		logger.Warn("concurrency guard write conflict", logger.Fields{
			"operation": operation,
			"attempt":   n,
			"error":     err.Error(),
		})

		if n < g.policy.MaxAttempts {
			if err := g.wait(ctx, n); err != nil {
				return fmt.Errorf("%w: %s: %w", domain.ErrPersistenceUnavailable, operation, err)
			}
		}
	}

	return fmt.Errorf("%w: %s gave up after %d attempts: %v",
		domain.ErrConcurrencyConflict, operation, g.policy.MaxAttempts, lastErr)
}

// LoadAccounts reads each distinct id in ascending order.
func (g *ConcurrencyGuard) LoadAccounts(ctx context.Context, ids ...string) (map[string]domain.Account, error) {
	ordered := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		ordered = append(ordered, id)
	}
	sort.Strings(ordered)

	accounts := make(map[string]domain.Account, len(ordered))
	for _, id := range ordered {
		account, err := g.store.GetAccount(ctx, id)
		if err != nil {
			if errors.Is(err, commons.ErrRecordNotFound) {
				return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, id)
			}
			return nil, storeFailure("load account", err)
		}
		accounts[id] = account
	}

	return accounts, nil
}

// Commit runs fn as one unit of work and classifies what comes back.
func (g *ConcurrencyGuard) Commit(ctx context.Context, operation string, fn func(uow domain.UnitOfWork) error) error {
	return storeFailure(operation, g.store.InUnitOfWork(ctx, fn))
}

// SwapAll compare-and-swaps accounts in id order against the versions they
// were read at.
func SwapAll(ctx context.Context, uow domain.UnitOfWork, accounts ...domain.Account) (map[string]domain.Account, error) {
	sorted := append([]domain.Account(nil), accounts...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	stored := make(map[string]domain.Account, len(sorted))
	for _, account := range sorted {
		updated, err := uow.CompareAndSwap(ctx, account, account.Version)
		if err != nil {
			return nil, err
		}
		stored[updated.ID] = updated
	}
	return stored, nil
}

func (g *ConcurrencyGuard) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.policy.AttemptTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.policy.AttemptTimeout)
}

func (g *ConcurrencyGuard) wait(ctx context.Context, attempt int) error {
	if g.policy.Backoff <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(g.policy.Backoff * time.Duration(attempt))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func isWriteConflict(err error) bool {
	return errors.Is(err, commons.ErrVersionConflict) || errors.Is(err, commons.ErrDuplicateReference)
}

// storeFailure keeps conflicts and domain errors intact and reports anything
// else from the store as unavailable.
func storeFailure(operation string, err error) error {
	if err == nil {
		return nil
	}
	if isWriteConflict(err) {
		return err
	}
	if errors.Is(err, commons.ErrRecordNotFound) {
		return err
	}
	if domain.KindOf(err) != domain.KindUnknown {
		return err
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrPersistenceUnavailable, operation, err)
}
