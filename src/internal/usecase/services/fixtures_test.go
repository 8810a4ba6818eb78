package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/api-sage/ledger-core/src/internal/adapter/repository/memory"
	"github.com/api-sage/ledger-core/src/internal/domain"
	"github.com/api-sage/ledger-core/src/internal/usecase/services"
	"github.com/shopspring/decimal"
)

var t0 = time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// ledgerStoreStub overrides selected store calls and falls through to the
// in-memory store for everything else.
type ledgerStoreStub struct {
	*memory.LedgerStore
	getAccountFn     func(ctx context.Context, id string) (domain.Account, error)
	compareAndSwapFn func(ctx context.Context, account domain.Account, expectedVersion int64) (domain.Account, error)
}

func (s *ledgerStoreStub) GetAccount(ctx context.Context, id string) (domain.Account, error) {
	if s.getAccountFn != nil {
		return s.getAccountFn(ctx, id)
	}
	return s.LedgerStore.GetAccount(ctx, id)
}

func (s *ledgerStoreStub) InUnitOfWork(ctx context.Context, fn func(uow domain.UnitOfWork) error) error {
	return s.LedgerStore.InUnitOfWork(ctx, func(uow domain.UnitOfWork) error {
		return fn(&unitOfWorkStub{UnitOfWork: uow, store: s})
	})
}

type unitOfWorkStub struct {
	domain.UnitOfWork
	store *ledgerStoreStub
}

func (u *unitOfWorkStub) CompareAndSwap(ctx context.Context, account domain.Account, expectedVersion int64) (domain.Account, error) {
	if u.store.compareAndSwapFn != nil {
		return u.store.compareAndSwapFn(ctx, account, expectedVersion)
	}
	return u.UnitOfWork.CompareAndSwap(ctx, account, expectedVersion)
}

type auditSinkStub struct {
	recordFn func(ctx context.Context, record domain.AuditRecord) error
}

func (s auditSinkStub) Record(ctx context.Context, record domain.AuditRecord) error {
	return s.recordFn(ctx, record)
}

type ledger struct {
	clock        *manualClock
	memoryStore  *memory.LedgerStore
	store        domain.LedgerStore
	auditStore   *memory.AuditStore
	audit        *services.AuditService
	guard        *services.ConcurrencyGuard
	transfers    *services.TransferService
	accounts     *services.AccountService
	interest     *services.InterestService
	transactions *services.TransactionService
}

type ledgerOption func(*ledgerConfig)

type ledgerConfig struct {
	policy       services.AmountPolicy
	retry        services.RetryPolicy
	feePercent   decimal.Decimal
	feeAccountID string
	sink         domain.AuditSink
	wrap         func(*memory.LedgerStore) domain.LedgerStore
	batchSize    int
}

func withPolicy(fn func(*services.AmountPolicy)) ledgerOption {
	return func(c *ledgerConfig) { fn(&c.policy) }
}

func withFee(percent string, accountID string) ledgerOption {
	return func(c *ledgerConfig) {
		c.feePercent = decimal.RequireFromString(percent)
		c.feeAccountID = accountID
	}
}

func withAuditSink(sink domain.AuditSink) ledgerOption {
	return func(c *ledgerConfig) { c.sink = sink }
}

func withStore(wrap func(*memory.LedgerStore) domain.LedgerStore) ledgerOption {
	return func(c *ledgerConfig) { c.wrap = wrap }
}

func withBatchSize(n int) ledgerOption {
	return func(c *ledgerConfig) { c.batchSize = n }
}

func newLedger(t *testing.T, opts ...ledgerOption) *ledger {
	t.Helper()

	cfg := ledgerConfig{
		policy:     services.DefaultAmountPolicy(),
		retry:      services.RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond, AttemptTimeout: time.Second},
		feePercent: decimal.Zero,
		batchSize:  10,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	clock := &manualClock{now: t0}
	memStore := memory.NewLedgerStore(clock)
	var store domain.LedgerStore = memStore
	if cfg.wrap != nil {
		store = cfg.wrap(memStore)
	}

	auditStore := memory.NewAuditStore()
	var sink domain.AuditSink = auditStore
	if cfg.sink != nil {
		sink = cfg.sink
	}

	references := services.NewReferenceGenerator(clock)
	audit := services.NewAuditService(sink, auditStore, clock)
	guard := services.NewConcurrencyGuard(store, cfg.retry)

	return &ledger{
		clock:        clock,
		memoryStore:  memStore,
		store:        store,
		auditStore:   auditStore,
		audit:        audit,
		guard:        guard,
		transfers:    services.NewTransferService(store, guard, services.NewChargesService(cfg.feePercent), audit, clock, references, cfg.policy, cfg.feeAccountID),
		accounts:     services.NewAccountService(store, guard, audit, clock, references, cfg.policy),
		interest:     services.NewInterestService(store, guard, audit, clock, references, cfg.batchSize, 3),
		transactions: services.NewTransactionService(store),
	}
}

type accountSpec struct {
	id           string
	balance      string
	overdraft    string
	minimum      string
	dailyLimit   string
	interestRate string
	status       domain.AccountStatus
	currency     string
}

func (l *ledger) seed(t *testing.T, opts accountSpec) domain.Account {
	t.Helper()

	currency := opts.currency
	if currency == "" {
		currency = "USD"
	}
	account := domain.NewAccount(opts.id, "10000"+padID(opts.id), "owner-"+opts.id, currency, l.clock.Now())
	account.Balance = decimalOr(opts.balance, "0")
	account.OverdraftLimit = decimalOr(opts.overdraft, "0")
	account.MinimumBalance = decimalOr(opts.minimum, "0")
	account.DailyLimit = decimalOr(opts.dailyLimit, "10000.00")
	account.InterestRate = decimalOr(opts.interestRate, "0")
	if opts.status != "" {
		account.Status = opts.status
	}

	created, err := l.memoryStore.CreateAccount(context.Background(), account)
	if err != nil {
		t.Fatalf("expected no error seeding account %s, got %v", opts.id, err)
	}
	return created
}

func (l *ledger) balance(t *testing.T, id string) decimal.Decimal {
	t.Helper()

	account, err := l.memoryStore.GetAccount(context.Background(), id)
	if err != nil {
		t.Fatalf("expected account %s, got %v", id, err)
	}
	return account.Balance
}

func padID(id string) string {
	for len(id) < 5 {
		id = "0" + id
	}
	return id[len(id)-5:]
}

func decimalOr(value string, fallback string) decimal.Decimal {
	if value == "" {
		value = fallback
	}
	return decimal.RequireFromString(value)
}

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}
