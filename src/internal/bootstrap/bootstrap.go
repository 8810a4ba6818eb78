package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/api-sage/ledger-core/src/internal/adapter/repository/dynamodb"
	"github.com/api-sage/ledger-core/src/internal/adapter/repository/immudb"
	"github.com/api-sage/ledger-core/src/internal/adapter/repository/implementations"
	"github.com/api-sage/ledger-core/src/internal/adapter/repository/memory"
	"github.com/api-sage/ledger-core/src/internal/config"
	"github.com/api-sage/ledger-core/src/internal/domain"
	"github.com/api-sage/ledger-core/src/internal/logger"
	"github.com/api-sage/ledger-core/src/internal/usecase/services"
)

// Ledger holds the wired stores and services shared by the binaries.
type Ledger struct {
	Store      domain.LedgerStore
	AuditStore domain.AuditStore
	// DB is nil unless a postgres store or audit sink is in use.
	DB *sql.DB

	Accounts     *services.AccountService
	Transfers    *services.TransferService
	Transactions *services.TransactionService
	Audit        *services.AuditService
	Interest     *services.InterestService

	closers []func(ctx context.Context) error
}

// Open connects the configured ledger store and audit sink, then builds the
// services on top of them. Close releases whatever Open acquired.
func Open(ctx context.Context, cfg config.Config) (*Ledger, error) {
	clock := domain.SystemClock{}
	ledger := &Ledger{}

	store, err := ledger.openStore(ctx, cfg, clock)
	if err != nil {
		_ = ledger.Close(ctx)
		return nil, err
	}
	ledger.Store = store

	auditStore, err := ledger.openAuditStore(ctx, cfg)
	if err != nil {
		_ = ledger.Close(ctx)
		return nil, err
	}
	ledger.AuditStore = auditStore

	retry := services.RetryPolicy{
		MaxAttempts:    cfg.Transfer.MaxAttempts,
		Backoff:        cfg.Transfer.RetryBackoff,
		AttemptTimeout: cfg.Transfer.AttemptTimeout,
	}
	policy := services.AmountPolicy{
		MinAmount:             cfg.Transfer.MinAmount,
		MaxAmount:             cfg.Transfer.MaxAmount,
		MaxDailyTransactions:  cfg.Transfer.MaxDailyTransactions,
		EnforceMinimumBalance: cfg.Transfer.EnforceMinimumBalance,
		DefaultDailyLimit:     cfg.Transfer.DefaultDailyLimit,
	}

	guard := services.NewConcurrencyGuard(store, retry)
	references := services.NewReferenceGenerator(clock)
	ledger.Audit = services.NewAuditService(auditStore, auditStore, clock)
	ledger.Accounts = services.NewAccountService(store, guard, ledger.Audit, clock, references, policy)
	ledger.Transfers = services.NewTransferService(
		store,
		guard,
		services.NewChargesService(cfg.Transfer.FeePercent),
		ledger.Audit,
		clock,
		references,
		policy,
		cfg.Transfer.FeeAccountID,
	)
	ledger.Transactions = services.NewTransactionService(store)
	ledger.Interest = services.NewInterestService(store, guard, ledger.Audit, clock, references, cfg.Interest.BatchSize, cfg.Interest.Workers)

	logger.Info("ledger bootstrapped", logger.Fields{
		"store":     cfg.StoreBackend,
		"auditSink": auditSinkName(cfg),
	})
	return ledger, nil
}

func (l *Ledger) openStore(ctx context.Context, cfg config.Config, clock domain.Clock) (domain.LedgerStore, error) {
	switch cfg.StoreBackend {
	case config.StoreBackendMemory:
		return memory.NewLedgerStore(clock), nil
	case config.StoreBackendDynamoDB:
		client, err := dynamodb.NewClient(ctx, cfg.DynamoDB.Region, cfg.DynamoDB.Endpoint)
		if err != nil {
			return nil, fmt.Errorf("open dynamodb store: %w", err)
		}
		return dynamodb.NewLedgerStore(client, dynamodb.Tables{
			Accounts:     cfg.DynamoDB.AccountsTable,
			Transactions: cfg.DynamoDB.TransactionsTable,
		}, clock), nil
	default:
		db, err := l.postgres(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return implementations.NewLedgerStore(db, clock), nil
	}
}

func (l *Ledger) openAuditStore(ctx context.Context, cfg config.Config) (domain.AuditStore, error) {
	switch auditSinkName(cfg) {
	case config.StoreBackendMemory:
		return memory.NewAuditStore(), nil
	case config.AuditSinkImmuDB:
		store, err := immudb.Open(ctx, immudb.Options{
			Address:  cfg.ImmuDB.Address,
			Port:     cfg.ImmuDB.Port,
			Username: cfg.ImmuDB.Username,
			Password: cfg.ImmuDB.Password,
			Database: cfg.ImmuDB.Database,
		})
		if err != nil {
			return nil, fmt.Errorf("open immudb audit sink: %w", err)
		}
		l.closers = append(l.closers, store.Close)
		return store, nil
	default:
		db, err := l.postgres(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return implementations.NewAuditRepository(db), nil
	}
}

// postgres opens the shared pool once and applies pending migrations.
func (l *Ledger) postgres(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if l.DB != nil {
		return l.DB, nil
	}

	db, err := implementations.Open(ctx, cfg.DatabaseDSN, implementations.DefaultPoolOptions())
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	l.DB = db
	l.closers = append(l.closers, func(context.Context) error { return db.Close() })

	if err := implementations.RunMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return db, nil
}

// Close releases resources in reverse acquisition order.
func (l *Ledger) Close(ctx context.Context) error {
	var errs []error
	for i := len(l.closers) - 1; i >= 0; i-- {
		if err := l.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	l.closers = nil
	return errors.Join(errs...)
}

// auditSinkName keeps a memory ledger fully in process.
func auditSinkName(cfg config.Config) string {
	if cfg.StoreBackend == config.StoreBackendMemory {
		return config.StoreBackendMemory
	}
	return cfg.AuditSink
}
