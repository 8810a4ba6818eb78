package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/api-sage/ledger-core/src/internal/domain"
	"github.com/api-sage/ledger-core/src/internal/logger"
	"github.com/api-sage/ledger-core/src/internal/usecase/service_interfaces"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const interestRunResource = "INTEREST_RUN"

type InterestService struct {
	store      domain.LedgerStore
	guard      *ConcurrencyGuard
	audit      service_interfaces.AuditService
	clock      domain.Clock
	references domain.ReferenceGenerator
	batchSize  int
	workers    int
}

func NewInterestService(
	store domain.LedgerStore,
	guard *ConcurrencyGuard,
	audit service_interfaces.AuditService,
	clock domain.Clock,
	references domain.ReferenceGenerator,
	batchSize int,
	workers int,
) *InterestService {
	if batchSize < 1 {
		batchSize = 100
	}
	if workers < 1 {
		workers = 1
	}
	return &InterestService{
		store:      store,
		guard:      guard,
		audit:      audit,
		clock:      clock,
		references: references,
		batchSize:  batchSize,
		workers:    workers,
	}
}

type interestOutcome int

const (
	interestSkipped interestOutcome = iota
	interestCredited
)

// ApplyInterest walks every ACTIVE account page by page. Each account is its
// own unit of work, so one failure is logged and the run moves on.
func (s *InterestService) ApplyInterest(ctx context.Context) (service_interfaces.InterestRunSummary, error) {
	summary := service_interfaces.InterestRunSummary{
		RunID:         uuid.NewString(),
		TotalInterest: decimal.Zero,
	}

	logger.Info("interest service run started", logger.Fields{
		"runId":     summary.RunID,
		"batchSize": s.batchSize,
		"workers":   s.workers,
	})

	afterID := ""
	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		batch, err := s.store.ListActiveAccounts(ctx, afterID, s.batchSize)
		if err != nil {
			logger.Error("interest service list active accounts failed", err, logger.Fields{
				"runId":   summary.RunID,
				"afterId": afterID,
			})
			return summary, storeFailure("list active accounts", err)
		}
		if len(batch) == 0 {
			break
		}

		s.processBatch(ctx, batch, &summary)

		afterID = batch[len(batch)-1].ID
		if len(batch) < s.batchSize {
			break
		}
	}

	logger.Info("interest service run finished", logger.Fields{
		"runId":         summary.RunID,
		"processed":     summary.Processed,
		"credited":      summary.Credited,
		"skipped":       summary.Skipped,
		"failed":        summary.Failed,
		"totalInterest": summary.TotalInterest.StringFixed(2),
	})

	severity := domain.SeverityInfo
	if summary.Failed > 0 {
		severity = domain.SeverityWarn
	}
	s.audit.Record(ctx, domain.AuditRecord{
		ActorID:      systemActorID,
		Action:       domain.AuditActionInterestApplied,
		ResourceType: interestRunResource,
		ResourceID:   summary.RunID,
		Severity:     severity,
		Detail: fmt.Sprintf("Interest run: %d processed, %d credited, %d skipped, %d failed, total %s",
			summary.Processed, summary.Credited, summary.Skipped, summary.Failed, summary.TotalInterest.StringFixed(2)),
	})

	return summary, nil
}

func (s *InterestService) processBatch(ctx context.Context, batch []domain.Account, summary *service_interfaces.InterestRunSummary) {
	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(s.workers)

	for _, account := range batch {
		accountID := account.ID
		g.Go(func() error {
			outcome, interest, err := s.applyToAccount(ctx, accountID)

			mu.Lock()
			defer mu.Unlock()

			summary.Processed++
			if err != nil {
				summary.Failed++
				summary.FailedIDs = append(summary.FailedIDs, accountID)
				logger.Error("interest service apply interest failed", err, logger.Fields{
					"runId":     summary.RunID,
					"accountId": accountID,
				})
				return nil
			}
			if outcome == interestCredited {
				summary.Credited++
				summary.TotalInterest = summary.TotalInterest.Add(interest)
				return nil
			}
			summary.Skipped++
			return nil
		})
	}

	_ = g.Wait()
}

func (s *InterestService) applyToAccount(ctx context.Context, accountID string) (interestOutcome, decimal.Decimal, error) {
	outcome := interestSkipped
	credited := decimal.Zero

	err := s.guard.Run(ctx, "apply interest", func(ctx context.Context, attempt int) error {
		outcome, credited = interestSkipped, decimal.Zero

		accounts, err := s.guard.LoadAccounts(ctx, accountID)
		if err != nil {
			return err
		}
		account := accounts[accountID]
		if !account.IsActive() {
			return nil
		}

		now := s.clock.Now()
		updated := account
		interest := updated.ApplyInterest(now)
		if updated.LastInterestAt.Equal(account.LastInterestAt) {
			return nil
		}

		var tx *domain.Transaction
		if interest.IsPositive() {
			entry := pendingTransaction(s.references.Next(), domain.TransactionTypeInterest, account, interest, "Daily interest", systemActorID, now)
			if err := entry.Complete(now); err != nil {
				return err
			}
			tx = &entry
		}

		err = s.guard.Commit(ctx, "persist interest", func(uow domain.UnitOfWork) error {
			if _, err := uow.CompareAndSwap(ctx, updated, account.Version); err != nil {
				return err
			}
			if tx != nil {
				if _, err := uow.Append(ctx, *tx); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}

		if interest.IsPositive() {
			outcome, credited = interestCredited, interest
		}
		return nil
	})

	return outcome, credited, err
}
