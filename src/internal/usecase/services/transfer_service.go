package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/api-sage/ledger-core/src/internal/domain"
	"github.com/api-sage/ledger-core/src/internal/logger"
	"github.com/api-sage/ledger-core/src/internal/usecase/service_interfaces"
	"github.com/shopspring/decimal"
)

type TransferService struct {
	store        domain.LedgerStore
	guard        *ConcurrencyGuard
	charges      service_interfaces.ChargesService
	audit        service_interfaces.AuditService
	clock        domain.Clock
	references   domain.ReferenceGenerator
	policy       AmountPolicy
	feeAccountID string
}

func NewTransferService(
	store domain.LedgerStore,
	guard *ConcurrencyGuard,
	charges service_interfaces.ChargesService,
	audit service_interfaces.AuditService,
	clock domain.Clock,
	references domain.ReferenceGenerator,
	policy AmountPolicy,
	feeAccountID string,
) *TransferService {
	return &TransferService{
		store:        store,
		guard:        guard,
		charges:      charges,
		audit:        audit,
		clock:        clock,
		references:   references,
		policy:       policy,
		feeAccountID: strings.TrimSpace(feeAccountID),
	}
}

// transferPlan is what one attempt computed before touching the store.
type transferPlan struct {
	source     domain.Account
	target     domain.Account
	feeAccount *domain.Account
	fee        decimal.Decimal
}

// Transfer moves cmd.Amount from source to target as one unit of work. Write
// conflicts rerun the whole load-validate-mutate-persist cycle; parameter
// validation runs once.
func (s *TransferService) Transfer(ctx context.Context, cmd service_interfaces.TransferCommand) (domain.Transaction, error) {
	cmd.SourceAccountID = strings.TrimSpace(cmd.SourceAccountID)
	cmd.TargetAccountID = strings.TrimSpace(cmd.TargetAccountID)
	cmd.Description = strings.TrimSpace(cmd.Description)

	logger.Info("transfer service transfer request", logger.Fields{
		"payload": logger.SanitizePayload(cmd),
	})

	if err := s.validate(cmd); err != nil {
		logger.Error("transfer service transfer validation failed", err, nil)
		s.auditFailure(ctx, cmd, nil, err)
		return domain.Transaction{}, err
	}

	var completed domain.Transaction
	var lastPlan *transferPlan
	err := s.guard.Run(ctx, "transfer", func(ctx context.Context, attempt int) error {
		plan, err := s.plan(ctx, cmd)
		if err != nil {
			return err
		}
		lastPlan = &plan

		tx, err := s.execute(ctx, cmd, plan)
		if err != nil {
			return err
		}
		completed = tx
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrConcurrencyConflict) {
			err = s.cancel(ctx, cmd, lastPlan, err)
		}

		var failed *TransferFailedError
		var persisted *domain.Transaction
		if errors.As(err, &failed) {
			persisted = &failed.Transaction
		}

		logger.Error("transfer service transfer failed", err, logger.Fields{
			"sourceAccountId": cmd.SourceAccountID,
			"targetAccountId": cmd.TargetAccountID,
			"kind":            domain.KindOf(err),
		})
		s.auditFailure(ctx, cmd, persisted, err)
		return domain.Transaction{}, err
	}

	logger.Info("transfer service transfer success", logger.Fields{
		"transactionId":   completed.ID,
		"referenceNumber": completed.ReferenceNumber,
		"amount":          completed.Amount.StringFixed(2),
		"fee":             completed.FeeAmount.StringFixed(2),
	})

	s.audit.Record(ctx, domain.AuditRecord{
		ActorID:      actorOrDefault(cmd.ActorID, lastPlan.source.OwnerID),
		Action:       domain.AuditActionTransferSuccess,
		ResourceType: domain.AuditResourceTransaction,
		ResourceID:   completed.ID,
		Severity:     domain.SeverityInfo,
		Detail: fmt.Sprintf("Transfer: %s from %s to %s, Reference: %s",
			completed.Amount.StringFixed(2), lastPlan.source.AccountNumber, lastPlan.target.AccountNumber, completed.ReferenceNumber),
	})

	return completed, nil
}

func (s *TransferService) validate(cmd service_interfaces.TransferCommand) error {
	var errs []string

	if cmd.SourceAccountID == "" {
		errs = append(errs, "sourceAccountId is required")
	}
	if cmd.TargetAccountID == "" {
		errs = append(errs, "targetAccountId is required")
	}
	if cmd.SourceAccountID != "" && cmd.SourceAccountID == cmd.TargetAccountID {
		errs = append(errs, "sourceAccountId and targetAccountId cannot be the same")
	}
	errs = append(errs, s.policy.amountErrors("amount", cmd.Amount)...)

	if len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}

// plan loads the accounts and checks state, funds and limits.
func (s *TransferService) plan(ctx context.Context, cmd service_interfaces.TransferCommand) (transferPlan, error) {
	now := s.clock.Now()

	fee := decimal.Zero
	ids := []string{cmd.SourceAccountID, cmd.TargetAccountID}
	if s.chargesFee(cmd) {
		fee = s.charges.TransferFee(cmd.Amount)
		if fee.IsPositive() {
			ids = append(ids, s.feeAccountID)
		}
	}

	accounts, err := s.guard.LoadAccounts(ctx, ids...)
	if err != nil {
		return transferPlan{}, err
	}

	plan := transferPlan{
		source: accounts[cmd.SourceAccountID],
		target: accounts[cmd.TargetAccountID],
		fee:    fee,
	}
	if fee.IsPositive() {
		feeAccount := accounts[s.feeAccountID]
		plan.feeAccount = &feeAccount
	}

	if err := requireActive("source", plan.source); err != nil {
		return transferPlan{}, err
	}
	if err := requireActive("target", plan.target); err != nil {
		return transferPlan{}, err
	}
	if !strings.EqualFold(plan.source.Currency, plan.target.Currency) {
		return transferPlan{}, &domain.ValidationError{Errors: []string{
			fmt.Sprintf("currency mismatch: source is %s, target is %s", plan.source.Currency, plan.target.Currency),
		}}
	}
	if plan.feeAccount != nil && plan.feeAccount.IsClosed() {
		return transferPlan{}, fmt.Errorf("%w: fee account %s is closed", domain.ErrAccountInactive, plan.feeAccount.ID)
	}

	if err := s.policy.checkDebit(plan.source, cmd.Amount.Add(fee)); err != nil {
		return transferPlan{}, err
	}

	if !plan.source.WithinDailyLimit(cmd.Amount, now) {
		return transferPlan{}, fmt.Errorf("%w: account %s has %s left of %s",
			domain.ErrDailyLimitExceeded, plan.source.ID, plan.source.DailyRemaining(now).StringFixed(2), plan.source.DailyLimit.StringFixed(2))
	}
	if s.policy.MaxDailyTransactions > 0 {
		count, err := s.store.CountOutgoingSince(ctx, plan.source.ID, now.Add(-domain.DailyWindow))
		if err != nil {
			return transferPlan{}, storeFailure("count outgoing transactions", err)
		}
		if count >= s.policy.MaxDailyTransactions {
			return transferPlan{}, fmt.Errorf("%w: account %s reached %d transactions in 24h",
				domain.ErrDailyLimitExceeded, plan.source.ID, s.policy.MaxDailyTransactions)
		}
	}

	return plan, nil
}

// execute mutates copies of the planned accounts and persists them with the
// transaction. A mutation failure persists only a FAILED entry.
func (s *TransferService) execute(ctx context.Context, cmd service_interfaces.TransferCommand, plan transferPlan) (domain.Transaction, error) {
	now := s.clock.Now()

	tx := pendingTransaction(s.references.Next(), domain.TransactionTypeTransfer, plan.source, cmd.Amount, cmd.Description, actorOrDefault(cmd.ActorID, plan.source.OwnerID), now)
	tx.TargetAccountID = stringPtr(plan.target.ID)
	tx.FeeAmount = plan.fee
	if err := tx.Validate(); err != nil {
		return domain.Transaction{}, err
	}

	source, target := plan.source, plan.target
	changed := []*domain.Account{&source, &target}
	var feeAccount domain.Account
	if plan.feeAccount != nil {
		feeAccount = *plan.feeAccount
		changed = append(changed, &feeAccount)
	}

	if mutationErr := applyTransfer(changed, cmd.Amount, plan.fee, now); mutationErr != nil {
		if err := tx.Fail(mutationErr.Error(), now); err != nil {
			return domain.Transaction{}, err
		}
		stored, err := s.appendOnly(ctx, "persist failed transfer", tx)
		if err != nil {
			return domain.Transaction{}, err
		}
		return domain.Transaction{}, &TransferFailedError{Transaction: stored, Err: mutationErr}
	}

	if err := tx.Complete(now); err != nil {
		return domain.Transaction{}, err
	}

	var stored domain.Transaction
	err := s.guard.Commit(ctx, "persist transfer", func(uow domain.UnitOfWork) error {
		accounts := make([]domain.Account, 0, len(changed))
		for _, account := range changed {
			accounts = append(accounts, *account)
		}
		if _, err := SwapAll(ctx, uow, accounts...); err != nil {
			return err
		}

		appended, err := uow.Append(ctx, tx)
		if err != nil {
			return err
		}
		stored = appended
		return nil
	})
	if err != nil {
		return domain.Transaction{}, err
	}

	return stored, nil
}

// applyTransfer debits changed[0] by amount plus fee, credits changed[1] and
// the optional fee account in changed[2], then re-checks conservation before
// anything is written.
func applyTransfer(changed []*domain.Account, amount decimal.Decimal, fee decimal.Decimal, now time.Time) error {
	source, target := changed[0], changed[1]

	before := decimal.Zero
	for _, account := range changed {
		before = before.Add(account.Balance)
	}

	if err := source.Debit(amount.Add(fee)); err != nil {
		return err
	}
	if err := target.Credit(amount); err != nil {
		return err
	}
	if len(changed) > 2 {
		if err := changed[2].Credit(fee); err != nil {
			return err
		}
	}
	source.RecordUsage(amount, now)

	after := decimal.Zero
	for _, account := range changed {
		after = after.Add(account.Balance)
	}
	if !before.Equal(after) {
		return fmt.Errorf("ledger imbalance: %s before, %s after", before.StringFixed(2), after.StringFixed(2))
	}
	if source.AvailableFunds().IsNegative() {
		return fmt.Errorf("source account %s would exceed its overdraft", source.ID)
	}
	return nil
}

// cancel records a CANCELLED entry once the retry budget is spent.
func (s *TransferService) cancel(ctx context.Context, cmd service_interfaces.TransferCommand, plan *transferPlan, cause error) error {
	if plan == nil {
		return cause
	}

	now := s.clock.Now()
	tx := pendingTransaction(s.references.Next(), domain.TransactionTypeTransfer, plan.source, cmd.Amount, cmd.Description, actorOrDefault(cmd.ActorID, plan.source.OwnerID), now)
	tx.TargetAccountID = stringPtr(plan.target.ID)
	tx.FeeAmount = plan.fee
	if err := tx.Cancel(cause.Error(), now); err != nil {
		return cause
	}

	stored, err := s.appendOnly(ctx, "persist cancelled transfer", tx)
	if err != nil {
		logger.Error("transfer service persist cancelled transfer failed", err, logger.Fields{
			"referenceNumber": tx.ReferenceNumber,
		})
		return cause
	}
	return &TransferFailedError{Transaction: stored, Err: cause}
}

func (s *TransferService) appendOnly(ctx context.Context, operation string, tx domain.Transaction) (domain.Transaction, error) {
	var stored domain.Transaction
	err := s.guard.Commit(ctx, operation, func(uow domain.UnitOfWork) error {
		appended, err := uow.Append(ctx, tx)
		if err != nil {
			return err
		}
		stored = appended
		return nil
	})
	return stored, err
}

func (s *TransferService) auditFailure(ctx context.Context, cmd service_interfaces.TransferCommand, persisted *domain.Transaction, cause error) {
	record := domain.AuditRecord{
		ActorID:      actorOrDefault(cmd.ActorID, ""),
		Action:       domain.AuditActionTransferFailed,
		ResourceType: domain.AuditResourceAccount,
		ResourceID:   cmd.SourceAccountID,
		Severity:     domain.SeverityWarn,
		Detail: fmt.Sprintf("Transfer: %s from %s to %s failed (%s): %v",
			cmd.Amount.StringFixed(2), cmd.SourceAccountID, cmd.TargetAccountID, domain.KindOf(cause), cause),
	}
	if persisted != nil {
		record.ResourceType = domain.AuditResourceTransaction
		record.ResourceID = persisted.ID
	}
	if domain.IsRetryable(cause) {
		record.Severity = domain.SeverityError
	}

	s.audit.Record(ctx, record)
}

func (s *TransferService) chargesFee(cmd service_interfaces.TransferCommand) bool {
	if s.charges == nil || s.feeAccountID == "" {
		return false
	}
	return s.feeAccountID != cmd.SourceAccountID && s.feeAccountID != cmd.TargetAccountID
}
