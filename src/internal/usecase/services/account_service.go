package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/api-sage/ledger-core/src/internal/commons"
	"github.com/api-sage/ledger-core/src/internal/domain"
	"github.com/api-sage/ledger-core/src/internal/logger"
	"github.com/api-sage/ledger-core/src/internal/usecase/service_interfaces"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const accountNumberAttempts = 5

// interestRateScale matches the NUMERIC(9,6) column so every store accrues alike.
const interestRateScale = 6

var accountNumberSpace = big.NewInt(9_000_000_000)

type AccountService struct {
	store      domain.LedgerStore
	guard      *ConcurrencyGuard
	audit      service_interfaces.AuditService
	clock      domain.Clock
	references domain.ReferenceGenerator
	policy     AmountPolicy
}

func NewAccountService(
	store domain.LedgerStore,
	guard *ConcurrencyGuard,
	audit service_interfaces.AuditService,
	clock domain.Clock,
	references domain.ReferenceGenerator,
	policy AmountPolicy,
) *AccountService {
	return &AccountService{
		store:      store,
		guard:      guard,
		audit:      audit,
		clock:      clock,
		references: references,
		policy:     policy,
	}
}

func (s *AccountService) CreateAccount(ctx context.Context, cmd service_interfaces.CreateAccountCommand) (domain.Account, error) {
	logger.Info("account service create account request", logger.Fields{
		"payload": logger.SanitizePayload(cmd),
	})

	cmd.OwnerID = strings.TrimSpace(cmd.OwnerID)
	cmd.Currency = strings.ToUpper(strings.TrimSpace(cmd.Currency))
	if err := validateCreateAccount(cmd); err != nil {
		logger.Error("account service create account validation failed", err, nil)
		return domain.Account{}, err
	}

	now := s.clock.Now()
	var created domain.Account
	var err error
	for attempt := 0; attempt < accountNumberAttempts; attempt++ {
		account := domain.NewAccount(uuid.NewString(), generateAccountNumber(), cmd.OwnerID, cmd.Currency, now)
		account.Balance = cmd.InitialDeposit.Round(2)
		account.OverdraftLimit = cmd.OverdraftLimit.Round(2)
		account.MinimumBalance = cmd.MinimumBalance.Round(2)
		account.DailyLimit = cmd.DailyLimit.Round(2)
		if account.DailyLimit.IsZero() {
			account.DailyLimit = s.policy.DefaultDailyLimit.Round(2)
		}
		account.InterestRate = cmd.InterestRate

		created, err = s.store.CreateAccount(ctx, account)
		if err == nil {
			break
		}
		if !errors.Is(err, commons.ErrDuplicateReference) {
			break
		}
	}
	if err != nil {
		logger.Error("account service create account repository failed", err, logger.Fields{
			"ownerId": cmd.OwnerID,
		})
		return domain.Account{}, storeFailure("create account", err)
	}

	logger.Info("account service create account success", logger.Fields{
		"accountId":     created.ID,
		"accountNumber": created.AccountNumber,
		"ownerId":       created.OwnerID,
	})

	s.audit.Record(ctx, domain.AuditRecord{
		ActorID:      actorOrDefault(cmd.ActorID, created.OwnerID),
		Action:       domain.AuditActionAccountCreated,
		ResourceType: domain.AuditResourceAccount,
		ResourceID:   created.ID,
		Severity:     domain.SeverityInfo,
		Detail:       fmt.Sprintf("Account %s opened in %s with %s", created.AccountNumber, created.Currency, created.Balance.StringFixed(2)),
	})

	return created, nil
}

func (s *AccountService) GetAccount(ctx context.Context, id string) (domain.Account, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Account{}, &domain.ValidationError{Errors: []string{"id is required"}}
	}

	account, err := s.store.GetAccount(ctx, id)
	if err != nil {
		return domain.Account{}, translateNotFound(err, domain.ErrAccountNotFound, id)
	}
	return account, nil
}

func (s *AccountService) GetAccountByNumber(ctx context.Context, accountNumber string) (domain.Account, error) {
	accountNumber = strings.TrimSpace(accountNumber)
	if !isTenDigitAccountNumber(accountNumber) {
		return domain.Account{}, &domain.ValidationError{Errors: []string{"accountNumber must be exactly 10 digits"}}
	}

	account, err := s.store.GetAccountByNumber(ctx, accountNumber)
	if err != nil {
		return domain.Account{}, translateNotFound(err, domain.ErrAccountNotFound, accountNumber)
	}
	return account, nil
}

// ListActiveAccountsByOwner returns an empty list for an owner without
// active accounts.
func (s *AccountService) ListActiveAccountsByOwner(ctx context.Context, ownerID string) ([]domain.Account, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, &domain.ValidationError{Errors: []string{"ownerId is required"}}
	}

	accounts, err := s.store.ListActiveAccountsByOwner(ctx, ownerID)
	if err != nil {
		return nil, storeFailure("list owner accounts", err)
	}
	return accounts, nil
}

// UpdateStatus is the administrative path between ACTIVE and FROZEN and
// towards CLOSED.
func (s *AccountService) UpdateStatus(ctx context.Context, id string, status domain.AccountStatus, actorID string) (domain.Account, error) {
	id = strings.TrimSpace(id)
	status = domain.AccountStatus(strings.ToUpper(strings.TrimSpace(string(status))))
	logger.Info("account service update status request", logger.Fields{
		"accountId": id,
		"status":    status,
	})

	if id == "" {
		return domain.Account{}, &domain.ValidationError{Errors: []string{"id is required"}}
	}

	var previous domain.AccountStatus
	var stored domain.Account
	err := s.guard.Run(ctx, "update account status", func(ctx context.Context, attempt int) error {
		accounts, err := s.guard.LoadAccounts(ctx, id)
		if err != nil {
			return err
		}
		account := accounts[id]
		previous = account.Status

		updated := account
		if err := updated.TransitionStatus(status); err != nil {
			return err
		}
		if updated.Status == account.Status {
			stored = account
			return nil
		}

		return s.guard.Commit(ctx, "persist account status", func(uow domain.UnitOfWork) error {
			swapped, err := uow.CompareAndSwap(ctx, updated, account.Version)
			if err != nil {
				return err
			}
			stored = swapped
			return nil
		})
	})
	if err != nil {
		logger.Error("account service update status failed", err, logger.Fields{"accountId": id})
		return domain.Account{}, err
	}

	if previous != stored.Status {
		severity := domain.SeverityInfo
		if stored.IsClosed() || stored.IsFrozen() {
			severity = domain.SeverityWarn
		}
		s.audit.Record(ctx, domain.AuditRecord{
			ActorID:      actorOrDefault(actorID, ""),
			Action:       domain.AuditActionAccountStatusChange,
			ResourceType: domain.AuditResourceAccount,
			ResourceID:   stored.ID,
			Severity:     severity,
			Detail:       fmt.Sprintf("Account %s status %s -> %s", stored.AccountNumber, previous, stored.Status),
		})
	}

	return stored, nil
}

func (s *AccountService) Deposit(ctx context.Context, cmd service_interfaces.MovementCommand) (domain.Transaction, error) {
	return s.move(ctx, domain.TransactionTypeDeposit, cmd)
}

func (s *AccountService) Withdraw(ctx context.Context, cmd service_interfaces.MovementCommand) (domain.Transaction, error) {
	return s.move(ctx, domain.TransactionTypeWithdrawal, cmd)
}

// move posts a single-account DEPOSIT or WITHDRAWAL through the same guard and
// unit of work as transfers.
func (s *AccountService) move(ctx context.Context, txType domain.TransactionType, cmd service_interfaces.MovementCommand) (domain.Transaction, error) {
	cmd.AccountID = strings.TrimSpace(cmd.AccountID)
	cmd.Description = strings.TrimSpace(cmd.Description)
	operation := strings.ToLower(string(txType))

	logger.Info("account service "+operation+" request", logger.Fields{
		"payload": logger.SanitizePayload(cmd),
	})

	var errs []string
	if cmd.AccountID == "" {
		errs = append(errs, "accountId is required")
	}
	errs = append(errs, s.policy.amountErrors("amount", cmd.Amount)...)
	if len(errs) > 0 {
		return domain.Transaction{}, &domain.ValidationError{Errors: errs}
	}

	var stored domain.Transaction
	var account domain.Account
	err := s.guard.Run(ctx, operation, func(ctx context.Context, attempt int) error {
		accounts, err := s.guard.LoadAccounts(ctx, cmd.AccountID)
		if err != nil {
			return err
		}
		account = accounts[cmd.AccountID]
		if err := requireActive(operation, account); err != nil {
			return err
		}

		now := s.clock.Now()
		updated := account
		switch txType {
		case domain.TransactionTypeWithdrawal:
			if err := s.checkWithdrawal(ctx, account, cmd.Amount, now); err != nil {
				return err
			}
			if err := updated.Debit(cmd.Amount); err != nil {
				return err
			}
			updated.RecordUsage(cmd.Amount, now)
		default:
			if err := updated.Credit(cmd.Amount); err != nil {
				return err
			}
		}

		tx := pendingTransaction(s.references.Next(), txType, account, cmd.Amount, cmd.Description, actorOrDefault(cmd.ActorID, account.OwnerID), now)
		if err := tx.Complete(now); err != nil {
			return err
		}

		return s.guard.Commit(ctx, "persist "+operation, func(uow domain.UnitOfWork) error {
			if _, err := uow.CompareAndSwap(ctx, updated, account.Version); err != nil {
				return err
			}
			appended, err := uow.Append(ctx, tx)
			if err != nil {
				return err
			}
			stored = appended
			return nil
		})
	})
	if err != nil {
		logger.Error("account service "+operation+" failed", err, logger.Fields{
			"accountId": cmd.AccountID,
			"kind":      domain.KindOf(err),
		})
		return domain.Transaction{}, err
	}

	logger.Info("account service "+operation+" success", logger.Fields{
		"accountId":       cmd.AccountID,
		"transactionId":   stored.ID,
		"referenceNumber": stored.ReferenceNumber,
	})

	action := domain.AuditActionDeposit
	if txType == domain.TransactionTypeWithdrawal {
		action = domain.AuditActionWithdrawal
	}
	s.audit.Record(ctx, domain.AuditRecord{
		ActorID:      actorOrDefault(cmd.ActorID, account.OwnerID),
		Action:       action,
		ResourceType: domain.AuditResourceTransaction,
		ResourceID:   stored.ID,
		Severity:     domain.SeverityInfo,
		Detail: fmt.Sprintf("%s: %s on %s, Reference: %s",
			txType, stored.Amount.StringFixed(2), account.AccountNumber, stored.ReferenceNumber),
	})

	return stored, nil
}

func (s *AccountService) checkWithdrawal(ctx context.Context, account domain.Account, amount decimal.Decimal, now time.Time) error {
	if err := s.policy.checkDebit(account, amount); err != nil {
		return err
	}
	if !account.WithinDailyLimit(amount, now) {
		return fmt.Errorf("%w: account %s has %s left of %s",
			domain.ErrDailyLimitExceeded, account.ID, account.DailyRemaining(now).StringFixed(2), account.DailyLimit.StringFixed(2))
	}
	if s.policy.MaxDailyTransactions > 0 {
		count, err := s.store.CountOutgoingSince(ctx, account.ID, now.Add(-domain.DailyWindow))
		if err != nil {
			return storeFailure("count outgoing transactions", err)
		}
		if count >= s.policy.MaxDailyTransactions {
			return fmt.Errorf("%w: account %s reached %d transactions in 24h",
				domain.ErrDailyLimitExceeded, account.ID, s.policy.MaxDailyTransactions)
		}
	}
	return nil
}

func validateCreateAccount(cmd service_interfaces.CreateAccountCommand) error {
	var errs []string

	if cmd.OwnerID == "" {
		errs = append(errs, "ownerId is required")
	}
	if len(cmd.Currency) != 3 {
		errs = append(errs, "currency must be 3 characters")
	}
	if cmd.InitialDeposit.IsNegative() {
		errs = append(errs, "initialDeposit cannot be negative")
	}
	if cmd.OverdraftLimit.IsNegative() {
		errs = append(errs, "overdraftLimit cannot be negative")
	}
	if cmd.MinimumBalance.IsNegative() {
		errs = append(errs, "minimumBalance cannot be negative")
	}
	if cmd.DailyLimit.IsNegative() {
		errs = append(errs, "dailyLimit cannot be negative")
	}
	if cmd.InterestRate.IsNegative() || cmd.InterestRate.GreaterThan(decimal.NewFromInt(1)) {
		errs = append(errs, "interestRate must be between 0 and 1")
	}
	if !cmd.InterestRate.Equal(cmd.InterestRate.Round(interestRateScale)) {
		errs = append(errs, "interestRate must have at most 6 decimal places")
	}

	if len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}

// generateAccountNumber returns 10 digits without a leading zero.
func generateAccountNumber() string {
	n, err := rand.Int(rand.Reader, accountNumberSpace)
	if err != nil {
		panic(err)
	}
	return fmt.Sprintf("%010d", n.Int64()+1_000_000_000)
}

func isTenDigitAccountNumber(accountNumber string) bool {
	if len(accountNumber) != 10 {
		return false
	}
	for _, ch := range accountNumber {
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return true
}
