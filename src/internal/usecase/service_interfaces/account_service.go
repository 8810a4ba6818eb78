package service_interfaces

import (
	"context"

	"github.com/api-sage/ledger-core/src/internal/domain"
)

type AccountService interface {
	CreateAccount(ctx context.Context, cmd CreateAccountCommand) (domain.Account, error)
	GetAccount(ctx context.Context, id string) (domain.Account, error)
	GetAccountByNumber(ctx context.Context, accountNumber string) (domain.Account, error)
	ListActiveAccountsByOwner(ctx context.Context, ownerID string) ([]domain.Account, error)
	UpdateStatus(ctx context.Context, id string, status domain.AccountStatus, actorID string) (domain.Account, error)
	Deposit(ctx context.Context, cmd MovementCommand) (domain.Transaction, error)
	Withdraw(ctx context.Context, cmd MovementCommand) (domain.Transaction, error)
}
