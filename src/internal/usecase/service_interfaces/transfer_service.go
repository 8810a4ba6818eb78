package service_interfaces

import (
	"context"

	"github.com/api-sage/ledger-core/src/internal/domain"
)

type TransferService interface {
	Transfer(ctx context.Context, cmd TransferCommand) (domain.Transaction, error)
}
