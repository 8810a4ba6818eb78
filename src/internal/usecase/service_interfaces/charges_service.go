package service_interfaces

import "github.com/shopspring/decimal"

type ChargesService interface {
	TransferFee(amount decimal.Decimal) decimal.Decimal
}
