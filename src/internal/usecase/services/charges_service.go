package services

import (
	"github.com/shopspring/decimal"
)

type ChargesService struct {
	feePercent decimal.Decimal
}

func NewChargesService(feePercent decimal.Decimal) *ChargesService {
	if feePercent.IsNegative() {
		feePercent = decimal.Zero
	}
	return &ChargesService{feePercent: feePercent}
}

// TransferFee is feePercent of amount, rounded half-up to cents.
func (s *ChargesService) TransferFee(amount decimal.Decimal) decimal.Decimal {
	if !amount.IsPositive() || !s.feePercent.IsPositive() {
		return decimal.Zero
	}

	percent := s.feePercent.Div(decimal.NewFromInt(100))
	return amount.Mul(percent).Round(2)
}
