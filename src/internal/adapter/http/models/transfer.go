package models

import (
	"errors"
	"strings"

	"github.com/api-sage/ledger-core/src/internal/domain"
	"github.com/api-sage/ledger-core/src/internal/usecase/service_interfaces"
)

const maxDescriptionLength = 140

type TransferRequest struct {
	SourceAccountID string `json:"sourceAccountId"`
	TargetAccountID string `json:"targetAccountId"`
	Amount          string `json:"amount"`
	Description     string `json:"description,omitempty"`
}

func (r TransferRequest) Validate() error {
	var errs []string

	source := strings.TrimSpace(r.SourceAccountID)
	target := strings.TrimSpace(r.TargetAccountID)
	if source == "" {
		errs = append(errs, "sourceAccountId is required")
	}
	if target == "" {
		errs = append(errs, "targetAccountId is required")
	}
	if source != "" && source == target {
		errs = append(errs, "sourceAccountId and targetAccountId must differ")
	}
	if msg := requiredAmountError("amount", r.Amount); msg != "" {
		errs = append(errs, msg)
	}
	if len(strings.TrimSpace(r.Description)) > maxDescriptionLength {
		errs = append(errs, "description must be at most 140 characters")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func (r TransferRequest) ToCommand(actorID string) service_interfaces.TransferCommand {
	return service_interfaces.TransferCommand{
		SourceAccountID: strings.TrimSpace(r.SourceAccountID),
		TargetAccountID: strings.TrimSpace(r.TargetAccountID),
		Amount:          parseOptional(r.Amount),
		Description:     strings.TrimSpace(r.Description),
		ActorID:         actorID,
	}
}

type TransactionResponse struct {
	ID              string `json:"id"`
	ReferenceNumber string `json:"referenceNumber"`
	SourceAccountID string `json:"sourceAccountId"`
	TargetAccountID string `json:"targetAccountId,omitempty"`
	Amount          string `json:"amount"`
	FeeAmount       string `json:"feeAmount"`
	Currency        string `json:"currency"`
	Type            string `json:"type"`
	Status          string `json:"status"`
	Description     string `json:"description,omitempty"`
	FailureReason   string `json:"failureReason,omitempty"`
	ActorID         string `json:"actorId"`
	CreatedAt       string `json:"createdAt"`
	ProcessedAt     string `json:"processedAt,omitempty"`
}

func NewTransactionResponse(tx domain.Transaction) TransactionResponse {
	response := TransactionResponse{
		ID:              tx.ID,
		ReferenceNumber: tx.ReferenceNumber,
		SourceAccountID: tx.SourceAccountID,
		Amount:          tx.Amount.StringFixed(2),
		FeeAmount:       tx.FeeAmount.StringFixed(2),
		Currency:        tx.Currency,
		Type:            string(tx.Type),
		Status:          string(tx.Status),
		Description:     tx.Description,
		ActorID:         tx.ActorID,
		CreatedAt:       formatTime(tx.CreatedAt),
	}
	if tx.TargetAccountID != nil {
		response.TargetAccountID = *tx.TargetAccountID
	}
	if tx.FailureReason != nil {
		response.FailureReason = *tx.FailureReason
	}
	if tx.ProcessedAt != nil {
		response.ProcessedAt = formatTime(*tx.ProcessedAt)
	}
	return response
}

func NewTransactionResponses(txs []domain.Transaction) []TransactionResponse {
	out := make([]TransactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, NewTransactionResponse(tx))
	}
	return out
}
