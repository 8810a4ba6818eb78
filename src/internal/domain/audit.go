package domain

import "time"

type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarn     Severity = "WARN"
	SeverityError    Severity = "ERROR"
	SeverityCritical Severity = "CRITICAL"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityWarn, SeverityError, SeverityCritical:
		return true
	default:
		return false
	}
}

const (
	AuditActionTransferSuccess     = "TRANSFER_SUCCESS"
	AuditActionTransferFailed      = "TRANSFER_FAILED"
	AuditActionDeposit             = "DEPOSIT"
	AuditActionWithdrawal          = "WITHDRAWAL"
	AuditActionAccountCreated      = "ACCOUNT_CREATED"
	AuditActionAccountStatusChange = "ACCOUNT_STATUS_CHANGED"
	AuditActionInterestApplied     = "INTEREST_APPLIED"

	AuditResourceTransaction = "TRANSACTION"
	AuditResourceAccount     = "ACCOUNT"
)

// MaxAuditDetailLength is in bytes.
const MaxAuditDetailLength = 500

// AuditRecord is append-only.
type AuditRecord struct {
	ID           string
	ActorID      string
	Action       string
	ResourceType string
	ResourceID   string
	Severity     Severity
	Detail       string
	RecordedAt   time.Time
}
