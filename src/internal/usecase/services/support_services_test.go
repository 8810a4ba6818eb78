package services_test

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/api-sage/ledger-core/src/internal/domain"
	"github.com/api-sage/ledger-core/src/internal/usecase/services"
	"github.com/api-sage/ledger-core/src/internal/usecase/service_interfaces"
)

var referencePattern = regexp.MustCompile(`^[A-Z0-9]{20}$`)

func TestReferenceGenerator_UniqueUnderConcurrency(t *testing.T) {
	generator := services.NewReferenceGenerator(&manualClock{now: t0})

	const workers, perWorker = 8, 2000
	refs := make(chan string, workers*perWorker)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				refs <- generator.Next()
			}
		}()
	}
	wg.Wait()
	close(refs)

	seen := make(map[string]struct{}, workers*perWorker)
	for ref := range refs {
		if !referencePattern.MatchString(ref) {
			t.Fatalf("unexpected reference format %q", ref)
		}
		if _, dup := seen[ref]; dup {
			t.Fatalf("duplicate reference %q", ref)
		}
		seen[ref] = struct{}{}
	}
	if !strings.HasPrefix(generator.Next(), "260401100000") {
		t.Fatal("expected reference to start with the clock timestamp")
	}
}

func TestChargesService_TransferFee(t *testing.T) {
	charges := services.NewChargesService(dec("1.5"))

	cases := map[string]string{
		"100.00": "1.50",
		"0.33":   "0.00",
		"0.34":   "0.01",
		"0":      "0",
	}
	for amount, want := range cases {
		if got := charges.TransferFee(dec(amount)); !got.Equal(dec(want)) {
			t.Fatalf("amount %s: expected fee %s, got %s", amount, want, got)
		}
	}

	if !services.NewChargesService(dec("-2")).TransferFee(dec("100")).IsZero() {
		t.Fatal("expected negative percent to be ignored")
	}
}

func TestAuditService_TruncatesAndSwallowsErrors(t *testing.T) {
	var got domain.AuditRecord
	audit := services.NewAuditService(auditSinkStub{
		recordFn: func(ctx context.Context, record domain.AuditRecord) error {
			got = record
			return errors.New("sink down")
		},
	}, nil, &manualClock{now: t0})

	audit.Record(context.Background(), domain.AuditRecord{
		Action: domain.AuditActionTransferSuccess,
		Detail: strings.Repeat("x", 600),
	})

	if len(got.Detail) != domain.MaxAuditDetailLength {
		t.Fatalf("expected detail truncated to %d, got %d", domain.MaxAuditDetailLength, len(got.Detail))
	}
	if got.ID == "" || !got.RecordedAt.Equal(t0) || got.Severity != domain.SeverityInfo {
		t.Fatalf("expected defaults to be filled, got %+v", got)
	}
}

func TestAuditService_TruncatesMultiByteDetailOnRuneBoundary(t *testing.T) {
	var got domain.AuditRecord
	audit := services.NewAuditService(auditSinkStub{
		recordFn: func(ctx context.Context, record domain.AuditRecord) error {
			got = record
			return nil
		},
	}, nil, &manualClock{now: t0})

	// 200 three-byte runes: 600 bytes, 200 characters.
	audit.Record(context.Background(), domain.AuditRecord{
		Action: domain.AuditActionTransferFailed,
		Detail: strings.Repeat("€", 200),
	})

	if len(got.Detail) != 498 {
		t.Fatalf("expected detail cut to 498 bytes, got %d", len(got.Detail))
	}
	if !utf8.ValidString(got.Detail) {
		t.Fatalf("expected valid UTF-8 after truncation, got %q", got.Detail)
	}
}

func TestAuditService_Queries(t *testing.T) {
	l := newLedger(t)
	l.audit.Record(context.Background(), domain.AuditRecord{Action: "A", ResourceType: "ACCOUNT", ResourceID: "acc-1", Severity: domain.SeverityInfo})
	l.audit.Record(context.Background(), domain.AuditRecord{Action: "B", ResourceType: "ACCOUNT", ResourceID: "acc-2", Severity: domain.SeverityCritical})

	recent, err := l.audit.Recent(context.Background(), 0)
	if err != nil || len(recent) != 2 || recent[0].Action != "B" {
		t.Fatalf("expected newest first, got %+v %v", recent, err)
	}

	critical, err := l.audit.BySeverity(context.Background(), "critical", 10)
	if err != nil || len(critical) != 1 || critical[0].Action != "B" {
		t.Fatalf("expected one critical record, got %+v %v", critical, err)
	}

	if _, err := l.audit.BySeverity(context.Background(), "loud", 10); !errors.Is(err, domain.ErrInvalidParameters) {
		t.Fatalf("expected InvalidParameters, got %v", err)
	}

	byResource, err := l.audit.ByResource(context.Background(), "account", "acc-1", 10)
	if err != nil || len(byResource) != 1 || byResource[0].Action != "A" {
		t.Fatalf("expected one record for acc-1, got %+v %v", byResource, err)
	}
}

func TestTransactionService_ListAccountTransactions(t *testing.T) {
	l := newLedger(t)
	l.seed(t, accountSpec{id: "acc-a", balance: "100.00"})
	l.seed(t, accountSpec{id: "acc-b"})

	for i := 0; i < 3; i++ {
		if _, err := l.transfers.Transfer(context.Background(), transferCmd("acc-a", "acc-b", "1.00")); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	}

	txs, err := l.transactions.ListAccountTransactions(context.Background(), "acc-b", 2)
	if err != nil || len(txs) != 2 {
		t.Fatalf("expected 2 entries for target account, got %d %v", len(txs), err)
	}

	byRef, err := l.transactions.GetTransactionByReference(context.Background(), strings.ToLower(txs[0].ReferenceNumber))
	if err != nil || byRef.ID != txs[0].ID {
		t.Fatalf("expected lookup by reference, got %+v %v", byRef, err)
	}

	if _, err := l.transactions.ListAccountTransactions(context.Background(), "acc-missing", 10); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("expected AccountNotFound, got %v", err)
	}
	if _, err := l.transactions.GetTransaction(context.Background(), "tx-missing"); !errors.Is(err, domain.ErrTransactionNotFound) {
		t.Fatalf("expected TransactionNotFound, got %v", err)
	}
}

var _ service_interfaces.TransferService = (*services.TransferService)(nil)
var _ service_interfaces.AccountService = (*services.AccountService)(nil)
var _ service_interfaces.TransactionService = (*services.TransactionService)(nil)
var _ service_interfaces.AuditService = (*services.AuditService)(nil)
var _ service_interfaces.InterestService = (*services.InterestService)(nil)
var _ service_interfaces.ChargesService = (*services.ChargesService)(nil)
var _ domain.ReferenceGenerator = (*services.ReferenceGenerator)(nil)
