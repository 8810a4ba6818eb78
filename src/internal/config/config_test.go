package config

import (
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.Transfer.MaxAttempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", cfg.Transfer.MaxAttempts)
	}
	if cfg.Transfer.MinAmount.String() != "0.01" {
		t.Fatalf("expected min amount 0.01, got %s", cfg.Transfer.MinAmount)
	}
	if cfg.Transfer.MaxAmount.StringFixed(2) != "1000000.00" {
		t.Fatalf("expected max amount 1000000.00, got %s", cfg.Transfer.MaxAmount)
	}
	if cfg.Transfer.MaxDailyTransactions != 100 {
		t.Fatalf("expected daily ceiling 100, got %d", cfg.Transfer.MaxDailyTransactions)
	}
	if cfg.Transfer.EnforceMinimumBalance {
		t.Fatal("expected minimum balance to be advisory by default")
	}
	if cfg.Transfer.DefaultDailyLimit.StringFixed(2) != "50000.00" {
		t.Fatalf("expected default daily limit 50000.00, got %s", cfg.Transfer.DefaultDailyLimit)
	}
	if cfg.StoreBackend != StoreBackendPostgres {
		t.Fatalf("expected postgres store, got %s", cfg.StoreBackend)
	}
	if !strings.Contains(cfg.DatabaseDSN, "sslmode=disable") {
		t.Fatalf("expected normalized dsn, got %s", cfg.DatabaseDSN)
	}
}

func TestLoad_ReadsOverrides(t *testing.T) {
	t.Setenv("TRANSFER_MAX_ATTEMPTS", "5")
	t.Setenv("TRANSFER_RETRY_BACKOFF", "100ms")
	t.Setenv("ENFORCE_MINIMUM_BALANCE", "true")
	t.Setenv("LEDGER_STORE", " DynamoDB ")
	t.Setenv("AUDIT_SINK", "immudb")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Transfer.MaxAttempts != 5 {
		t.Fatalf("expected 5 attempts, got %d", cfg.Transfer.MaxAttempts)
	}
	if cfg.Transfer.RetryBackoff != 100*time.Millisecond {
		t.Fatalf("expected 100ms backoff, got %s", cfg.Transfer.RetryBackoff)
	}
	if !cfg.Transfer.EnforceMinimumBalance {
		t.Fatal("expected minimum balance enforcement")
	}
	if cfg.StoreBackend != StoreBackendDynamoDB {
		t.Fatalf("expected dynamodb store, got %s", cfg.StoreBackend)
	}
	if cfg.AuditSink != AuditSinkImmuDB {
		t.Fatalf("expected immudb sink, got %s", cfg.AuditSink)
	}
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"TRANSFER_MAX_ATTEMPTS":  "zero",
		"TRANSFER_RETRY_BACKOFF": "soon",
		"TRANSFER_FEE_PERCENT":   "-1",
		"LEDGER_STORE":           "mongo",
		"DEFAULT_DAILY_LIMIT":    "0",
	}

	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%s", key, value)
			}
		})
	}
}

func TestNormalizeConnectionString(t *testing.T) {
	got := normalizeConnectionString("Host=db;Port=5432;Database=ledger;Username=app;Password=pw;CommandTimeout=30")
	want := "host=db port=5432 dbname=ledger user=app password=pw statement_timeout=30s sslmode=disable"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestLoad_ChannelKeyHash(t *testing.T) {
	t.Setenv("CHANNEL_KEY", "Secret-42")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cfg.ChannelKeyHash), []byte("Secret-42")); err != nil {
		t.Fatalf("expected hash of CHANNEL_KEY, got %v", err)
	}

	t.Setenv("CHANNEL_KEY_HASH", "not-a-hash")
	if _, err := Load(); err == nil {
		t.Fatal("expected malformed CHANNEL_KEY_HASH to be rejected")
	}
}
