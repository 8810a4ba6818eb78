package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

const defaultConnectionString = "Host=localhost;Port=5432;Database=ledger_db;Username=postgres;Password=postgres;Timeout=30;CommandTimeout=30"
const defaultHTTPAddr = ":8080"
const defaultChannelID = "LedgerApp"
const defaultChannelKey = "LedgerKey001"

const (
	StoreBackendPostgres = "postgres"
	StoreBackendDynamoDB = "dynamodb"
	StoreBackendMemory   = "memory"

	AuditSinkPostgres = "postgres"
	AuditSinkImmuDB   = "immudb"
)

type Config struct {
	HTTPAddr       string
	DatabaseDSN    string
	MigrationsDir  string
	StoreBackend   string
	AuditSink      string
	ChannelID      string
	ChannelKeyHash string
	LogLevel       string

	Transfer TransferConfig
	Interest InterestConfig
	DynamoDB DynamoDBConfig
	ImmuDB   ImmuDBConfig
}

type TransferConfig struct {
	MaxAttempts           int
	RetryBackoff          time.Duration
	AttemptTimeout        time.Duration
	MinAmount             decimal.Decimal
	MaxAmount             decimal.Decimal
	MaxDailyTransactions  int
	EnforceMinimumBalance bool
	FeePercent            decimal.Decimal
	FeeAccountID          string
	DefaultDailyLimit     decimal.Decimal
}

type InterestConfig struct {
	BatchSize int
	Workers   int
}

type DynamoDBConfig struct {
	Region            string
	Endpoint          string
	AccountsTable     string
	TransactionsTable string
}

type ImmuDBConfig struct {
	Address  string
	Port     int
	Username string
	Password string
	Database string
}

func Load() (Config, error) {
	conn := envOrDefault("DATABASE_DSN", defaultConnectionString)

	maxAttempts, err := envInt("TRANSFER_MAX_ATTEMPTS", 3)
	if err != nil {
		return Config{}, err
	}
	retryBackoff, err := envDuration("TRANSFER_RETRY_BACKOFF", 25*time.Millisecond)
	if err != nil {
		return Config{}, err
	}
	attemptTimeout, err := envDuration("TRANSFER_ATTEMPT_TIMEOUT", 5*time.Second)
	if err != nil {
		return Config{}, err
	}
	minAmount, err := envDecimal("TRANSFER_MIN_AMOUNT", "0.01")
	if err != nil {
		return Config{}, err
	}
	maxAmount, err := envDecimal("TRANSFER_MAX_AMOUNT", "1000000.00")
	if err != nil {
		return Config{}, err
	}
	maxDaily, err := envInt("MAX_DAILY_TRANSACTIONS", 100)
	if err != nil {
		return Config{}, err
	}
	enforceMinimum, err := envBool("ENFORCE_MINIMUM_BALANCE", false)
	if err != nil {
		return Config{}, err
	}
	feePercent, err := envDecimal("TRANSFER_FEE_PERCENT", "0")
	if err != nil {
		return Config{}, err
	}
	defaultDailyLimit, err := envDecimal("DEFAULT_DAILY_LIMIT", "50000.00")
	if err != nil {
		return Config{}, err
	}
	batchSize, err := envInt("INTEREST_BATCH_SIZE", 100)
	if err != nil {
		return Config{}, err
	}
	workers, err := envInt("INTEREST_WORKERS", 4)
	if err != nil {
		return Config{}, err
	}
	immuPort, err := envInt("IMMUDB_PORT", 3322)
	if err != nil {
		return Config{}, err
	}

	if maxAttempts < 1 {
		return Config{}, fmt.Errorf("TRANSFER_MAX_ATTEMPTS must be at least 1")
	}
	if !minAmount.IsPositive() || maxAmount.LessThan(minAmount) {
		return Config{}, fmt.Errorf("transfer amount bounds are invalid")
	}
	if feePercent.IsNegative() {
		return Config{}, fmt.Errorf("TRANSFER_FEE_PERCENT cannot be negative")
	}
	if !defaultDailyLimit.IsPositive() {
		return Config{}, fmt.Errorf("DEFAULT_DAILY_LIMIT must be greater than zero")
	}

	storeBackend := strings.ToLower(envOrDefault("LEDGER_STORE", StoreBackendPostgres))
	switch storeBackend {
	case StoreBackendPostgres, StoreBackendDynamoDB, StoreBackendMemory:
	default:
		return Config{}, fmt.Errorf("unsupported LEDGER_STORE %q", storeBackend)
	}

	auditSink := strings.ToLower(envOrDefault("AUDIT_SINK", AuditSinkPostgres))
	switch auditSink {
	case AuditSinkPostgres, AuditSinkImmuDB:
	default:
		return Config{}, fmt.Errorf("unsupported AUDIT_SINK %q", auditSink)
	}

	channelKeyHash, err := resolveChannelKeyHash()
	if err != nil {
		return Config{}, err
	}

	return Config{
		HTTPAddr:       envOrDefault("HTTP_ADDR", defaultHTTPAddr),
		DatabaseDSN:    normalizeConnectionString(conn),
		MigrationsDir:  envOrDefault("MIGRATIONS_DIR", filepath.Join("src", "migrations")),
		StoreBackend:   storeBackend,
		AuditSink:      auditSink,
		ChannelID:      envOrDefault("CHANNEL_ID", defaultChannelID),
		ChannelKeyHash: channelKeyHash,
		LogLevel:       envOrDefault("LOG_LEVEL", "info"),
		Transfer: TransferConfig{
			MaxAttempts:           maxAttempts,
			RetryBackoff:          retryBackoff,
			AttemptTimeout:        attemptTimeout,
			MinAmount:             minAmount,
			MaxAmount:             maxAmount,
			MaxDailyTransactions:  maxDaily,
			EnforceMinimumBalance: enforceMinimum,
			FeePercent:            feePercent,
			FeeAccountID:          envOrDefault("FEE_ACCOUNT_ID", ""),
			DefaultDailyLimit:     defaultDailyLimit,
		},
		Interest: InterestConfig{
			BatchSize: batchSize,
			Workers:   workers,
		},
		DynamoDB: DynamoDBConfig{
			Region:            envOrDefault("DYNAMODB_REGION", "us-east-1"),
			Endpoint:          envOrDefault("DYNAMODB_ENDPOINT", ""),
			AccountsTable:     envOrDefault("DYNAMODB_ACCOUNTS_TABLE", "ledger_accounts"),
			TransactionsTable: envOrDefault("DYNAMODB_TRANSACTIONS_TABLE", "ledger_transactions"),
		},
		ImmuDB: ImmuDBConfig{
			Address:  envOrDefault("IMMUDB_ADDRESS", "127.0.0.1"),
			Port:     immuPort,
			Username: envOrDefault("IMMUDB_USERNAME", "immudb"),
			Password: envOrDefault("IMMUDB_PASSWORD", "immudb"),
			Database: envOrDefault("IMMUDB_DATABASE", "defaultdb"),
		},
	}, nil
}

// resolveChannelKeyHash prefers a precomputed CHANNEL_KEY_HASH and otherwise
// hashes the plain CHANNEL_KEY so only the hash is kept in memory.
func resolveChannelKeyHash() (string, error) {
	if hash := envOrDefault("CHANNEL_KEY_HASH", ""); hash != "" {
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return "", fmt.Errorf("CHANNEL_KEY_HASH is not a bcrypt hash: %w", err)
		}
		return hash, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(envOrDefault("CHANNEL_KEY", defaultChannelKey)), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash CHANNEL_KEY: %w", err)
	}
	return string(hash), nil
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envInt(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return value, nil
}

func envBool(key string, fallback bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %w", key, err)
	}
	return value, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return value, nil
}

func envDecimal(key string, fallback string) (decimal.Decimal, error) {
	raw := envOrDefault(key, fallback)
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s must be numeric: %w", key, err)
	}
	return value, nil
}

func normalizeConnectionString(raw string) string {
	parts := strings.Split(raw, ";")
	out := make([]string, 0, len(parts))
	hasSSLMode := false

	for _, part := range parts {
		p := strings.TrimSpace(part)
		if p == "" {
			continue
		}

		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}

		key := strings.ToLower(strings.TrimSpace(kv[0]))
		val := strings.TrimSpace(kv[1])

		switch key {
		case "host":
			out = append(out, "host="+val)
		case "port":
			out = append(out, "port="+val)
		case "database":
			out = append(out, "dbname="+val)
		case "username":
			out = append(out, "user="+val)
		case "password":
			out = append(out, "password="+val)
		case "timeout", "connect timeout":
			out = append(out, "connect_timeout="+val)
		case "commandtimeout", "command timeout":
			out = append(out, "statement_timeout="+val+"s")
		case "sslmode":
			hasSSLMode = true
			out = append(out, "sslmode="+val)
		default:
			out = append(out, key+"="+val)
		}
	}

	if len(out) == 0 {
		return raw
	}

	if !hasSSLMode {
		out = append(out, "sslmode=disable")
	}

	return strings.Join(out, " ")
}
