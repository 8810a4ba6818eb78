package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/api-sage/ledger-core/src/internal/commons"
	"github.com/api-sage/ledger-core/src/internal/domain"
	"github.com/api-sage/ledger-core/src/internal/logger"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

const (
	AccountNumberIndex   = "account_number-index"
	OwnerCreatedIndex    = "owner_id-created_at-index"
	ReferenceNumberIndex = "reference_number-index"
	SourceCreatedIndex   = "source_account_id-created_at-index"
	TargetCreatedIndex   = "target_account_id-created_at-index"
)

// API is the subset of the DynamoDB client the ledger uses.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

type Tables struct {
	Accounts     string
	Transactions string
}

// NewClient loads the default AWS credential chain. A non-empty endpoint
// points the client at DynamoDB Local or LocalStack.
func NewClient(ctx context.Context, region string, endpoint string) (*dynamodb.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

// LedgerStore keeps accounts and transactions in two DynamoDB tables. A unit
// of work becomes one TransactWriteItems call, with account swaps guarded by
// a version condition.
type LedgerStore struct {
	client API
	tables Tables
	clock  domain.Clock
}

func NewLedgerStore(client API, tables Tables, clock domain.Clock) *LedgerStore {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &LedgerStore{client: client, tables: tables, clock: clock}
}

func (s *LedgerStore) CreateAccount(ctx context.Context, account domain.Account) (domain.Account, error) {
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	now := s.clock.Now()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now
	account.Version = 1

	item, err := attributevalue.MarshalMap(toAccountRecord(account))
	if err != nil {
		return domain.Account{}, fmt.Errorf("marshal account: %w", err)
	}
	marker, err := attributevalue.MarshalMap(uniqueMarker{ID: accountNumberKey(account.AccountNumber), OwnerID: account.ID})
	if err != nil {
		return domain.Account{}, fmt.Errorf("marshal account number marker: %w", err)
	}

	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:           aws.String(s.tables.Accounts),
				Item:                item,
				ConditionExpression: aws.String("attribute_not_exists(id)"),
			}},
			{Put: &types.Put{
				TableName:           aws.String(s.tables.Accounts),
				Item:                marker,
				ConditionExpression: aws.String("attribute_not_exists(id)"),
			}},
		},
	})
	if err != nil {
		logger.Error("dynamodb ledger create account failed", err, logger.Fields{
			"accountNumber": account.AccountNumber,
		})
		return domain.Account{}, mapWriteError("create account", err, []itemKind{itemUnique, itemUnique})
	}

	logger.Info("dynamodb ledger create account success", logger.Fields{
		"accountId":     account.ID,
		"accountNumber": account.AccountNumber,
	})
	return account, nil
}

func (s *LedgerStore) GetAccount(ctx context.Context, id string) (domain.Account, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tables.Accounts),
		Key:            idKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		logger.Error("dynamodb ledger get account failed", err, logger.Fields{"accountId": id})
		return domain.Account{}, fmt.Errorf("get account: %w", err)
	}
	if len(out.Item) == 0 {
		return domain.Account{}, commons.ErrRecordNotFound
	}

	var record accountRecord
	if err := attributevalue.UnmarshalMap(out.Item, &record); err != nil {
		return domain.Account{}, fmt.Errorf("unmarshal account: %w", err)
	}
	if record.AccountNumber == "" {
		// marker rows share the table but are not accounts
		return domain.Account{}, commons.ErrRecordNotFound
	}
	return record.toDomain()
}

// GetAccountByNumber resolves the number through the GSI and then rereads the
// base item with a consistent read.
func (s *LedgerStore) GetAccountByNumber(ctx context.Context, accountNumber string) (domain.Account, error) {
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tables.Accounts),
		IndexName:              aws.String(AccountNumberIndex),
		KeyConditionExpression: aws.String("account_number = :n"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":n": &types.AttributeValueMemberS{Value: accountNumber},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		logger.Error("dynamodb ledger get account by number failed", err, logger.Fields{"accountNumber": accountNumber})
		return domain.Account{}, fmt.Errorf("get account by number: %w", err)
	}
	if len(out.Items) == 0 {
		return domain.Account{}, commons.ErrRecordNotFound
	}

	var record accountRecord
	if err := attributevalue.UnmarshalMap(out.Items[0], &record); err != nil {
		return domain.Account{}, fmt.Errorf("unmarshal account: %w", err)
	}
	return s.GetAccount(ctx, record.ID)
}

// ListActiveAccounts pages in table scan order. afterID resumes the scan
// right after that key, which is all the interest run needs.
func (s *LedgerStore) ListActiveAccounts(ctx context.Context, afterID string, limit int) ([]domain.Account, error) {
	accounts := make([]domain.Account, 0, limit)
	var startKey map[string]types.AttributeValue
	if afterID != "" {
		startKey = idKey(afterID)
	}

	for len(accounts) < limit {
		out, err := s.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(s.tables.Accounts),
			FilterExpression:  aws.String("#status = :active"),
			ExclusiveStartKey: startKey,
			Limit:             aws.Int32(int32(limit)),
			ConsistentRead:    aws.Bool(true),
			ExpressionAttributeNames: map[string]string{
				"#status": "status",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":active": &types.AttributeValueMemberS{Value: string(domain.AccountStatusActive)},
			},
		})
		if err != nil {
			logger.Error("dynamodb ledger list active accounts failed", err, logger.Fields{"afterId": afterID})
			return nil, fmt.Errorf("scan active accounts: %w", err)
		}

		var records []accountRecord
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &records); err != nil {
			return nil, fmt.Errorf("unmarshal accounts: %w", err)
		}
		for _, record := range records {
			if len(accounts) == limit {
				break
			}
			account, err := record.toDomain()
			if err != nil {
				return nil, err
			}
			accounts = append(accounts, account)
		}

		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	return accounts, nil
}

// ListActiveAccountsByOwner walks the owner index oldest first. Marker rows
// carry no owner_id so the index never returns them.
func (s *LedgerStore) ListActiveAccountsByOwner(ctx context.Context, ownerID string) ([]domain.Account, error) {
	var (
		accounts []domain.Account
		startKey map[string]types.AttributeValue
	)
	for {
		out, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(s.tables.Accounts),
			IndexName:              aws.String(OwnerCreatedIndex),
			KeyConditionExpression: aws.String("owner_id = :o"),
			FilterExpression:       aws.String("#status = :active"),
			ExclusiveStartKey:      startKey,
			ExpressionAttributeNames: map[string]string{
				"#status": "status",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":o":      &types.AttributeValueMemberS{Value: ownerID},
				":active": &types.AttributeValueMemberS{Value: string(domain.AccountStatusActive)},
			},
			ScanIndexForward: aws.Bool(true),
		})
		if err != nil {
			logger.Error("dynamodb ledger list owner accounts failed", err, logger.Fields{"ownerId": ownerID})
			return nil, fmt.Errorf("query owner accounts: %w", err)
		}

		var records []accountRecord
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &records); err != nil {
			return nil, fmt.Errorf("unmarshal accounts: %w", err)
		}
		for _, record := range records {
			account, err := record.toDomain()
			if err != nil {
				return nil, err
			}
			accounts = append(accounts, account)
		}

		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	if accounts == nil {
		accounts = []domain.Account{}
	}
	return accounts, nil
}

func (s *LedgerStore) GetTransaction(ctx context.Context, id string) (domain.Transaction, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tables.Transactions),
		Key:            idKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		logger.Error("dynamodb ledger get transaction failed", err, logger.Fields{"transactionId": id})
		return domain.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	if len(out.Item) == 0 {
		return domain.Transaction{}, commons.ErrRecordNotFound
	}

	var record transactionRecord
	if err := attributevalue.UnmarshalMap(out.Item, &record); err != nil {
		return domain.Transaction{}, fmt.Errorf("unmarshal transaction: %w", err)
	}
	if record.ReferenceNumber == "" {
		return domain.Transaction{}, commons.ErrRecordNotFound
	}
	return record.toDomain()
}

func (s *LedgerStore) GetTransactionByReference(ctx context.Context, referenceNumber string) (domain.Transaction, error) {
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tables.Transactions),
		IndexName:              aws.String(ReferenceNumberIndex),
		KeyConditionExpression: aws.String("reference_number = :r"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":r": &types.AttributeValueMemberS{Value: referenceNumber},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		logger.Error("dynamodb ledger get transaction by reference failed", err, logger.Fields{"referenceNumber": referenceNumber})
		return domain.Transaction{}, fmt.Errorf("get transaction by reference: %w", err)
	}
	if len(out.Items) == 0 {
		return domain.Transaction{}, commons.ErrRecordNotFound
	}

	var record transactionRecord
	if err := attributevalue.UnmarshalMap(out.Items[0], &record); err != nil {
		return domain.Transaction{}, fmt.Errorf("unmarshal transaction: %w", err)
	}
	return record.toDomain()
}

// ListTransactionsByAccount merges the newest entries from the source and
// target indexes.
func (s *LedgerStore) ListTransactionsByAccount(ctx context.Context, accountID string, limit int) ([]domain.Transaction, error) {
	merged := make(map[string]domain.Transaction)
	for _, index := range []struct{ name, attribute string }{
		{SourceCreatedIndex, "source_account_id"},
		{TargetCreatedIndex, "target_account_id"},
	} {
		out, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(s.tables.Transactions),
			IndexName:              aws.String(index.name),
			KeyConditionExpression: aws.String(index.attribute + " = :a"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":a": &types.AttributeValueMemberS{Value: accountID},
			},
			ScanIndexForward: aws.Bool(false),
			Limit:            aws.Int32(int32(limit)),
		})
		if err != nil {
			logger.Error("dynamodb ledger list transactions failed", err, logger.Fields{
				"accountId": accountID,
				"index":     index.name,
			})
			return nil, fmt.Errorf("query %s: %w", index.name, err)
		}

		var records []transactionRecord
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &records); err != nil {
			return nil, fmt.Errorf("unmarshal transactions: %w", err)
		}
		for _, record := range records {
			tx, err := record.toDomain()
			if err != nil {
				return nil, err
			}
			merged[tx.ID] = tx
		}
	}

	txs := make([]domain.Transaction, 0, len(merged))
	for _, tx := range merged {
		txs = append(txs, tx)
	}
	sort.Slice(txs, func(i, j int) bool {
		if txs[i].CreatedAt.Equal(txs[j].CreatedAt) {
			return txs[i].ID > txs[j].ID
		}
		return txs[i].CreatedAt.After(txs[j].CreatedAt)
	})
	if limit > 0 && len(txs) > limit {
		txs = txs[:limit]
	}
	return txs, nil
}

func (s *LedgerStore) CountOutgoingSince(ctx context.Context, accountID string, since time.Time) (int, error) {
	var (
		total    int
		startKey map[string]types.AttributeValue
	)
	for {
		out, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(s.tables.Transactions),
			IndexName:              aws.String(SourceCreatedIndex),
			KeyConditionExpression: aws.String("source_account_id = :a AND created_at >= :since"),
			FilterExpression:       aws.String("#status = :completed AND #type IN (:transfer, :withdrawal)"),
			ExpressionAttributeNames: map[string]string{
				"#status": "status",
				"#type":   "type",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":a":          &types.AttributeValueMemberS{Value: accountID},
				":since":      &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", since.UnixNano())},
				":completed":  &types.AttributeValueMemberS{Value: string(domain.TransactionStatusCompleted)},
				":transfer":   &types.AttributeValueMemberS{Value: string(domain.TransactionTypeTransfer)},
				":withdrawal": &types.AttributeValueMemberS{Value: string(domain.TransactionTypeWithdrawal)},
			},
			Select:            types.SelectCount,
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			logger.Error("dynamodb ledger count outgoing failed", err, logger.Fields{"accountId": accountID})
			return 0, fmt.Errorf("count outgoing transactions: %w", err)
		}

		total += int(out.Count)
		if len(out.LastEvaluatedKey) == 0 {
			return total, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

// InUnitOfWork stages writes while fn runs and sends them as a single
// TransactWriteItems request once fn returns nil.
func (s *LedgerStore) InUnitOfWork(ctx context.Context, fn func(uow domain.UnitOfWork) error) error {
	uow := &unitOfWork{store: s, staged: make(map[string]int)}
	if err := fn(uow); err != nil {
		return err
	}
	if len(uow.items) == 0 {
		return nil
	}

	_, err := s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: uow.items,
	})
	if err != nil {
		logger.Warn("dynamodb ledger unit of work rejected", logger.Fields{
			"items": len(uow.items),
			"error": err.Error(),
		})
		return mapWriteError("commit unit of work", err, uow.kinds)
	}
	return nil
}

type itemKind int

const (
	itemSwap itemKind = iota
	itemUnique
)

type unitOfWork struct {
	store  *LedgerStore
	items  []types.TransactWriteItem
	kinds  []itemKind
	staged map[string]int
}

func (u *unitOfWork) CompareAndSwap(_ context.Context, account domain.Account, expectedVersion int64) (domain.Account, error) {
	account.Version = expectedVersion + 1
	account.UpdatedAt = u.store.clock.Now()

	item, err := attributevalue.MarshalMap(toAccountRecord(account))
	if err != nil {
		return domain.Account{}, fmt.Errorf("marshal account: %w", err)
	}

	put := types.TransactWriteItem{Put: &types.Put{
		TableName:           aws.String(u.store.tables.Accounts),
		Item:                item,
		ConditionExpression: aws.String("version = :expected"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":expected": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", expectedVersion)},
		},
	}}

	// a transaction may touch each item once, so a second swap of the same
	// account replaces the first and keeps its original condition
	if idx, ok := u.staged[account.ID]; ok {
		put.Put.ExpressionAttributeValues = u.items[idx].Put.ExpressionAttributeValues
		u.items[idx] = put
		return account, nil
	}

	u.staged[account.ID] = len(u.items)
	u.items = append(u.items, put)
	u.kinds = append(u.kinds, itemSwap)
	return account, nil
}

func (u *unitOfWork) Append(_ context.Context, transaction domain.Transaction) (domain.Transaction, error) {
	if transaction.ID == "" {
		transaction.ID = uuid.NewString()
	}
	now := u.store.clock.Now()
	if transaction.CreatedAt.IsZero() {
		transaction.CreatedAt = now
	}
	transaction.UpdatedAt = now
	transaction.Version = 1

	item, err := attributevalue.MarshalMap(toTransactionRecord(transaction))
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("marshal transaction: %w", err)
	}
	marker, err := attributevalue.MarshalMap(uniqueMarker{ID: referenceKey(transaction.ReferenceNumber), OwnerID: transaction.ID})
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("marshal reference marker: %w", err)
	}

	for _, put := range []map[string]types.AttributeValue{item, marker} {
		u.items = append(u.items, types.TransactWriteItem{Put: &types.Put{
			TableName:           aws.String(u.store.tables.Transactions),
			Item:                put,
			ConditionExpression: aws.String("attribute_not_exists(id)"),
		}})
		u.kinds = append(u.kinds, itemUnique)
	}
	return transaction, nil
}

// mapWriteError reads the per-item cancellation reasons. A failed version
// condition is a lost race. A failed uniqueness condition is a duplicate.
func mapWriteError(operation string, err error, kinds []itemKind) error {
	var canceled *types.TransactionCanceledException
	if errors.As(err, &canceled) {
		for i, reason := range canceled.CancellationReasons {
			code := aws.ToString(reason.Code)
			switch code {
			case "ConditionalCheckFailed":
				if i < len(kinds) && kinds[i] == itemUnique {
					return fmt.Errorf("%w: %s", commons.ErrDuplicateReference, operation)
				}
				return fmt.Errorf("%w: %s", commons.ErrVersionConflict, operation)
			case "TransactionConflict":
				return fmt.Errorf("%w: %s", commons.ErrVersionConflict, operation)
			}
		}
	}

	var conflict *types.TransactionConflictException
	if errors.As(err, &conflict) {
		return fmt.Errorf("%w: %s", commons.ErrVersionConflict, operation)
	}
	var conditional *types.ConditionalCheckFailedException
	if errors.As(err, &conditional) {
		return fmt.Errorf("%w: %s", commons.ErrVersionConflict, operation)
	}
	return fmt.Errorf("%s: %w", operation, err)
}

func idKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: id},
	}
}
