package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/CedrosPay/txupdate/internal/config"
	"github.com/CedrosPay/txupdate/internal/transaction"
)

// DynamoDBAPI is the subset of the DynamoDB client used by DynamoDBStore.
// *dynamodb.Client satisfies it; tests substitute a fake.
type DynamoDBAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// DynamoDBStore persists transaction records in a DynamoDB table whose
// partition key is the string attribute transaction_id.
type DynamoDBStore struct {
	client    DynamoDBAPI
	tableName string
}

// NewDynamoDBStore builds a client with NewDynamoDBClient and wraps it.
func NewDynamoDBStore(ctx context.Context, cfg config.DynamoDBConfig, tableName string) (*DynamoDBStore, error) {
	client, err := NewDynamoDBClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewDynamoDBStoreWithClient(client, tableName), nil
}

// NewDynamoDBClient builds a client from the default AWS credential chain.
// Region, endpoint and static credentials override the chain when set.
func NewDynamoDBClient(ctx context.Context, cfg config.DynamoDBConfig) (*dynamodb.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

// NewDynamoDBStoreWithClient wraps an existing client.
func NewDynamoDBStoreWithClient(client DynamoDBAPI, tableName string) *DynamoDBStore {
	if tableName == "" {
		tableName = config.DefaultTableName
	}
	return &DynamoDBStore{client: client, tableName: tableName}
}

// TableName returns the target table.
func (s *DynamoDBStore) TableName() string {
	return s.tableName
}

// CreateTransaction issues a single PutItem conditioned on the key being absent.
func (s *DynamoDBStore) CreateTransaction(ctx context.Context, rec transaction.Record) error {
	if err := validateRecord(rec); err != nil {
		return err
	}

	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal transaction %s: %w", rec.TransactionID, err)
	}

	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(s.tableName),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#pk)"),
		ExpressionAttributeNames: map[string]string{"#pk": "transaction_id"},
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return ErrDuplicate
		}
		return fmt.Errorf("dynamodb put item %s: %w", rec.TransactionID, err)
	}
	return nil
}

// GetTransaction performs a strongly consistent read by key.
func (s *DynamoDBStore) GetTransaction(ctx context.Context, transactionID string) (transaction.Record, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"transaction_id": &types.AttributeValueMemberS{Value: transactionID},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return transaction.Record{}, fmt.Errorf("dynamodb get item %s: %w", transactionID, err)
	}
	if len(out.Item) == 0 {
		return transaction.Record{}, ErrNotFound
	}

	var rec transaction.Record
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return transaction.Record{}, fmt.Errorf("unmarshal transaction %s: %w", transactionID, err)
	}
	return rec, nil
}

// Close is a no-op; the AWS client holds no resources that need releasing.
func (s *DynamoDBStore) Close() error {
	return nil
}
