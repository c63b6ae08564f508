package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoDBTableAPI is the subset of the DynamoDB client used to provision the table.
type DynamoDBTableAPI interface {
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

// tableReadyTimeout bounds the wait for a newly created table to become ACTIVE.
const tableReadyTimeout = 2 * time.Minute

// EnsureDynamoDBTable creates the transactions table (on-demand billing,
// hash key transaction_id) when it does not exist. It reports whether it created it.
func EnsureDynamoDBTable(ctx context.Context, client DynamoDBTableAPI, tableName string) (bool, error) {
	describe := &dynamodb.DescribeTableInput{TableName: aws.String(tableName)}

	_, err := client.DescribeTable(ctx, describe)
	if err == nil {
		return false, nil
	}
	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return false, fmt.Errorf("describe table %s: %w", tableName, err)
	}

	_, err = client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(tableName),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("transaction_id"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("transaction_id"), KeyType: types.KeyTypeHash},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		var inUse *types.ResourceInUseException
		if errors.As(err, &inUse) {
			// Created concurrently by another process
			return false, nil
		}
		return false, fmt.Errorf("create table %s: %w", tableName, err)
	}

	waiter := dynamodb.NewTableExistsWaiter(client)
	if err := waiter.Wait(ctx, describe, tableReadyTimeout); err != nil {
		return true, fmt.Errorf("wait for table %s: %w", tableName, err)
	}
	return true, nil
}
