package state

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/openjobspec/ojs-retry/internal/core"
)

// DynamoDBStore implements Store using AWS DynamoDB.
// Single-table design with PK/SK pattern:
//   - Attempt records: PK="ATTEMPT#<jobID>", SK="ATTEMPT"
//
// GSI1: GSI1PK (CATEGORY#<name>) + GSI1SK (<updated_at>) for per-category
// reporting outside this service.
type DynamoDBStore struct {
	client    *dynamodb.Client
	tableName string
}

// NewDynamoDBStore creates a new DynamoDB store.
func NewDynamoDBStore(client *dynamodb.Client, tableName string) *DynamoDBStore {
	return &DynamoDBStore{
		client:    client,
		tableName: tableName,
	}
}

// EnsureTable creates the table if it doesn't exist.
func (s *DynamoDBStore) EnsureTable(ctx context.Context) error {
	// Check if table exists
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.tableName),
	})
	if err == nil {
		return nil
	}

	_, err = s.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(s.tableName),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("PK"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("SK"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("GSI1PK"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("GSI1SK"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("PK"), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String("SK"), KeyType: types.KeyTypeRange},
		},
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
			{
				IndexName: aws.String("GSI1"),
				KeySchema: []types.KeySchemaElement{
					{AttributeName: aws.String("GSI1PK"), KeyType: types.KeyTypeHash},
					{AttributeName: aws.String("GSI1SK"), KeyType: types.KeyTypeRange},
				},
				Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
			},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	waiter := dynamodb.NewTableExistsWaiter(s.client)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.tableName),
	}, 2*time.Minute); err != nil {
		return fmt.Errorf("failed waiting for table: %w", err)
	}

	return nil
}

// RecordAttempt upserts the attempt record for a job. created_at is set on
// the first write only. A stale write (fewer attempts than stored) fails the
// condition and is ignored.
func (s *DynamoDBStore) RecordAttempt(ctx context.Context, rec *core.AttemptRecord) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	item := RecordToItem(rec)

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: item.PK},
			"SK": &types.AttributeValueMemberS{Value: item.SK},
		},
		UpdateExpression: aws.String("SET job_id = :job_id, #queue = :queue, category = :category, " +
			"attempts_made = :attempts, last_error_summary = :summary, updated_at = :updated_at, " +
			"created_at = if_not_exists(created_at, :updated_at), GSI1PK = :gsi1pk, GSI1SK = :updated_at"),
		ConditionExpression: aws.String("attribute_not_exists(attempts_made) OR attempts_made <= :attempts"),
		ExpressionAttributeNames: map[string]string{
			"#queue": "queue",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":job_id":     &types.AttributeValueMemberS{Value: item.JobID},
			":queue":      &types.AttributeValueMemberS{Value: item.Queue},
			":category":   &types.AttributeValueMemberS{Value: item.Category},
			":attempts":   &types.AttributeValueMemberN{Value: strconv.Itoa(item.AttemptsMade)},
			":summary":    &types.AttributeValueMemberS{Value: item.LastErrorSummary},
			":updated_at": &types.AttributeValueMemberS{Value: item.UpdatedAt},
			":gsi1pk":     &types.AttributeValueMemberS{Value: "CATEGORY#" + item.Category},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil
		}
		return fmt.Errorf("failed to record attempt: %w", err)
	}

	return nil
}

// GetAttempt retrieves the attempt record for a job.
func (s *DynamoDBStore) GetAttempt(ctx context.Context, jobID string) (*core.AttemptRecord, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: attemptPK(jobID)},
			"SK": &types.AttributeValueMemberS{Value: attemptSK},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	if result.Item == nil {
		return nil, ErrNotFound
	}

	var item AttemptItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal attempt: %w", err)
	}

	return ItemToRecord(&item), nil
}

// Ping checks the connection to DynamoDB.
func (s *DynamoDBStore) Ping(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.tableName),
	})
	if err != nil {
		return fmt.Errorf("failed to ping DynamoDB: %w", err)
	}

	return nil
}

// Close closes the store (no-op for DynamoDB client).
func (s *DynamoDBStore) Close() error {
	return nil
}
