package store

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
	"github.com/rs/zerolog/log"
)

// DynamoDB key constants for the single-table design.
//
// Each submission is one item (PK = SUBMISSION#{id}, SK = META). Ids come
// from a counter item (PK = COUNTER, SK = SUBMISSION) incremented with an
// atomic ADD, which gives strictly increasing ids across processes.
const (
	pkPrefix   = "SUBMISSION#"
	skMeta     = "META"
	pkCounter  = "COUNTER"
	skCounter  = "SUBMISSION"
	counterVal = "value"
)

// dynamoAPI is the subset of the DynamoDB client used by DynamoStore.
type dynamoAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// DynamoStore implements PendingStore using AWS DynamoDB.
type DynamoStore struct {
	client    dynamoAPI
	tableName string
	ttl       time.Duration
}

// Compile-time interface check.
var _ PendingStore = (*DynamoStore)(nil)

// NewDynamoStore creates a DynamoStore for the given table.
// ttl > 0 adds an expiresAt attribute so abandoned submissions age out via
// DynamoDB TTL; ttl == 0 keeps records until a moderator acts.
func NewDynamoStore(client *dynamodb.Client, tableName string, ttl time.Duration) *DynamoStore {
	return newDynamoStore(client, tableName, ttl)
}

func newDynamoStore(client dynamoAPI, tableName string, ttl time.Duration) *DynamoStore {
	return &DynamoStore{
		client:    client,
		tableName: tableName,
		ttl:       ttl,
	}
}

// --- Internal helpers ---

// submissionPK returns the partition key for a submission.
func submissionPK(id int64) string {
	return pkPrefix + strconv.FormatInt(id, 10)
}

func itemKey(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

// nextID atomically increments the counter item and returns the new value.
func (s *DynamoStore) nextID(ctx context.Context) (int64, error) {
	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        &s.tableName,
		Key:              itemKey(pkCounter, skCounter),
		UpdateExpression: aws.String("ADD #v :one"),
		ExpressionAttributeNames: map[string]string{
			"#v": counterVal,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, fmt.Errorf("UpdateItem counter: %w", err)
	}
	attr, ok := out.Attributes[counterVal].(*types.AttributeValueMemberN)
	if !ok {
		return 0, errors.New("counter update returned no value")
	}
	id, err := strconv.ParseInt(attr.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse counter value %q: %w", attr.Value, err)
	}
	return id, nil
}

// --- PendingStore ---

func (s *DynamoStore) Create(ctx context.Context, sub *Submission) (int64, error) {
	if err := validate(sub); err != nil {
		return 0, err
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}

	id, err := s.nextID(ctx)
	if err != nil {
		return 0, fmt.Errorf("allocate submission id: %w", err)
	}

	item, err := attributevalue.MarshalMap(sub)
	if err != nil {
		return 0, fmt.Errorf("marshal submission: %w", err)
	}
	pk := submissionPK(id)
	item["PK"] = &types.AttributeValueMemberS{Value: pk}
	item["SK"] = &types.AttributeValueMemberS{Value: skMeta}
	if s.ttl > 0 {
		exp := time.Now().Add(s.ttl).Unix()
		item["expiresAt"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(exp, 10)}
	}

	start := time.Now()
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		return 0, fmt.Errorf("PutItem PK=%s SK=%s: %w", pk, skMeta, err)
	}

	sub.ID = id
	log.Debug().
		Int64("submissionId", id).
		Int("items", len(sub.Items)).
		Dur("duration", time.Since(start)).
		Msg("Submission persisted to DynamoDB")
	return id, nil
}

func (s *DynamoStore) Get(ctx context.Context, id int64) (*Submission, error) {
	pk := submissionPK(id)
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      &s.tableName,
		Key:            itemKey(pk, skMeta),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("GetItem PK=%s SK=%s: %w", pk, skMeta, err)
	}
	if result.Item == nil {
		log.Debug().Int64("submissionId", id).Bool("found", false).Msg("Get: submission not found")
		return nil, ErrNotFound
	}

	var sub Submission
	if err := attributevalue.UnmarshalMap(result.Item, &sub); err != nil {
		return nil, fmt.Errorf("unmarshal PK=%s SK=%s: %w", pk, skMeta, err)
	}
	sub.ID = id
	return &sub, nil
}

func (s *DynamoStore) Delete(ctx context.Context, id int64) error {
	pk := submissionPK(id)
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           &s.tableName,
		Key:                 itemKey(pk, skMeta),
		ConditionExpression: aws.String("attribute_exists(PK)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrNotFound
		}
		return fmt.Errorf("DeleteItem PK=%s SK=%s: %w", pk, skMeta, err)
	}

	log.Debug().Int64("submissionId", id).Msg("Submission deleted from DynamoDB")
	return nil
}
