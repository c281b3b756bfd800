package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"
)

// Single-table key layout: PK = <collection>#<id>, SK = "DOC".
const (
	attrPK       = "PK"
	attrSK       = "SK"
	attrColl     = "collection"
	skDocument   = "DOC"
	pkSeparator  = "#"
	conditionNew = "attribute_not_exists(PK)"
)

// DynamoAPI is the subset of *dynamodb.Client used by DynamoStore.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// DynamoStore is a DocumentStore on one DynamoDB table.
type DynamoStore struct {
	client    DynamoAPI
	tableName string
}

var _ ReadWriter = (*DynamoStore)(nil)

// NewDynamoStore creates a DynamoStore for the given table.
func NewDynamoStore(client DynamoAPI, tableName string) *DynamoStore {
	return &DynamoStore{client: client, tableName: tableName}
}

// TableName returns the table the store writes to.
func (s *DynamoStore) TableName() string { return s.tableName }

func documentPK(collection, id string) string {
	return collection + pkSeparator + id
}

// CreateDocument marshals data with attributevalue and writes it with a
// condition that the key does not exist yet.
func (s *DynamoStore) CreateDocument(ctx context.Context, collection string, data any) (string, error) {
	item, err := attributevalue.MarshalMap(data)
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}

	id := documentID(data)
	pk := documentPK(collection, id)
	item[attrPK] = &types.AttributeValueMemberS{Value: pk}
	item[attrSK] = &types.AttributeValueMemberS{Value: skDocument}
	item[attrColl] = &types.AttributeValueMemberS{Value: collection}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String(conditionNew),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return "", fmt.Errorf("PutItem PK=%s: %w", pk, ErrConflict)
		}
		return "", fmt.Errorf("PutItem PK=%s: %w", pk, err)
	}

	log.Debug().Str("table", s.tableName).Str("pk", pk).Msg("Document created in DynamoDB")
	return id, nil
}

// GetDocument reads the document with a consistent read.
func (s *DynamoStore) GetDocument(ctx context.Context, collection, id string, out any) error {
	pk := documentPK(collection, id)
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			attrPK: &types.AttributeValueMemberS{Value: pk},
			attrSK: &types.AttributeValueMemberS{Value: skDocument},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("GetItem PK=%s: %w", pk, err)
	}
	if result.Item == nil {
		return fmt.Errorf("PK=%s: %w", pk, ErrNotFound)
	}
	if err := attributevalue.UnmarshalMap(result.Item, out); err != nil {
		return fmt.Errorf("unmarshal PK=%s: %w", pk, err)
	}
	return nil
}
