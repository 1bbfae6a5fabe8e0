package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/cchristou3/cyparking-cloud/pkg/logging"
)

const (
	attrCollection = "collection"
	attrDocID      = "docId"
)

type dynamoAPI interface {
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(context.Context, *dynamodb.DeleteItemInput, ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(context.Context, *dynamodb.QueryInput, ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(context.Context, *dynamodb.TransactWriteItemsInput, ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// DynamoStore persists documents to a single DynamoDB table keyed by
// (collection, docId). Document fields are flattened into top-level
// item attributes.
type DynamoStore struct {
	client    dynamoAPI
	tableName string
	logger    *logging.Logger
}

var _ Store = (*DynamoStore)(nil)

// NewDynamoStore builds a store backed by the provided DynamoDB client.
func NewDynamoStore(client dynamoAPI, tableName string, logger *logging.Logger) *DynamoStore {
	if client == nil {
		panic("store: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("store: table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &DynamoStore{client: client, tableName: tableName, logger: logger}
}

func keyFor(collection, id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrCollection: &types.AttributeValueMemberS{Value: collection},
		attrDocID:      &types.AttributeValueMemberS{Value: id},
	}
}

// Get implements Store.
func (s *DynamoStore) Get(ctx context.Context, collection, id string) (Document, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            keyFor(collection, id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("store: failed to get %s/%s: %w", collection, id, err)
	}
	if out.Item == nil {
		return nil, ErrNotFound
	}
	return itemToDocument(out.Item)
}

// Set implements Store.
func (s *DynamoStore) Set(ctx context.Context, collection, id string, doc Document) error {
	item, err := documentToItem(collection, id, doc)
	if err != nil {
		return err
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("store: failed to put %s/%s: %w", collection, id, err)
	}
	return nil
}

// Merge implements Store.
func (s *DynamoStore) Merge(ctx context.Context, collection, id string, fields Document) error {
	if len(fields) == 0 {
		return nil
	}
	expr, names, values, err := buildSetExpression(fields)
	if err != nil {
		return err
	}
	if _, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tableName),
		Key:                       keyFor(collection, id),
		UpdateExpression:          aws.String(expr),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	}); err != nil {
		return fmt.Errorf("store: failed to merge %s/%s: %w", collection, id, err)
	}
	return nil
}

// Delete implements Store.
func (s *DynamoStore) Delete(ctx context.Context, collection, id string) error {
	if _, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       keyFor(collection, id),
	}); err != nil {
		return fmt.Errorf("store: failed to delete %s/%s: %w", collection, id, err)
	}
	return nil
}

// Query implements Store. The whole collection partition is read and
// filtered server-side on a single field equality.
func (s *DynamoStore) Query(ctx context.Context, collection, field string, value any) ([]Doc, error) {
	attr, err := attributevalue.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("store: failed to marshal query value: %w", err)
	}
	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("#c = :c"),
		FilterExpression:       aws.String("#f = :v"),
		ExpressionAttributeNames: map[string]string{
			"#c": attrCollection,
			"#f": field,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":c": &types.AttributeValueMemberS{Value: collection},
			":v": attr,
		},
	}
	return s.queryAll(ctx, collection, input)
}

// All implements Store. The full collection is scanned; geofiltering
// happens client-side, a known scalability ceiling inherited from the
// contract.
func (s *DynamoStore) All(ctx context.Context, collection string) ([]Doc, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("#c = :c"),
		ExpressionAttributeNames: map[string]string{
			"#c": attrCollection,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":c": &types.AttributeValueMemberS{Value: collection},
		},
	}
	return s.queryAll(ctx, collection, input)
}

func (s *DynamoStore) queryAll(ctx context.Context, collection string, input *dynamodb.QueryInput) ([]Doc, error) {
	var docs []Doc
	for {
		out, err := s.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("store: failed to query %s: %w", collection, err)
		}
		for _, item := range out.Items {
			doc, err := itemToDocument(item)
			if err != nil {
				return nil, err
			}
			id, _ := item[attrDocID].(*types.AttributeValueMemberS)
			if id == nil {
				continue
			}
			docs = append(docs, Doc{Ref: Ref{Collection: collection, ID: id.Value}, Data: doc})
		}
		if out.LastEvaluatedKey == nil {
			return docs, nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

// Batch implements Store. Commits apply through a single
// TransactWriteItems call, so every staged operation succeeds or none
// do. DynamoDB caps one transaction at 100 items.
func (s *DynamoStore) Batch() Batch {
	return &dynamoBatch{store: s}
}

type dynamoBatch struct {
	store *DynamoStore
	items []types.TransactWriteItem
	err   error
}

func (b *dynamoBatch) Update(ref Ref, fields Document) {
	expr, names, values, err := buildSetExpression(fields)
	if err != nil {
		b.err = err
		return
	}
	b.items = append(b.items, types.TransactWriteItem{
		Update: &types.Update{
			TableName:                 aws.String(b.store.tableName),
			Key:                       keyFor(ref.Collection, ref.ID),
			UpdateExpression:          aws.String(expr),
			ExpressionAttributeNames:  names,
			ExpressionAttributeValues: values,
		},
	})
}

func (b *dynamoBatch) Delete(ref Ref) {
	b.items = append(b.items, types.TransactWriteItem{
		Delete: &types.Delete{
			TableName: aws.String(b.store.tableName),
			Key:       keyFor(ref.Collection, ref.ID),
		},
	})
}

func (b *dynamoBatch) Commit(ctx context.Context) error {
	if b.err != nil {
		return b.err
	}
	if len(b.items) == 0 {
		return nil
	}
	if _, err := b.store.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: b.items,
	}); err != nil {
		return fmt.Errorf("store: batch commit failed: %w", err)
	}
	return nil
}

func documentToItem(collection, id string, doc Document) (map[string]types.AttributeValue, error) {
	item, err := attributevalue.MarshalMap(map[string]any(doc))
	if err != nil {
		return nil, fmt.Errorf("store: failed to marshal %s/%s: %w", collection, id, err)
	}
	item[attrCollection] = &types.AttributeValueMemberS{Value: collection}
	item[attrDocID] = &types.AttributeValueMemberS{Value: id}
	return item, nil
}

func itemToDocument(item map[string]types.AttributeValue) (Document, error) {
	var doc Document
	if err := attributevalue.UnmarshalMap(item, &doc); err != nil {
		return nil, fmt.Errorf("store: failed to unmarshal item: %w", err)
	}
	delete(doc, attrCollection)
	delete(doc, attrDocID)
	return doc, nil
}

func buildSetExpression(fields Document) (string, map[string]string, map[string]types.AttributeValue, error) {
	// Deterministic field order keeps expressions stable for tests and
	// debugging.
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	names := make(map[string]string, len(keys))
	values := make(map[string]types.AttributeValue, len(keys))
	expr := "SET "
	for i, k := range keys {
		attr, err := attributevalue.Marshal(fields[k])
		if err != nil {
			return "", nil, nil, fmt.Errorf("store: failed to marshal field %s: %w", k, err)
		}
		name := fmt.Sprintf("#f%d", i)
		value := fmt.Sprintf(":v%d", i)
		if i > 0 {
			expr += ", "
		}
		expr += name + " = " + value
		names[name] = k
		values[value] = attr
	}
	return expr, names, values, nil
}
