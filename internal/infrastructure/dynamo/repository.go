package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-blood-connect/internal/domain"
)

// API is the subset of the DynamoDB client used by the repositories.
type API interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Repository provides typed single-table operations for one entity family.
// D is the domain type and F the stored item; the adapter owns every key.
type Repository[D, F any] struct {
	client  API
	table   string
	adapter Adapter[D, F]
}

func NewRepository[D, F any](client API, table string, adapter Adapter[D, F]) *Repository[D, F] {
	return &Repository[D, F]{client: client, table: table, adapter: adapter}
}

// Create writes d, replacing any item with the same key.
func (r *Repository[D, F]) Create(ctx context.Context, d D) (D, error) {
	var zero D
	f, err := r.adapter.FromDomain(d)
	if err != nil {
		return zero, fmt.Errorf("create item in %s: %w", r.table, err)
	}
	item, err := attributevalue.MarshalMap(f)
	if err != nil {
		return zero, fmt.Errorf("create item in %s: marshal: %w", r.table, err)
	}
	if _, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.table),
		Item:      item,
	}); err != nil {
		return zero, fmt.Errorf("create item in %s: %w: %w", r.table, domain.ErrStoreWrite, err)
	}
	return r.adapter.ToDomain(f)
}

// Insert writes d only if no item with the same key exists. An existing item
// is reported as domain.ErrConflict.
func (r *Repository[D, F]) Insert(ctx context.Context, d D) (D, error) {
	var zero D
	f, err := r.adapter.FromDomain(d)
	if err != nil {
		return zero, fmt.Errorf("insert item in %s: %w", r.table, err)
	}
	item, err := attributevalue.MarshalMap(f)
	if err != nil {
		return zero, fmt.Errorf("insert item in %s: marshal: %w", r.table, err)
	}
	ce, err := expression.NewBuilder().
		WithCondition(expression.AttributeNotExists(expression.Name(r.adapter.PrimaryIndex().PartitionKey))).
		Build()
	if err != nil {
		return zero, fmt.Errorf("insert item in %s: build condition: %w", r.table, err)
	}
	if _, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(r.table),
		Item:                     item,
		ConditionExpression:      ce.Condition(),
		ExpressionAttributeNames: ce.Names(),
	}); err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return zero, fmt.Errorf("insert item in %s: %w", r.table, domain.ErrConflict)
		}
		return zero, fmt.Errorf("insert item in %s: %w: %w", r.table, domain.ErrStoreWrite, err)
	}
	return r.adapter.ToDomain(f)
}

type updateOptions struct {
	remove []string
	cond   expression.ConditionBuilder
}

type UpdateOption func(*updateOptions)

// Remove deletes the named attributes as part of the update.
func Remove(fields ...string) UpdateOption {
	return func(o *updateOptions) { o.remove = append(o.remove, fields...) }
}

// If guards the update with an extra condition. A failed guard on an existing
// item is reported as domain.ErrConflict.
func If(cond expression.ConditionBuilder) UpdateOption {
	return func(o *updateOptions) { o.cond = cond }
}

// Update applies a sparse update: every attribute the adapter emits for d is
// SET, attributes marshalled as NULL or named by Remove are REMOVEd, and the
// primary key is never written. The item must already exist.
func (r *Repository[D, F]) Update(ctx context.Context, d D, opts ...UpdateOption) (D, error) {
	var zero D
	var o updateOptions
	for _, opt := range opts {
		opt(&o)
	}

	f, err := r.adapter.FromDomain(d)
	if err != nil {
		return zero, fmt.Errorf("update item in %s: %w", r.table, err)
	}
	item, err := attributevalue.MarshalMap(f)
	if err != nil {
		return zero, fmt.Errorf("update item in %s: marshal: %w", r.table, err)
	}

	ix := r.adapter.PrimaryIndex()
	key, err := keyFromItem(ix, item)
	if err != nil {
		return zero, fmt.Errorf("update item in %s: %w: %w", r.table, domain.ErrBadRequest, err)
	}

	set := make(map[string]types.AttributeValue, len(item))
	var remove []string
	for name, av := range item {
		if name == ix.PartitionKey || name == ix.SortKey {
			continue
		}
		if _, isNull := av.(*types.AttributeValueMemberNULL); isNull {
			remove = append(remove, name)
			continue
		}
		set[name] = av
	}
	for _, name := range o.remove {
		if name != ix.PartitionKey && name != ix.SortKey {
			remove = append(remove, name)
		}
	}

	ue, err := buildUpdateExpr(set, remove)
	if err != nil {
		return zero, fmt.Errorf("update item in %s: %w: %w", r.table, domain.ErrBadRequest, err)
	}

	cond := expression.AttributeExists(expression.Name(ix.PartitionKey))
	if o.cond.IsSet() {
		cond = cond.And(o.cond)
	}
	ce, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return zero, fmt.Errorf("update item in %s: build condition: %w", r.table, err)
	}

	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                           aws.String(r.table),
		Key:                                 key,
		UpdateExpression:                    aws.String(ue.Expr),
		ConditionExpression:                 ce.Condition(),
		ExpressionAttributeNames:            mergeNames(ue.Names, ce.Names()),
		ExpressionAttributeValues:           mergeValues(ue.Values, ce.Values()),
		ReturnValues:                        types.ReturnValueAllNew,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			if len(ccf.Item) == 0 {
				return zero, fmt.Errorf("update item in %s: %w", r.table, domain.ErrNotFound)
			}
			return zero, fmt.Errorf("update item in %s: %w", r.table, domain.ErrConflict)
		}
		return zero, fmt.Errorf("failed to update item in %s: %w: %w", r.table, domain.ErrStoreWrite, err)
	}

	var updated F
	if err := attributevalue.UnmarshalMap(out.Attributes, &updated); err != nil {
		return zero, fmt.Errorf("update item in %s: unmarshal: %w", r.table, err)
	}
	return r.adapter.ToDomain(updated)
}

// GetItem returns the item stored under (pk, sk) or domain.ErrNotFound.
func (r *Repository[D, F]) GetItem(ctx context.Context, pk, sk string) (D, error) {
	var zero D
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.table),
		Key:       keyOf(r.adapter.PrimaryIndex(), pk, sk),
	})
	if err != nil {
		return zero, fmt.Errorf("get item from %s: %w: %w", r.table, domain.ErrStoreRead, err)
	}
	if out.Item == nil {
		return zero, fmt.Errorf("get item from %s: %w", r.table, domain.ErrNotFound)
	}
	var f F
	if err := attributevalue.UnmarshalMap(out.Item, &f); err != nil {
		return zero, fmt.Errorf("get item from %s: %w: %w", r.table, domain.ErrStoreRead, err)
	}
	return r.adapter.ToDomain(f)
}

// Delete removes the item stored under (pk, sk). Index entries follow the item.
func (r *Repository[D, F]) Delete(ctx context.Context, pk, sk string) error {
	if _, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.table),
		Key:       keyOf(r.adapter.PrimaryIndex(), pk, sk),
	}); err != nil {
		return fmt.Errorf("failed to delete item in %s: %w: %w", r.table, domain.ErrStoreWrite, err)
	}
	return nil
}
