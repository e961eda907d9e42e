package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/go-blood-connect/internal/domain"
)

type SortOperator string

const (
	OpEqual            SortOperator = "="
	OpLessThan         SortOperator = "<"
	OpLessThanEqual    SortOperator = "<="
	OpGreaterThan      SortOperator = ">"
	OpGreaterThanEqual SortOperator = ">="
	OpBeginsWith       SortOperator = "begins_with"
	OpBetween          SortOperator = "BETWEEN"
)

// SortCondition constrains the sort key of the queried index. Upper is the
// second bound of OpBetween and ignored otherwise.
type SortCondition struct {
	Operator SortOperator
	Value    string
	Upper    string
}

// QueryInput describes one page request. Attribute names are resolved from
// the index, so callers only supply key values.
type QueryInput struct {
	Partition  string
	Sort       *SortCondition
	Filter     expression.ConditionBuilder
	Limit      int32
	Descending bool
	Cursor     Cursor
}

type Page[D any] struct {
	Items []D
	Next  Cursor
}

func (q QueryInput) keyCondition(ix Index) (expression.KeyConditionBuilder, error) {
	kc := expression.Key(ix.PartitionKey).Equal(expression.Value(q.Partition))
	if q.Sort == nil {
		return kc, nil
	}
	if ix.SortKey == "" {
		return kc, fmt.Errorf("index %q has no sort key: %w", ix.Name, domain.ErrBadRequest)
	}

	k := expression.Key(ix.SortKey)
	v := expression.Value(q.Sort.Value)
	var sc expression.KeyConditionBuilder
	switch q.Sort.Operator {
	case OpEqual:
		sc = k.Equal(v)
	case OpLessThan:
		sc = k.LessThan(v)
	case OpLessThanEqual:
		sc = k.LessThanEqual(v)
	case OpGreaterThan:
		sc = k.GreaterThan(v)
	case OpGreaterThanEqual:
		sc = k.GreaterThanEqual(v)
	case OpBeginsWith:
		sc = k.BeginsWith(q.Sort.Value)
	case OpBetween:
		if q.Sort.Upper == "" {
			return kc, fmt.Errorf("BETWEEN operator requires a non-empty second value: %w", domain.ErrBadRequest)
		}
		sc = k.Between(v, expression.Value(q.Sort.Upper))
	default:
		return kc, fmt.Errorf("unsupported sort operator %q: %w", q.Sort.Operator, domain.ErrBadRequest)
	}
	return kc.And(sc), nil
}

// Query reads one page from the primary key (indexName "") or a named
// secondary index. When projection is given only those attributes are read,
// so the adapter must be able to rebuild D from them.
func (r *Repository[D, F]) Query(ctx context.Context, in QueryInput, indexName string, projection ...string) (Page[D], error) {
	ix, ok := r.adapter.Index(indexName)
	if !ok {
		return Page[D]{}, fmt.Errorf("query %s: %q: %w", r.table, indexName, domain.ErrIndexNotFound)
	}
	kc, err := in.keyCondition(ix)
	if err != nil {
		return Page[D]{}, err
	}
	startKey, err := decodeCursor(in.Cursor)
	if err != nil {
		return Page[D]{}, err
	}

	b := expression.NewBuilder().WithKeyCondition(kc)
	if in.Filter.IsSet() {
		b = b.WithFilter(in.Filter)
	}
	if len(projection) > 0 {
		names := make([]expression.NameBuilder, len(projection))
		for i, p := range projection {
			names[i] = expression.Name(p)
		}
		b = b.WithProjection(expression.NamesList(names[0], names[1:]...))
	}
	expr, err := b.Build()
	if err != nil {
		return Page[D]{}, fmt.Errorf("query %s: build expression: %w: %w", r.table, domain.ErrBadRequest, err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(r.table),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ProjectionExpression:      expr.Projection(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(!in.Descending),
		ExclusiveStartKey:         startKey,
	}
	if ix.Name != "" {
		input.IndexName = aws.String(ix.Name)
	}
	if in.Limit > 0 {
		input.Limit = aws.Int32(in.Limit)
	}

	out, err := r.client.Query(ctx, input)
	if err != nil {
		return Page[D]{}, fmt.Errorf("query %s: %w: %w", r.table, domain.ErrStoreRead, err)
	}

	var items []F
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
		return Page[D]{}, fmt.Errorf("query %s: %w: %w", r.table, domain.ErrStoreRead, err)
	}
	page := Page[D]{Items: make([]D, 0, len(items))}
	for _, f := range items {
		d, err := r.adapter.ToDomain(f)
		if err != nil {
			return Page[D]{}, fmt.Errorf("query %s: %w: %w", r.table, domain.ErrStoreRead, err)
		}
		page.Items = append(page.Items, d)
	}
	if page.Next, err = encodeCursor(out.LastEvaluatedKey); err != nil {
		return Page[D]{}, fmt.Errorf("query %s: %w: %w", r.table, domain.ErrStoreRead, err)
	}
	return page, nil
}

// QueryAll follows the continuation cursor until the result set is exhausted.
func (r *Repository[D, F]) QueryAll(ctx context.Context, in QueryInput, indexName string, projection ...string) ([]D, error) {
	var all []D
	for {
		page, err := r.Query(ctx, in, indexName, projection...)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Items...)
		if page.Next == "" {
			return all, nil
		}
		in.Cursor = page.Next
	}
}
