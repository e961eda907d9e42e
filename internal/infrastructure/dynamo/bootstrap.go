package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// Bootstrap creates the single table with its GSI1 and LSI1 if it doesn't exist.
// Safe to call on every startup.
func Bootstrap(ctx context.Context, client *dynamodb.Client, table string, log *zap.Logger) {
	createTable(ctx, client, log, &dynamodb.CreateTableInput{
		TableName:   aws.String(table),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(attrPK), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(attrSK), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(attrGSI1PK), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(attrGSI1SK), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(attrLSI1SK), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: keySchema(primaryIndex),
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
			gsi(gsi1Index),
		},
		LocalSecondaryIndexes: []types.LocalSecondaryIndex{
			lsi(lsi1Index),
		},
	})
}

// keySchema builds the key schema of ix. If it has no sort key, only a hash key is added.
func keySchema(ix Index) []types.KeySchemaElement {
	ks := []types.KeySchemaElement{
		{AttributeName: aws.String(ix.PartitionKey), KeyType: types.KeyTypeHash},
	}
	if ix.SortKey != "" {
		ks = append(ks, types.KeySchemaElement{
			AttributeName: aws.String(ix.SortKey), KeyType: types.KeyTypeRange,
		})
	}
	return ks
}

func gsi(ix Index) types.GlobalSecondaryIndex {
	return types.GlobalSecondaryIndex{
		IndexName:  aws.String(ix.Name),
		KeySchema:  keySchema(ix),
		Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
	}
}

func lsi(ix Index) types.LocalSecondaryIndex {
	return types.LocalSecondaryIndex{
		IndexName:  aws.String(ix.Name),
		KeySchema:  keySchema(ix),
		Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
	}
}

func createTable(ctx context.Context, client *dynamodb.Client, log *zap.Logger, input *dynamodb.CreateTableInput) {
	_, err := client.CreateTable(ctx, input)
	if err != nil {
		// ResourceInUseException means the table already exists.
		var riue *types.ResourceInUseException
		if !errors.As(err, &riue) {
			log.Warn("could not create table", zap.String("table", *input.TableName), zap.Error(err))
		}
		return
	}
	log.Info("created table", zap.String("table", *input.TableName))
}

type tableDescriber interface {
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// TableReady reports an error unless the table exists and is ACTIVE.
func TableReady(ctx context.Context, client tableDescriber, table string) error {
	out, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(table)})
	if err != nil {
		return fmt.Errorf("describe %s: %w", table, err)
	}
	if out.Table == nil || out.Table.TableStatus != types.TableStatusActive {
		return fmt.Errorf("table %s is not active", table)
	}
	return nil
}
