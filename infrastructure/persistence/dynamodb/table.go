package dynamodb

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Table is the shared handle of the stores: one client, one table, one
// circuit breaker
type Table struct {
	api    API
	name   string
	exec   *executor
	logger *zap.Logger
}

// NewTable creates a table handle
func NewTable(api API, name string, breaker BreakerSettings, tracer trace.Tracer, logger *zap.Logger) *Table {
	return &Table{
		api:    api,
		name:   name,
		exec:   newExecutor(name, breaker, tracer, logger),
		logger: logger,
	}
}

// Ping reports whether the table is reachable and the breaker is closed
func (t *Table) Ping(ctx context.Context) error {
	if t.exec.state() == gobreaker.StateOpen {
		return fmt.Errorf("dynamodb circuit breaker is open")
	}
	return t.exec.do(ctx, "DescribeTable", func(ctx context.Context) error {
		_, err := t.api.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(t.name)})
		return err
	})
}

func (t *Table) put(ctx context.Context, operation string, item map[string]types.AttributeValue) error {
	return t.exec.do(ctx, operation, func(ctx context.Context) error {
		_, err := t.api.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: aws.String(t.name),
			Item:      item,
		})
		return err
	})
}

func (t *Table) get(ctx context.Context, operation string, key map[string]types.AttributeValue) (map[string]types.AttributeValue, error) {
	var item map[string]types.AttributeValue
	err := t.exec.do(ctx, operation, func(ctx context.Context) error {
		result, err := t.api.GetItem(ctx, &dynamodb.GetItemInput{
			TableName:      aws.String(t.name),
			Key:            key,
			ConsistentRead: aws.Bool(true),
		})
		if err != nil {
			return err
		}
		item = result.Item
		return nil
	})
	return item, err
}

func (t *Table) delete(ctx context.Context, operation string, key map[string]types.AttributeValue) error {
	return t.exec.do(ctx, operation, func(ctx context.Context) error {
		_, err := t.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(t.name),
			Key:       key,
		})
		return err
	})
}

// update applies the update to an existing item
func (t *Table) update(ctx context.Context, operation string, key map[string]types.AttributeValue, update expression.UpdateBuilder) error {
	expr, err := expression.NewBuilder().
		WithUpdate(update).
		WithCondition(expression.AttributeExists(expression.Name("PK"))).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build expression: %w", err)
	}
	return t.updateWith(ctx, operation, key, expr)
}

// upsert applies the update, creating the item when missing
func (t *Table) upsert(ctx context.Context, operation string, key map[string]types.AttributeValue, update expression.UpdateBuilder) error {
	expr, err := expression.NewBuilder().WithUpdate(update).Build()
	if err != nil {
		return fmt.Errorf("failed to build expression: %w", err)
	}
	return t.updateWith(ctx, operation, key, expr)
}

func (t *Table) updateWith(ctx context.Context, operation string, key map[string]types.AttributeValue, expr expression.Expression) error {
	return t.exec.do(ctx, operation, func(ctx context.Context) error {
		_, err := t.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:                 aws.String(t.name),
			Key:                       key,
			UpdateExpression:          expr.Update(),
			ConditionExpression:       expr.Condition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
		})
		return err
	})
}

// scanEntities returns every item of the given entity type
func (t *Table) scanEntities(ctx context.Context, operation, entityType string) ([]map[string]types.AttributeValue, error) {
	expr, err := expression.NewBuilder().
		WithFilter(expression.Name("EntityType").Equal(expression.Value(entityType))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	var items []map[string]types.AttributeValue
	err = t.exec.do(ctx, operation, func(ctx context.Context) error {
		items = nil
		paginator := dynamodb.NewScanPaginator(t.api, &dynamodb.ScanInput{
			TableName:                 aws.String(t.name),
			FilterExpression:          expr.Filter(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ConsistentRead:            aws.Bool(true),
		})
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				return err
			}
			items = append(items, page.Items...)
		}
		return nil
	})
	return items, err
}

// queryPartition returns every item under pk
func (t *Table) queryPartition(ctx context.Context, operation, pk string) ([]map[string]types.AttributeValue, error) {
	expr, err := expression.NewBuilder().
		WithKeyCondition(expression.Key("PK").Equal(expression.Value(pk))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	var items []map[string]types.AttributeValue
	err = t.exec.do(ctx, operation, func(ctx context.Context) error {
		items = nil
		paginator := dynamodb.NewQueryPaginator(t.api, &dynamodb.QueryInput{
			TableName:                 aws.String(t.name),
			KeyConditionExpression:    expr.KeyCondition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ConsistentRead:            aws.Bool(true),
		})
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				return err
			}
			items = append(items, page.Items...)
		}
		return nil
	})
	return items, err
}
