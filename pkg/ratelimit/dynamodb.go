package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// CounterAPI is the subset of the DynamoDB client the window limiter uses.
type CounterAPI interface {
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// WindowLimiter counts requests per fixed window in the shared DynamoDB
// table, so every Lambda instance sees the same budget. Items share the
// table's PK/SK schema and expire through the TTL attribute.
type WindowLimiter struct {
	client    CounterAPI
	tableName string
	limit     int
	window    time.Duration
	keyPrefix string
	now       func() time.Time
}

type windowEntry struct {
	Count int   `dynamodbav:"Count"`
	TTL   int64 `dynamodbav:"TTL"`
}

// NewWindowLimiter allows limit requests per window for every key.
func NewWindowLimiter(client CounterAPI, tableName string, limit int, window time.Duration, keyPrefix string) *WindowLimiter {
	return &WindowLimiter{
		client:    client,
		tableName: tableName,
		limit:     limit,
		window:    window,
		keyPrefix: keyPrefix,
		now:       time.Now,
	}
}

func (l *WindowLimiter) itemKey(key string, windowStart time.Time) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: fmt.Sprintf("RATELIMIT#%s#%s", l.keyPrefix, key)},
		"SK": &types.AttributeValueMemberS{Value: "WINDOW#" + strconv.FormatInt(windowStart.Unix(), 10)},
	}
}

// Allow increments the key's counter for the current window. The increment is
// conditional on the counter being under the limit, so a rejected request
// does not consume budget. Storage failures fail open and are returned so
// the caller can log them.
func (l *WindowLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if l.client == nil {
		return true, nil
	}

	windowStart := l.now().Truncate(l.window)
	windowEnd := windowStart.Add(l.window)

	update := expression.Set(expression.Name("Count"),
		expression.Plus(expression.IfNotExists(expression.Name("Count"), expression.Value(0)), expression.Value(1))).
		Set(expression.Name("TTL"), expression.Value(windowEnd.Add(time.Hour).Unix()))
	cond := expression.AttributeNotExists(expression.Name("Count")).
		Or(expression.Name("Count").LessThan(expression.Value(l.limit)))

	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(cond).Build()
	if err != nil {
		return true, fmt.Errorf("build rate limit expression: %w", err)
	}

	out, err := l.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(l.tableName),
		Key:                       l.itemKey(key, windowStart),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return false, nil
		}
		return true, fmt.Errorf("rate limiter unavailable (failing open): %w", err)
	}

	var entry windowEntry
	if err := attributevalue.UnmarshalMap(out.Attributes, &entry); err != nil {
		return true, fmt.Errorf("decode rate limit entry (failing open): %w", err)
	}
	return entry.Count <= l.limit, nil
}

// Reset drops the key's counter for the current window.
func (l *WindowLimiter) Reset(ctx context.Context, key string) error {
	if l.client == nil {
		return nil
	}
	_, err := l.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(l.tableName),
		Key:       l.itemKey(key, l.now().Truncate(l.window)),
	})
	return err
}
