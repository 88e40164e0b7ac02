// Package dynamodb provides a Backend on top of an existing DynamoDB table.
//
// The table needs a string partition key (default attribute name "key").
// For TTL support, enable time-to-live on the table using the "ttl"
// attribute. DynamoDB removes expired items lazily, so expiry is also
// enforced on read: an item past its deadline is reported as a miss even if
// it still lingers in the table.
//
// Credentials and region resolve from the environment as usual for the AWS
// SDK; Region in Config overrides.
package dynamodb

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	ddb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	be "github.com/unkn0wn-root/fncache/backend"
)

var ErrNoTable = errors.New("dynamodb backend: table name is required")

const (
	attrKey   = "key"
	attrValue = "value"
	attrTTL   = "ttl"
)

type Backend struct {
	client *ddb.Client
	table  string
}

var _ be.Backend = (*Backend)(nil)

type Config struct {
	// Client is an existing DynamoDB client to ride on. When nil, a client
	// is built from the default AWS config chain.
	Client *ddb.Client
	// TableName is the cache table. Required.
	TableName string
	// Region overrides the environment's region when building a client.
	Region string
}

func New(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.TableName == "" {
		return nil, ErrNoTable
	}
	client := cfg.Client
	if client == nil {
		var loadOpts []func(*awsconfig.LoadOptions) error
		if cfg.Region != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, err
		}
		client = ddb.NewFromConfig(awsCfg)
	}
	return &Backend{client: client, table: cfg.TableName}, nil
}

func (b *Backend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	out, err := b.client.GetItem(ctx, &ddb.GetItemInput{
		TableName: aws.String(b.table),
		Key:       itemKey(key),
	})
	if err != nil {
		return nil, false, err
	}
	if out.Item == nil {
		return nil, false, nil
	}

	value, ok := out.Item[attrValue].(*types.AttributeValueMemberB)
	if !ok {
		return nil, false, nil
	}
	// TTL removal is only eventually consistent; check the deadline ourselves.
	if n, ok := out.Item[attrTTL].(*types.AttributeValueMemberN); ok {
		deadline, err := strconv.ParseInt(n.Value, 10, 64)
		if err == nil && deadline <= time.Now().Unix() {
			return nil, false, nil
		}
	}
	return value.Value, true, nil
}

func (b *Backend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	item := map[string]types.AttributeValue{
		attrKey:   &types.AttributeValueMemberS{Value: key},
		attrValue: &types.AttributeValueMemberB{Value: value},
	}
	if ttl > 0 {
		deadline := time.Now().Add(ttl).Unix()
		item[attrTTL] = &types.AttributeValueMemberN{Value: strconv.FormatInt(deadline, 10)}
	}
	_, err := b.client.PutItem(ctx, &ddb.PutItemInput{
		TableName: aws.String(b.table),
		Item:      item,
	})
	return err
}

// Clear scans the table and deletes matching items one by one. A full table
// scan is expensive; intended for tests and administrative cleanup, not hot
// paths.
func (b *Backend) Clear(ctx context.Context, prefix string) (int, error) {
	input := &ddb.ScanInput{
		TableName:            aws.String(b.table),
		ProjectionExpression: aws.String("#k"),
		ExpressionAttributeNames: map[string]string{
			"#k": attrKey,
		},
	}
	if prefix != "" {
		input.FilterExpression = aws.String("begins_with(#k, :p)")
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":p": &types.AttributeValueMemberS{Value: prefix},
		}
	}

	removed := 0
	for {
		out, err := b.client.Scan(ctx, input)
		if err != nil {
			return removed, err
		}
		for _, item := range out.Items {
			k, ok := item[attrKey].(*types.AttributeValueMemberS)
			if !ok {
				continue
			}
			if _, err := b.client.DeleteItem(ctx, &ddb.DeleteItemInput{
				TableName: aws.String(b.table),
				Key:       itemKey(k.Value),
			}); err != nil {
				return removed, err
			}
			removed++
		}
		if out.LastEvaluatedKey == nil {
			return removed, nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

// Exists is derived from Get so the read-side TTL check applies.
func (b *Backend) Exists(ctx context.Context, key string) (bool, error) {
	_, ok, err := b.Get(ctx, key)
	return ok, err
}

// Close is a no-op; the SDK client has no resources to release.
func (b *Backend) Close(context.Context) error { return nil }

func itemKey(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrKey: &types.AttributeValueMemberS{Value: key},
	}
}
