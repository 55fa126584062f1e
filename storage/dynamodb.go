package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/johnwmail/npaste/models"
)

// dynamoAPI is the subset of the DynamoDB client the store uses
type dynamoAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// DynamoStore implements PasteStore using DynamoDB. The table has a string
// partition key "id" and TTL enabled on the "ttl" attribute.
type DynamoStore struct {
	client    dynamoAPI
	tableName string
	timeout   time.Duration
}

// NewDynamoStore creates a new DynamoDB storage backend. endpoint overrides
// the service URL (DynamoDB Local).
func NewDynamoStore(ctx context.Context, tableName, region, endpoint string, timeout time.Duration) (*DynamoStore, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	return newDynamoStore(client, tableName, timeout), nil
}

func newDynamoStore(client dynamoAPI, tableName string, timeout time.Duration) *DynamoStore {
	return &DynamoStore{client: client, tableName: tableName, timeout: timeout}
}

func (d *DynamoStore) key(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: id},
	}
}

func (d *DynamoStore) Ping(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx, d.timeout)
	defer cancel()

	_, err := d.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(d.tableName),
	})
	return wrapDynamoErr("DescribeTable", err)
}

// Create saves a paste unless the id is taken
func (d *DynamoStore) Create(ctx context.Context, paste *models.Paste) error {
	ctx, cancel := withTimeout(ctx, d.timeout)
	defer cancel()

	_, err := d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(d.tableName),
		Item:                pasteToItem(paste),
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return ErrDuplicateID
	}
	return wrapDynamoErr("PutItem", err)
}

// Get retrieves a paste by its ID
func (d *DynamoStore) Get(ctx context.Context, id string) (*models.Paste, error) {
	ctx, cancel := withTimeout(ctx, d.timeout)
	defer cancel()

	result, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(d.tableName),
		Key:            d.key(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, wrapDynamoErr("GetItem", err)
	}
	if len(result.Item) == 0 {
		return nil, ErrNotFound
	}
	return itemToPaste(result.Item)
}

func (d *DynamoStore) Exists(ctx context.Context, id string) (bool, error) {
	ctx, cancel := withTimeout(ctx, d.timeout)
	defer cancel()

	result, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:            aws.String(d.tableName),
		Key:                  d.key(id),
		ProjectionExpression: aws.String("id"),
		ConsistentRead:       aws.Bool(true),
	})
	if err != nil {
		return false, wrapDynamoErr("GetItem", err)
	}
	return len(result.Item) > 0, nil
}

func (d *DynamoStore) List(ctx context.Context) ([]*models.Paste, error) {
	ctx, cancel := withTimeout(ctx, d.timeout)
	defer cancel()

	var pastes []*models.Paste
	p := dynamodb.NewScanPaginator(d.client, &dynamodb.ScanInput{
		TableName: aws.String(d.tableName),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, wrapDynamoErr("Scan", err)
		}
		for _, item := range page.Items {
			paste, err := itemToPaste(item)
			if err != nil {
				return nil, err
			}
			pastes = append(pastes, paste)
		}
	}
	sortNewestFirst(pastes)
	if pastes == nil {
		pastes = []*models.Paste{}
	}
	return pastes, nil
}

// Delete removes a paste from DynamoDB
func (d *DynamoStore) Delete(ctx context.Context, id string) error {
	ctx, cancel := withTimeout(ctx, d.timeout)
	defer cancel()

	out, err := d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:    aws.String(d.tableName),
		Key:          d.key(id),
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return wrapDynamoErr("DeleteItem", err)
	}
	if len(out.Attributes) == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordView increments views_count conditioned on availability. On a failed
// condition the old item (if any) tells absent from unavailable.
func (d *DynamoStore) RecordView(ctx context.Context, id string, now time.Time) (*models.Paste, error) {
	ctx, cancel := withTimeout(ctx, d.timeout)
	defer cancel()

	out, err := d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(d.tableName),
		Key:              d.key(id),
		UpdateExpression: aws.String("SET views_count = views_count + :one"),
		ConditionExpression: aws.String("attribute_exists(id)" +
			" AND (attribute_not_exists(expires_at) OR expires_at >= :now)" +
			" AND (attribute_not_exists(max_views) OR views_count < max_views)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
			":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(now.UnixMilli(), 10)},
		},
		ReturnValues:                        types.ReturnValueAllNew,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			if len(ccf.Item) == 0 {
				return nil, ErrNotFound
			}
			return nil, ErrUnavailable
		}
		return nil, wrapDynamoErr("UpdateItem", err)
	}
	return itemToPaste(out.Attributes)
}

// PurgeExpired deletes items past expires_at that DynamoDB's own TTL sweep
// has not removed yet
func (d *DynamoStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := withTimeout(ctx, d.timeout)
	defer cancel()

	nowAttr := &types.AttributeValueMemberN{Value: strconv.FormatInt(now.UnixMilli(), 10)}
	p := dynamodb.NewScanPaginator(d.client, &dynamodb.ScanInput{
		TableName:                 aws.String(d.tableName),
		ProjectionExpression:      aws.String("id"),
		FilterExpression:          aws.String("expires_at < :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":now": nowAttr},
	})

	var n int64
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return n, wrapDynamoErr("Scan", err)
		}
		for _, item := range page.Items {
			id, ok := item["id"].(*types.AttributeValueMemberS)
			if !ok {
				continue
			}
			_, err := d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
				TableName:                 aws.String(d.tableName),
				Key:                       d.key(id.Value),
				ConditionExpression:       aws.String("expires_at < :now"),
				ExpressionAttributeValues: map[string]types.AttributeValue{":now": nowAttr},
			})
			var ccf *types.ConditionalCheckFailedException
			if errors.As(err, &ccf) {
				continue
			}
			if err != nil {
				return n, wrapDynamoErr("DeleteItem", err)
			}
			n++
		}
	}
	return n, nil
}

// Close is a no-op for DynamoDB
func (d *DynamoStore) Close() error {
	return nil
}

func wrapDynamoErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("dynamodb %s failed (%s): %w", op, apiErr.ErrorCode(), err)
	}
	return fmt.Errorf("dynamodb %s failed: %w", op, err)
}

// pasteToItem encodes times as Unix milliseconds. ttl is in seconds, rounded
// up, as DynamoDB's TTL feature expects.
func pasteToItem(paste *models.Paste) map[string]types.AttributeValue {
	item := map[string]types.AttributeValue{
		"id":          &types.AttributeValueMemberS{Value: paste.ID},
		"content":     &types.AttributeValueMemberS{Value: paste.Content},
		"views_count": &types.AttributeValueMemberN{Value: strconv.Itoa(paste.ViewsCount)},
		"created_at":  &types.AttributeValueMemberN{Value: strconv.FormatInt(paste.CreatedAt.UnixMilli(), 10)},
	}
	if paste.TTLSeconds != nil {
		item["ttl_seconds"] = &types.AttributeValueMemberN{Value: strconv.Itoa(*paste.TTLSeconds)}
	}
	if paste.MaxViews != nil {
		item["max_views"] = &types.AttributeValueMemberN{Value: strconv.Itoa(*paste.MaxViews)}
	}
	if paste.ExpiresAt != nil {
		ms := paste.ExpiresAt.UnixMilli()
		item["expires_at"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(ms, 10)}
		item["ttl"] = &types.AttributeValueMemberN{Value: strconv.FormatInt((ms+999)/1000, 10)}
	}
	return item
}

// itemToPaste converts a DynamoDB item to a Paste model
func itemToPaste(item map[string]types.AttributeValue) (*models.Paste, error) {
	paste := &models.Paste{}

	id, ok := item["id"].(*types.AttributeValueMemberS)
	if !ok {
		return nil, errors.New("dynamodb item has no id")
	}
	paste.ID = id.Value

	if content, ok := item["content"].(*types.AttributeValueMemberS); ok {
		paste.Content = content.Value
	}

	var err error
	if paste.ViewsCount, err = numberAttr(item, "views_count"); err != nil {
		return nil, err
	}
	createdAt, err := numberAttr64(item, "created_at")
	if err != nil {
		return nil, err
	}
	paste.CreatedAt = time.UnixMilli(createdAt).UTC()

	if _, ok := item["ttl_seconds"]; ok {
		v, err := numberAttr(item, "ttl_seconds")
		if err != nil {
			return nil, err
		}
		paste.TTLSeconds = &v
	}
	if _, ok := item["max_views"]; ok {
		v, err := numberAttr(item, "max_views")
		if err != nil {
			return nil, err
		}
		paste.MaxViews = &v
	}
	if _, ok := item["expires_at"]; ok {
		ms, err := numberAttr64(item, "expires_at")
		if err != nil {
			return nil, err
		}
		expiry := time.UnixMilli(ms).UTC()
		paste.ExpiresAt = &expiry
	}

	return paste, nil
}

func numberAttr64(item map[string]types.AttributeValue, name string) (int64, error) {
	v, ok := item[name]
	if !ok {
		return 0, nil
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("dynamodb attribute %s is not a number", name)
	}
	i, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("dynamodb attribute %s: %w", name, err)
	}
	return i, nil
}

func numberAttr(item map[string]types.AttributeValue, name string) (int, error) {
	i, err := numberAttr64(item, name)
	return int(i), err
}
