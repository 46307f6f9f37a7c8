package storage

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/rl1809/reseller/internal/core/domain"
)

const (
	ddbRegistryPrefix = "REGISTRY#"
	ddbMetaSK         = "META"
	ddbSellerPrefix   = "SELLER#"

	DefaultAppendAttempts = 25
	DefaultAppendBackoff  = 5 * time.Millisecond

	maxAppendBackoff = 250 * time.Millisecond
)

// ErrAppendConflict is returned when optimistic appends keep losing races.
var ErrAppendConflict = errors.New("seller append conflict")

type ddbRegistryItem struct {
	PK          string
	SK          string
	Owner       string
	SellerCount uint64
	CreatedAt   int64
}

type ddbSellerItem struct {
	PK      string
	SK      string
	Index   uint64
	Address string
}

// DynamoDBAdapter stores every registry in one partition of a single table:
// the META item carries owner and count, SELLER# items carry the addresses.
type DynamoDBAdapter struct {
	client    *sdk.Client
	tableName string
	attempts  int
	backoff   time.Duration
}

// NewDynamoDBClient builds a client from the default AWS config chain.
// Static keys and a custom endpoint are optional.
func NewDynamoDBClient(ctx context.Context, region, endpoint, accessKey, secretKey string) (*sdk.Client, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if accessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	return sdk.NewFromConfig(cfg, func(o *sdk.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

// NewDynamoDBAdapter returns an adapter over tableName. Non-positive attempts
// or backoff fall back to DefaultAppendAttempts and DefaultAppendBackoff.
func NewDynamoDBAdapter(client *sdk.Client, tableName string, attempts int, backoff time.Duration) *DynamoDBAdapter {
	if attempts <= 0 {
		attempts = DefaultAppendAttempts
	}
	if backoff <= 0 {
		backoff = DefaultAppendBackoff
	}
	return &DynamoDBAdapter{
		client:    client,
		tableName: tableName,
		attempts:  attempts,
		backoff:   backoff,
	}
}

// appendBackoff doubles base per attempt up to maxAppendBackoff, with full
// jitter so racing appenders spread out.
func appendBackoff(base time.Duration, attempt int) time.Duration {
	ceiling := base
	for i := 0; i < attempt && ceiling < maxAppendBackoff; i++ {
		ceiling *= 2
	}
	if ceiling > maxAppendBackoff {
		ceiling = maxAppendBackoff
	}
	return time.Duration(rand.Int64N(int64(ceiling)) + 1)
}

func ddbKey(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

func ddbSellerSK(index uint64) string {
	return fmt.Sprintf("%s%020d", ddbSellerPrefix, index)
}

func (d *DynamoDBAdapter) CreateRegistry(ctx context.Context, registry domain.Registry) error {
	if registry.Owner.IsZero() {
		return fmt.Errorf("%w: owner must not be the zero address", domain.ErrInvalidAddress)
	}

	item, err := attributevalue.MarshalMap(ddbRegistryItem{
		PK:        ddbRegistryPrefix + registry.ID,
		SK:        ddbMetaSK,
		Owner:     registry.Owner.Hex(),
		CreatedAt: registry.CreatedAt.UTC().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}

	_, err = d.client.PutItem(ctx, &sdk.PutItemInput{
		TableName:           &d.tableName,
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		var cfe *types.ConditionalCheckFailedException
		if errors.As(err, &cfe) {
			return domain.ErrRegistryExists
		}
		return fmt.Errorf("PutItem failed: %w", err)
	}
	return nil
}

func (d *DynamoDBAdapter) getMeta(ctx context.Context, registryID string) (*ddbRegistryItem, error) {
	out, err := d.client.GetItem(ctx, &sdk.GetItemInput{
		TableName:      &d.tableName,
		Key:            ddbKey(ddbRegistryPrefix+registryID, ddbMetaSK),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("GetItem error: %w", err)
	}
	if out.Item == nil {
		return nil, nil
	}

	meta := new(ddbRegistryItem)
	if err := attributevalue.UnmarshalMap(out.Item, meta); err != nil {
		return nil, fmt.Errorf("failed to unmarshal registry: %w", err)
	}
	return meta, nil
}

func (d *DynamoDBAdapter) GetRegistry(ctx context.Context, registryID string) (*domain.Registry, error) {
	meta, err := d.getMeta(ctx, registryID)
	if err != nil || meta == nil {
		return nil, err
	}

	owner, err := domain.ParseAddress(meta.Owner)
	if err != nil {
		return nil, fmt.Errorf("decode owner: %w", err)
	}
	return &domain.Registry{
		ID:          registryID,
		Owner:       owner,
		SellerCount: meta.SellerCount,
		CreatedAt:   time.UnixMilli(meta.CreatedAt).UTC(),
	}, nil
}

// AppendSeller reads the current count, then writes count+1 and the seller
// item in one transaction conditioned on the count and owner being unchanged.
// A cancelled transaction means another append won the race; it is retried.
func (d *DynamoDBAdapter) AppendSeller(ctx context.Context, registryID string, caller, seller domain.Address) (uint64, error) {
	if seller.IsZero() {
		return 0, fmt.Errorf("%w: seller must not be the zero address", domain.ErrInvalidAddress)
	}

	for attempt := 0; attempt < d.attempts; attempt++ {
		meta, err := d.getMeta(ctx, registryID)
		if err != nil {
			return 0, err
		}
		if meta == nil {
			return 0, domain.ErrRegistryNotFound
		}

		owner, err := domain.ParseAddress(meta.Owner)
		if err != nil {
			return 0, fmt.Errorf("decode owner: %w", err)
		}
		if caller != owner {
			return 0, &domain.AuthorizationError{Caller: caller, Owner: owner}
		}

		next := meta.SellerCount + 1
		item, err := attributevalue.MarshalMap(ddbSellerItem{
			PK:      ddbRegistryPrefix + registryID,
			SK:      ddbSellerSK(next),
			Index:   next,
			Address: seller.Hex(),
		})
		if err != nil {
			return 0, fmt.Errorf("failed to marshal seller: %w", err)
		}

		_, err = d.client.TransactWriteItems(ctx, &sdk.TransactWriteItemsInput{
			TransactItems: []types.TransactWriteItem{
				{
					Update: &types.Update{
						TableName:           &d.tableName,
						Key:                 ddbKey(ddbRegistryPrefix+registryID, ddbMetaSK),
						UpdateExpression:    aws.String("SET SellerCount = :next"),
						ConditionExpression: aws.String("SellerCount = :current AND #owner = :caller"),
						ExpressionAttributeNames: map[string]string{
							"#owner": "Owner",
						},
						ExpressionAttributeValues: map[string]types.AttributeValue{
							":next":    &types.AttributeValueMemberN{Value: strconv.FormatUint(next, 10)},
							":current": &types.AttributeValueMemberN{Value: strconv.FormatUint(meta.SellerCount, 10)},
							":caller":  &types.AttributeValueMemberS{Value: caller.Hex()},
						},
					},
				},
				{
					Put: &types.Put{
						TableName:           &d.tableName,
						Item:                item,
						ConditionExpression: aws.String("attribute_not_exists(PK)"),
					},
				},
			},
		})
		if err == nil {
			return next, nil
		}

		var tce *types.TransactionCanceledException
		if !errors.As(err, &tce) {
			return 0, fmt.Errorf("TransactWriteItems failed: %w", err)
		}
		if attempt == d.attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(appendBackoff(d.backoff, attempt)):
		}
	}

	return 0, fmt.Errorf("%w: registry %s after %d attempts", ErrAppendConflict, registryID, d.attempts)
}

func (d *DynamoDBAdapter) GetSeller(ctx context.Context, registryID string, index uint64) (domain.Address, error) {
	out, err := d.client.GetItem(ctx, &sdk.GetItemInput{
		TableName:      &d.tableName,
		Key:            ddbKey(ddbRegistryPrefix+registryID, ddbSellerSK(index)),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.ZeroAddress, fmt.Errorf("GetItem error: %w", err)
	}

	if out.Item == nil {
		meta, err := d.getMeta(ctx, registryID)
		if err != nil {
			return domain.ZeroAddress, err
		}
		if meta == nil {
			return domain.ZeroAddress, domain.ErrRegistryNotFound
		}
		return domain.ZeroAddress, nil
	}

	var item ddbSellerItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return domain.ZeroAddress, fmt.Errorf("failed to unmarshal seller: %w", err)
	}
	return domain.ParseAddress(item.Address)
}
