package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/reseller/internal/core/domain"
)

const (
	registryKeyPrefix    = "registry:"
	idempotencyKeyPrefix = "idempotency:"
	idempotencyKeyTTL    = 24 * time.Hour
)

var createRegistryScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end

redis.call('HSET', KEYS[1], 'owner', ARGV[1], 'count', 0, 'created_at', ARGV[2])
return 1
`)

// Returns the new index, -1 if the registry is missing, -2 if the caller is
// not the owner.
var appendSellerScript = redis.NewScript(`
local owner = redis.call('HGET', KEYS[1], 'owner')
if not owner then
	return -1
end

if owner ~= ARGV[1] then
	return -2
end

local index = redis.call('HINCRBY', KEYS[1], 'count', 1)
redis.call('HSET', KEYS[2], index, ARGV[2])
return index
`)

type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func registryKey(registryID string) string {
	return registryKeyPrefix + registryID
}

func sellersKey(registryID string) string {
	return registryKeyPrefix + registryID + ":sellers"
}

func (r *RedisAdapter) CreateRegistry(ctx context.Context, registry domain.Registry) error {
	if registry.Owner.IsZero() {
		return fmt.Errorf("%w: owner must not be the zero address", domain.ErrInvalidAddress)
	}

	created, err := createRegistryScript.Run(ctx, r.client,
		[]string{registryKey(registry.ID)},
		registry.Owner.Hex(), registry.CreatedAt.UTC().UnixMilli(),
	).Int()
	if err != nil {
		return fmt.Errorf("create registry: %w", err)
	}
	if created == 0 {
		return domain.ErrRegistryExists
	}
	return nil
}

func (r *RedisAdapter) GetRegistry(ctx context.Context, registryID string) (*domain.Registry, error) {
	fields, err := r.client.HGetAll(ctx, registryKey(registryID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get registry: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	owner, err := domain.ParseAddress(fields["owner"])
	if err != nil {
		return nil, fmt.Errorf("decode owner: %w", err)
	}
	count, err := strconv.ParseUint(fields["count"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode count: %w", err)
	}
	createdMs, err := strconv.ParseInt(fields["created_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode created_at: %w", err)
	}

	return &domain.Registry{
		ID:          registryID,
		Owner:       owner,
		SellerCount: count,
		CreatedAt:   time.UnixMilli(createdMs).UTC(),
	}, nil
}

func (r *RedisAdapter) AppendSeller(ctx context.Context, registryID string, caller, seller domain.Address) (uint64, error) {
	if seller.IsZero() {
		return 0, fmt.Errorf("%w: seller must not be the zero address", domain.ErrInvalidAddress)
	}

	result, err := appendSellerScript.Run(ctx, r.client,
		[]string{registryKey(registryID), sellersKey(registryID)},
		caller.Hex(), seller.Hex(),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("append seller: %w", err)
	}

	switch result {
	case -1:
		return 0, domain.ErrRegistryNotFound
	case -2:
		// The script already rejected the caller; the owner only enriches the
		// error, so a failed lookup leaves it zero.
		owner, err := r.client.HGet(ctx, registryKey(registryID), "owner").Result()
		if err != nil {
			return 0, &domain.AuthorizationError{Caller: caller}
		}
		ownerAddr, err := domain.ParseAddress(owner)
		if err != nil {
			return 0, fmt.Errorf("decode owner of registry %s: %w", registryID, err)
		}
		return 0, &domain.AuthorizationError{Caller: caller, Owner: ownerAddr}
	}

	return uint64(result), nil
}

func (r *RedisAdapter) GetSeller(ctx context.Context, registryID string, index uint64) (domain.Address, error) {
	exists, err := r.client.Exists(ctx, registryKey(registryID)).Result()
	if err != nil {
		return domain.ZeroAddress, fmt.Errorf("check registry: %w", err)
	}
	if exists == 0 {
		return domain.ZeroAddress, domain.ErrRegistryNotFound
	}

	value, err := r.client.HGet(ctx, sellersKey(registryID), strconv.FormatUint(index, 10)).Result()
	if errors.Is(err, redis.Nil) {
		return domain.ZeroAddress, nil
	}
	if err != nil {
		return domain.ZeroAddress, fmt.Errorf("get seller: %w", err)
	}

	return domain.ParseAddress(value)
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, idempotencyKeyPrefix+key, 1, idempotencyKeyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) ReleaseIdempotency(ctx context.Context, key string) error {
	return r.client.Del(ctx, idempotencyKeyPrefix+key).Err()
}
