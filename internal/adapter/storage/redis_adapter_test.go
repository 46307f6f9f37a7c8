package storage

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/reseller/internal/core/domain"
)

func getRedisClient(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	return client
}

func TestRedisAdapter_Contract(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	testRepositoryContract(t, NewRedisAdapter(client))
}

func TestRedisAdapter_StoresLowercaseHex(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)
	id := newTestRegistry(t, adapter)

	if _, err := adapter.AppendSeller(ctx, id, ownerAddr, sellerOne); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Verify
	raw, _ := client.HGet(ctx, "registry:"+id+":sellers", "1").Result()
	if raw != sellerOne.Hex() {
		t.Errorf("expected %s, got %s", sellerOne.Hex(), raw)
	}
	owner, _ := client.HGet(ctx, "registry:"+id, "owner").Result()
	if owner != ownerAddr.Hex() {
		t.Errorf("expected owner %s, got %s", ownerAddr.Hex(), owner)
	}
}

func TestRedisAdapter_NonOwnerCarriesOwner(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)
	id := newTestRegistry(t, adapter)

	_, err := adapter.AppendSeller(ctx, id, outsiderAdr, sellerOne)
	var authErr *domain.AuthorizationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthorizationError, got %v", err)
	}
	if authErr.Owner != ownerAddr {
		t.Errorf("expected owner %s, got %s", ownerAddr, authErr.Owner)
	}
}

func TestRedisAdapter_CorruptOwnerIsReported(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)
	id := newTestRegistry(t, adapter)

	client.HSet(ctx, "registry:"+id, "owner", "not-an-address")

	_, err := adapter.AppendSeller(ctx, id, ownerAddr, sellerOne)
	if !errors.Is(err, domain.ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress, got %v", err)
	}
	count, _ := client.HGet(ctx, "registry:"+id, "count").Result()
	if count != "0" {
		t.Errorf("expected no index consumed, count=%s", count)
	}
}

func TestRedisAdapter_CreatedAtRoundTrip(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)
	id := newTestRegistry(t, adapter)

	reg, err := adapter.GetRegistry(ctx, id)
	if err != nil {
		t.Fatalf("GetRegistry failed: %v", err)
	}
	if time.Since(reg.CreatedAt) > time.Minute {
		t.Errorf("unexpected created_at %v", reg.CreatedAt)
	}
}

func TestSetIdempotency_Success(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	// Setup
	client.Del(ctx, "idempotency:test-idem-key")

	// First call should succeed
	ok, err := adapter.SetIdempotency(ctx, "test-idem-key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected first call to succeed")
	}

	// Second call should fail (key exists)
	ok, err = adapter.SetIdempotency(ctx, "test-idem-key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected second call to fail")
	}

	// Released key can be claimed again
	if err := adapter.ReleaseIdempotency(ctx, "test-idem-key"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ok, _ = adapter.SetIdempotency(ctx, "test-idem-key")
	if !ok {
		t.Error("expected claim after release to succeed")
	}
}

func TestSetIdempotency_Concurrent(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	// Setup
	client.Del(ctx, "idempotency:concurrent-idem-key")

	var successCount atomic.Int32
	var wg sync.WaitGroup
	concurrency := 100

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := adapter.SetIdempotency(ctx, "concurrent-idem-key")
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if ok {
				successCount.Add(1)
			}
		}()
	}

	wg.Wait()

	// Only one should succeed
	if successCount.Load() != 1 {
		t.Errorf("expected exactly 1 success, got %d", successCount.Load())
	}
}
