package main

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/rl1809/reseller/internal/adapter/storage"
	"github.com/rl1809/reseller/internal/core/domain"
	"github.com/rl1809/reseller/internal/core/service"
)

const (
	redisAddr     = "localhost:6379"
	totalRequests = 50
	outsiderCalls = 10
	queueSize     = 100
)

var (
	owner    = domain.MustParseAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	seller   = domain.MustParseAddress("0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359")
	outsider = domain.MustParseAddress("0xD1220A0cf47c7B9Be7A2E6BA89F429762e7b9aDb")
)

func main() {
	ctx := context.Background()

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer rdb.Close()

	// Initialize adapter and service
	redisAdapter := storage.NewRedisAdapter(rdb)
	registryService := service.NewRegistryService(redisAdapter, redisAdapter, queueSize)
	defer registryService.Close()

	// Drain the event queue in background
	go func() {
		for range registryService.Events() {
		}
	}()

	reg, err := registryService.Deploy(ctx, owner)
	if err != nil {
		log.Fatalf("failed to deploy registry: %v", err)
	}

	// Counters
	var successCount atomic.Int32
	var rejectedCount atomic.Int32
	indexes := make([]atomic.Int32, totalRequests+1)

	// Spawn concurrent requests
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			idx, err := registryService.RegisterSeller(ctx, uuid.NewString(), reg.ID, owner, seller)
			if err != nil {
				log.Printf("owner registration failed: %v", err)
				return
			}
			successCount.Add(1)
			if idx >= 1 && idx <= totalRequests {
				indexes[idx].Add(1)
			}
		}()
	}

	for i := 0; i < outsiderCalls; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			if _, err := registryService.RegisterSeller(ctx, uuid.NewString(), reg.ID, outsider, seller); err != nil {
				rejectedCount.Add(1)
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	// Results
	success := successCount.Load()
	rejected := rejectedCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Registry:         %s\n", reg.ID)
	fmt.Printf("Owner Requests:   %d\n", totalRequests)
	fmt.Printf("Outsider Calls:   %d\n", outsiderCalls)
	fmt.Printf("Registered:       %d\n", success)
	fmt.Printf("Rejected:         %d\n", rejected)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	// Assertions
	if success == totalRequests && rejected == outsiderCalls {
		fmt.Printf("PASS: %d registered, %d outsiders rejected\n", success, rejected)
	} else {
		fmt.Printf("FAIL: Expected %d/%d, got %d/%d\n", totalRequests, outsiderCalls, success, rejected)
	}

	contiguous := true
	for i := 1; i <= totalRequests; i++ {
		if indexes[i].Load() != 1 {
			contiguous = false
			fmt.Printf("FAIL: index %d assigned %d times\n", i, indexes[i].Load())
		}
	}
	if contiguous {
		fmt.Printf("PASS: indexes 1..%d assigned exactly once\n", totalRequests)
	}

	// Verify final count in Redis
	meta, err := registryService.Registry(ctx, reg.ID)
	if err != nil {
		log.Fatalf("failed to read registry: %v", err)
	}
	if meta.SellerCount == totalRequests {
		fmt.Printf("PASS: seller count is %d\n", meta.SellerCount)
	} else {
		fmt.Printf("FAIL: Expected seller count %d, got %d\n", totalRequests, meta.SellerCount)
	}
}
