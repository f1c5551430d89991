package main

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/okraiev/flavorshop/internal/adapter/notify"
	"github.com/okraiev/flavorshop/internal/adapter/storage"
	"github.com/okraiev/flavorshop/internal/core/domain"
	"github.com/okraiev/flavorshop/internal/core/service"
)

const (
	redisAddr     = "localhost:6379"
	initialStock  = 20
	totalRequests = 50
	queueSize     = 100
)

// Hammers one item with concurrent single-unit checkouts against a Redis
// ledger and verifies exactly initialStock of them win.
func main() {
	ctx := context.Background()

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer rdb.Close()

	catalog := domain.DefaultCatalog()
	itemID := catalog.Items()[0].ID

	// Clear previous run data.
	rdb.Del(ctx, "stock:"+itemID.String())
	keys, _ := rdb.Keys(ctx, "cart:stress-user-*").Result()
	for _, k := range keys {
		rdb.Del(ctx, k)
	}

	stock := storage.NewRedisAdapter(rdb)
	if err := stock.Set(ctx, itemID, initialStock); err != nil {
		log.Fatalf("failed to set stock: %v", err)
	}

	carts := storage.NewRedisCartAdapter(rdb)
	shop := service.NewShopService(catalog, stock, carts, notify.NewLogNotifier(zap.NewNop()), zap.NewNop(), queueSize)
	defer shop.Close()

	// Drain the order queue in background.
	go func() {
		for range shop.OrderQueue() {
		}
	}()

	var successCount atomic.Int32
	var failCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(userNum int) {
			defer wg.Done()

			userID := fmt.Sprintf("stress-user-%d", userNum)
			if _, err := carts.Change(ctx, userID, itemID, 1); err != nil {
				failCount.Add(1)
				return
			}
			_, err := shop.Checkout(ctx, domain.User{ID: userID, DisplayName: userID})
			if err == nil {
				successCount.Add(1)
			} else {
				failCount.Add(1)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	success := successCount.Load()
	fail := failCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Failed:           %d\n", fail)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if success == int32(initialStock) && fail == int32(totalRequests-initialStock) {
		fmt.Printf("PASS: Exactly %d checkouts succeeded, %d failed\n", initialStock, totalRequests-initialStock)
	} else {
		fmt.Printf("FAIL: Expected %d success/%d fail, got %d/%d\n",
			initialStock, totalRequests-initialStock, success, fail)
	}

	finalStock, _ := stock.Get(ctx, itemID)
	fmt.Printf("Final Redis Stock: %d\n", finalStock)

	if finalStock == 0 {
		fmt.Println("PASS: Stock depleted to 0")
	} else {
		fmt.Printf("FAIL: Expected stock 0, got %d\n", finalStock)
	}
}
