package tests

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/okraiev/flavorshop/internal/adapter/history"
	"github.com/okraiev/flavorshop/internal/adapter/notify"
	"github.com/okraiev/flavorshop/internal/adapter/storage"
	"github.com/okraiev/flavorshop/internal/core/domain"
	"github.com/okraiev/flavorshop/internal/core/service"
	"github.com/okraiev/flavorshop/internal/port"
)

type testEnv struct {
	redis   *redis.Client
	mysql   *sql.DB
	stock   *storage.RedisAdapter
	carts   *storage.RedisCartAdapter
	log     *history.MySQLOrderLog
	cleanup func()
}

func setupTestEnv(t *testing.T) *testEnv {
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		mysqlDSN = "root:root@tcp(localhost:3306)/flavorshop?parseTime=true"
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	db, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}

	return &testEnv{
		redis: rdb,
		mysql: db,
		stock: storage.NewRedisAdapter(rdb),
		carts: storage.NewRedisCartAdapter(rdb),
		log:   history.NewMySQLOrderLog(db),
		cleanup: func() {
			rdb.Close()
			db.Close()
		},
	}
}

func workerLoop(queue <-chan domain.Order, orderLog port.OrderLog) {
	for order := range queue {
		orderLog.Record(context.Background(), order)
	}
}

func TestIntegration_ConcurrentCheckoutFlow(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	catalog := domain.DefaultCatalog()
	item := catalog.Items()[0]
	initialStock := 10
	totalBuyers := 20

	// Setup: clean slate for the exercised item and users.
	env.redis.Del(ctx, "stock:"+item.ID.String())
	for i := 0; i < totalBuyers; i++ {
		env.redis.Del(ctx, fmt.Sprintf("cart:it-user-%d", i))
	}
	env.mysql.ExecContext(ctx, `DELETE FROM order_lines WHERE item_id = ?`, item.ID.String())
	env.mysql.ExecContext(ctx, `DELETE FROM orders WHERE user_id LIKE 'it-user-%'`)

	env.stock.Set(ctx, item.ID, initialStock)

	logger := zap.NewNop()
	shop := service.NewShopService(catalog, env.stock, env.carts, notify.NewLogNotifier(logger), logger, 100)

	var wg sync.WaitGroup
	workerCount := 3
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			workerLoop(shop.OrderQueue(), env.log)
		}()
	}

	var successCount atomic.Int32
	var buyerWg sync.WaitGroup
	for i := 0; i < totalBuyers; i++ {
		buyerWg.Add(1)
		go func(n int) {
			defer buyerWg.Done()
			userID := fmt.Sprintf("it-user-%d", n)
			if _, err := env.carts.Change(ctx, userID, item.ID, 1); err != nil {
				t.Errorf("cart change: %v", err)
				return
			}
			_, err := shop.Checkout(ctx, domain.User{ID: userID, DisplayName: userID})
			if err == nil {
				successCount.Add(1)
			}
		}(i)
	}
	buyerWg.Wait()

	shop.Close()
	wg.Wait()

	if successCount.Load() != int32(initialStock) {
		t.Errorf("expected %d successful checkouts, got %d", initialStock, successCount.Load())
	}

	finalStock, _ := env.stock.Get(ctx, item.ID)
	if finalStock != 0 {
		t.Errorf("expected stock 0, got %d", finalStock)
	}

	var orderCount int
	env.mysql.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders WHERE user_id LIKE 'it-user-%'`).Scan(&orderCount)
	if orderCount != initialStock {
		t.Errorf("expected %d orders in MySQL, got %d", initialStock, orderCount)
	}

	// Winning carts must be cleared; losing carts keep their line.
	clearedCarts := 0
	for i := 0; i < totalBuyers; i++ {
		lines, err := env.carts.Snapshot(ctx, fmt.Sprintf("it-user-%d", i))
		if err != nil {
			t.Fatalf("snapshot: %v", err)
		}
		if len(lines) == 0 {
			clearedCarts++
		}
	}
	if clearedCarts != initialStock {
		t.Errorf("expected %d cleared carts, got %d", initialStock, clearedCarts)
	}

	// Cleanup
	env.mysql.ExecContext(ctx, `DELETE FROM order_lines WHERE item_id = ?`, item.ID.String())
	env.mysql.ExecContext(ctx, `DELETE FROM orders WHERE user_id LIKE 'it-user-%'`)
}

func TestIntegration_AllOrNothingAcrossBackends(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	catalog := domain.DefaultCatalog()
	itemA := catalog.Items()[0]
	itemB := catalog.Items()[1]

	env.redis.Del(ctx, "stock:"+itemA.ID.String(), "stock:"+itemB.ID.String(), "cart:it-mixed-user")
	env.stock.Set(ctx, itemA.ID, 10)
	env.stock.Set(ctx, itemB.ID, 1)

	logger := zap.NewNop()
	shop := service.NewShopService(catalog, env.stock, env.carts, notify.NewLogNotifier(logger), logger, 100)
	defer shop.Close()
	go func() {
		for range shop.OrderQueue() {
		}
	}()

	env.carts.Change(ctx, "it-mixed-user", itemA.ID, 2)
	env.carts.Change(ctx, "it-mixed-user", itemB.ID, 3)

	if _, err := shop.Checkout(ctx, domain.User{ID: "it-mixed-user"}); err == nil {
		t.Fatal("expected shortage error")
	}

	if qty, _ := env.stock.Get(ctx, itemA.ID); qty != 10 {
		t.Errorf("expected stock untouched at 10, got %d", qty)
	}
	lines, _ := env.carts.Snapshot(ctx, "it-mixed-user")
	if len(lines) != 2 {
		t.Errorf("expected cart untouched with 2 lines, got %d", len(lines))
	}
}
