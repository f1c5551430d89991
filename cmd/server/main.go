package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/okraiev/flavorshop/config"
	"github.com/okraiev/flavorshop/internal/adapter/handler"
	"github.com/okraiev/flavorshop/internal/adapter/history"
	"github.com/okraiev/flavorshop/internal/adapter/notify"
	"github.com/okraiev/flavorshop/internal/adapter/storage"
	"github.com/okraiev/flavorshop/internal/core/domain"
	"github.com/okraiev/flavorshop/internal/core/service"
	"github.com/okraiev/flavorshop/internal/logging"
	"github.com/okraiev/flavorshop/internal/port"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(".")
	if err != nil {
		panic(err)
	}

	logger := logging.MustNewLogger(cfg.AppName, cfg.Env)
	defer logger.Sync()

	catalog := domain.DefaultCatalog()

	// Storage backend selection. The ledger contract is identical across all
	// three; only durability characteristics differ.
	var (
		stock    port.StockRepository
		carts    port.CartRepository
		orderLog port.OrderLog
		db       *sql.DB
		rdb      *redis.Client
	)

	switch cfg.StorageBackend {
	case "mysql":
		db, err = sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			logger.Fatal("open mysql", zap.Error(err))
		}
		db.SetMaxOpenConns(50)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.PingContext(ctx); err != nil {
			logger.Fatal("ping mysql", zap.Error(err))
		}
		logger.Info("connected to mysql")
		stock = storage.NewMySQLAdapter(db)
		carts = storage.NewMemoryCartAdapter()
		orderLog = history.NewMySQLOrderLog(db)

	case "redis":
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, PoolSize: 100})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal("ping redis", zap.Error(err))
		}
		logger.Info("connected to redis")
		stock = storage.NewRedisAdapter(rdb)
		carts = storage.NewRedisCartAdapter(rdb)
		orderLog = history.NewMemoryOrderLog()

	case "file":
		fileStock, err := storage.NewFileAdapter(cfg.StockFile)
		if err != nil {
			logger.Fatal("open stock file", zap.Error(err))
		}
		stock = fileStock
		carts = storage.NewMemoryCartAdapter()
		orderLog = history.NewMemoryOrderLog()

	default:
		logger.Fatal("unknown storage backend", zap.String("backend", cfg.StorageBackend))
	}

	var notifier port.Notifier
	if cfg.AMQPURL != "" {
		amqpNotifier, err := notify.NewAMQPNotifier(cfg.AMQPURL, cfg.OrderExchange, cfg.OrderRoutingKey)
		if err != nil {
			logger.Fatal("connect amqp", zap.Error(err))
		}
		defer amqpNotifier.Close()
		notifier = amqpNotifier
		logger.Info("operator notifications via amqp",
			zap.String("exchange", cfg.OrderExchange),
			zap.String("routing_key", cfg.OrderRoutingKey))
	} else {
		notifier = notify.NewLogNotifier(logger)
		logger.Info("operator notifications via log")
	}

	shop := service.NewShopService(catalog, stock, carts, notifier, logger, cfg.QueueSize)

	if err := shop.SeedDefaults(ctx, cfg.SeedStock); err != nil {
		logger.Fatal("seed stock", zap.Error(err))
	}

	// Order-log workers drain successful checkouts.
	var wg sync.WaitGroup
	for i := 0; i < cfg.WorkerCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			workerLoop(id, shop.OrderQueue(), orderLog, logger)
		}(i)
	}
	logger.Info("started order-log workers", zap.Int("count", cfg.WorkerCount))

	mux := http.NewServeMux()
	handler.NewHTTPHandler(shop, logger).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("http server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	logger.Info("http server stopped")

	shop.Close()
	wg.Wait()
	logger.Info("workers stopped")

	if rdb != nil {
		rdb.Close()
	}
	if db != nil {
		db.Close()
	}
	logger.Info("connections closed")
}

func workerLoop(id int, queue <-chan domain.Order, orderLog port.OrderLog, logger *zap.Logger) {
	for order := range queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)

		if err := orderLog.Record(ctx, order); err != nil {
			logger.Error("record order",
				zap.Int("worker", id),
				zap.String("order_id", order.ID),
				zap.Error(err))
		} else {
			logger.Info("order recorded",
				zap.Int("worker", id),
				zap.String("order_id", order.ID))
		}

		cancel()
	}
}
