package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/EmmyAnieDev/inventory-management-system/internal/adapter/handler"
	"github.com/EmmyAnieDev/inventory-management-system/internal/adapter/notify"
	"github.com/EmmyAnieDev/inventory-management-system/internal/adapter/queue"
	"github.com/EmmyAnieDev/inventory-management-system/internal/adapter/storage"
	"github.com/EmmyAnieDev/inventory-management-system/internal/config"
	"github.com/EmmyAnieDev/inventory-management-system/internal/core/service"
	"github.com/EmmyAnieDev/inventory-management-system/internal/metrics"
	"github.com/EmmyAnieDev/inventory-management-system/internal/port"
)

const (
	recalcPollInterval    = 250 * time.Millisecond
	orderRecoveryInterval = 30 * time.Second
)

func main() {
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize MySQL
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		logger.Fatal("failed to connect mysql", zap.Error(err))
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		logger.Fatal("failed to ping mysql", zap.Error(err))
	}
	logger.Info("connected to mysql")

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect redis", zap.Error(err))
	}
	logger.Info("connected to redis")

	// Initialize adapters
	stockStore := storage.NewMySQLStockStore(db)
	orderLedger := storage.NewMySQLOrderLedger(db)
	jobQueue := queue.NewRedisJobQueue(rdb)

	var notifier port.Notifier
	var kafkaNotifier *notify.KafkaNotifier
	if cfg.KafkaBrokers != "" {
		kafkaNotifier = notify.NewKafkaNotifier(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		notifier = kafkaNotifier
		logger.Info("publishing events to kafka",
			zap.String("brokers", cfg.KafkaBrokers),
			zap.String("topic", cfg.KafkaTopic))
	} else {
		notifier = notify.NewLogNotifier(logger)
		logger.Info("no kafka brokers configured, events go to the log")
	}

	reg := metrics.NewRegistry()

	// Initialize services
	settlement := service.NewSettlementService(stockStore, orderLedger, jobQueue, notifier, reg, logger, cfg.OrderQueueSize)
	settlement.StartWorkers(cfg.SettlementWorkers)
	settlement.StartRecovery(orderRecoveryInterval)
	logger.Info("started settlement workers", zap.Int("count", cfg.SettlementWorkers))

	recalc := service.NewRecalcService(stockStore, jobQueue, notifier, reg, logger, recalcPollInterval)
	recalc.StartWorkers(ctx, cfg.RecalcWorkers)
	logger.Info("started recalculation workers", zap.Int("count", cfg.RecalcWorkers))

	scheduler := service.NewScheduler(jobQueue, cfg.SweepInterval, reg, logger)
	go scheduler.Run(ctx)
	logger.Info("scheduler running", zap.Duration("interval", cfg.SweepInterval))

	// Initialize HTTP server
	httpHandler := handler.NewHTTPHandler(settlement, recalc, stockStore, orderLedger, reg.Handler(), cfg.LowStockThreshold)
	httpServer := &http.Server{
		Addr:    cfg.HTTPPort,
		Handler: httpHandler.Router(),
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPPort))
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	logger.Info("HTTP server stopped")

	// Drain in-flight settlements before stopping consumers
	settlement.Close()
	logger.Info("settlement workers stopped")

	cancel()
	recalc.Wait()
	logger.Info("recalculation workers stopped")

	if kafkaNotifier != nil {
		kafkaNotifier.Close()
	}
	rdb.Close()
	db.Close()
	logger.Info("connections closed")
}
