package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"food-delivery/config"
	"food-delivery/internal/api"
	"food-delivery/internal/broker"
	"food-delivery/internal/history"
	"food-delivery/internal/redisclient"
	"food-delivery/internal/service"
	"food-delivery/internal/store"
	"food-delivery/internal/util"
	"food-delivery/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting food delivery service",
		zap.String("env", cfg.Server.Env),
		zap.String("data_dir", cfg.Store.DataDir),
		zap.String("lock_backend", cfg.Store.LockBackend))

	if cfg.Observ.TracingEnabled {
		tp, err := util.InitTracer("food-delivery", cfg.Observ.JaegerEndpoint)
		if err != nil {
			logger.Fatal("Failed to initialize tracer", zap.Error(err))
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(ctx); err != nil {
				logger.Error("Error shutting down tracer", zap.Error(err))
			}
		}()
	}

	var locker store.Locker
	if cfg.Store.LockBackend == config.LockBackendRedis {
		redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		logger.Info("Redis connected", zap.String("addr", cfg.Redis.Addr))

		locker = redisclient.NewLocker(redisClient, cfg.Store.LockKey, cfg.Store.LockTTL)
	}

	dataStore, err := store.NewStore(cfg.Store.DataDir, locker)
	if err != nil {
		logger.Fatal("Failed to open data store", zap.Error(err))
	}
	defer dataStore.Close()

	var publisher service.EventPublisher = service.NoopPublisher{}
	if cfg.Kafka.Enabled {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
		defer producer.Close()
		publisher = broker.NewEventPublisher(producer)
		logger.Info("Kafka producer initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
	}

	var historyStore *history.Store
	if cfg.HistoryEnabled() {
		historyStore, err = history.NewStore(cfg.Database.URL)
		if err != nil {
			logger.Fatal("Failed to connect to history database", zap.Error(err))
		}
		defer historyStore.Close()

		schemaCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = historyStore.EnsureSchema(schemaCtx)
		cancel()
		if err != nil {
			logger.Fatal("Failed to prepare history schema", zap.Error(err))
		}
		logger.Info("History database connected")
	}

	services := api.Services{
		Orders:    service.NewOrderService(dataStore, publisher),
		Agents:    service.NewAgentService(dataStore),
		Catalog:   service.NewCatalogService(dataStore),
		Customers: service.NewCustomerService(dataStore),
	}
	if historyStore != nil {
		services.History = historyStore
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(services)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	if historyStore != nil && cfg.Kafka.Enabled {
		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder, cfg.Kafka.ConsumerGroup)
		historyWorker := worker.NewHistoryWorker(consumer, historyStore)

		g.Go(func() error {
			if err := historyWorker.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("history worker: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			return historyWorker.Stop()
		})
	}

	g.Go(func() error {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
	}

	logger.Info("Server exited")
}
