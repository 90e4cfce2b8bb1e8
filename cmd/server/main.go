package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gallery-service/config"
	"gallery-service/internal/api"
	"gallery-service/internal/auth"
	"gallery-service/internal/broker"
	"gallery-service/internal/payment"
	"gallery-service/internal/pricing"
	"gallery-service/internal/redisclient"
	"gallery-service/internal/service"
	"gallery-service/internal/storage"
	"gallery-service/internal/store"
	"gallery-service/internal/util"
	"gallery-service/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting gallery service")

	tp, err := util.InitTracer("gallery-service", cfg.Server.Env, cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	if cfg.Database.MigrateOnStart {
		migrateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := db.Migrate(migrateCtx)
		cancel()
		if err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		log.Println("Migrations applied")
	}

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis connected")

	var producer *broker.Producer
	if cfg.Kafka.Enabled {
		producer = broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents)
		defer producer.Close()
		log.Println("Kafka producer initialized")
	} else {
		logger.Warn("Kafka disabled, domain events will be dropped")
	}
	eventPublisher := broker.NewEventPublisher(producer)

	gateway := newPaymentGateway(cfg.Payment, logger)
	images := newImageStore(cfg.Storage, logger)

	rates := pricing.Rates{
		FreeShippingThreshold: cfg.Shipping.FreeShippingThreshold,
		OriginalShippingRate:  cfg.Shipping.OriginalShippingRate,
		PrintShippingRate:     cfg.Shipping.PrintShippingRate,
	}

	catalogService := service.NewCatalogService(db, redisClient, cfg.Redis.CacheTTL, images)
	orderService := service.NewOrderService(db, db, db, gateway, redisClient, eventPublisher, service.OrderOptions{
		Currency:         cfg.Business.Currency,
		Rates:            rates,
		MaxPrintQuantity: cfg.Business.MaxPrintQuantity,
		LockTTL:          cfg.Business.CheckoutLockTTL,
		CatalogCache:     redisClient,
	})
	adminService := service.NewAdminService(db, eventPublisher)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var notificationWorker *worker.NotificationWorker
	if cfg.Kafka.Enabled {
		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents, cfg.Kafka.ConsumerGroup)
		notificationWorker = worker.NewNotificationWorker(consumer, worker.NewLogNotifier(logger))
		go func() {
			if err := notificationWorker.Start(workerCtx); err != nil {
				log.Printf("Notification worker error: %v", err)
			}
		}()
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(orderService, catalogService, adminService, map[string]api.Pinger{
		"database": db,
		"redis":    redisClient,
	})
	handler.SetupRoutes(router, api.RouterOptions{
		Auth:        auth.NewJWTProvider(cfg.Auth.JWTSecret, cfg.Auth.AdminEmails),
		CORSOrigins: cfg.Server.CORSOrigins,
		RateLimit:   cfg.RateLimit,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: http.TimeoutHandler(router, time.Duration(cfg.Business.CheckoutTimeoutSec)*time.Second, `{"error":"request timed out"}`),
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	workerCancel()
	if notificationWorker != nil {
		if err := notificationWorker.Stop(); err != nil {
			log.Printf("Error stopping notification worker: %v", err)
		}
	}

	log.Println("Server exited")
}

func newPaymentGateway(cfg config.PaymentConfig, logger *zap.Logger) payment.Gateway {
	if cfg.Provider == "http" {
		logger.Info("Using HTTP payment processor", zap.String("base_url", cfg.BaseURL))
		return payment.NewClient(cfg.BaseURL, cfg.APIKey, time.Duration(cfg.TimeoutSecs)*time.Second)
	}
	logger.Warn("Using sandbox payment processor", zap.Bool("auto_confirm", cfg.SandboxAutoConfirm))
	return payment.NewSandbox(cfg.SandboxAutoConfirm)
}

func newImageStore(cfg config.StorageConfig, logger *zap.Logger) storage.ImageStore {
	if cfg.URL == "" {
		logger.Warn("Image storage not configured, artwork uploads are disabled")
		return nil
	}
	return storage.NewSupabaseStore(cfg.URL, cfg.APIKey, cfg.Bucket)
}
