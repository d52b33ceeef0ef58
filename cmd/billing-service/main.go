package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dhoini/Billing-service/internal/api/rest"
	"github.com/Dhoini/Billing-service/internal/billing"
	"github.com/Dhoini/Billing-service/internal/config"
	"github.com/Dhoini/Billing-service/internal/kafka"
	"github.com/Dhoini/Billing-service/internal/metrics"
	"github.com/Dhoini/Billing-service/internal/repository"
	"github.com/Dhoini/Billing-service/internal/service"
	"github.com/Dhoini/Billing-service/internal/stripe"
	"github.com/Dhoini/Billing-service/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := initLogger()

	log.Infow("Billing service starting up...")

	// Загружаем конфигурацию
	cfg, err := config.LoadConfig(".env")
	if err != nil {
		log.Fatalw("Failed to load configuration", "error", err)
	}
	if cfg.Auth.JWTSecret == "" {
		log.Warnw("JWT Secret is not set, user-facing billing endpoints will reject all requests")
	}
	if cfg.Stripe.APIKey == "" {
		log.Warnw("Stripe API Key is not set!")
	}
	if cfg.Stripe.WebhookSecret == "" {
		log.Warnw("Stripe webhook secret is not set, inbound events will be rejected")
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Подключаемся к базе данных
	pool, err := pgxpool.New(ctx, cfg.Database.DSN)
	if err != nil {
		log.Fatalw("Failed to create database pool", "error", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalw("Failed to connect to database", "error", err)
	}
	log.Infow("Database connection established")

	// Prometheus registry и метрики биллинга
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	billingMetrics := metrics.NewBillingMetrics(registry)

	// Инициализируем Redis кеш
	redisCache, err := repository.NewRedisCacheRepository(
		cfg.Redis.Addr,
		cfg.Redis.Password,
		cfg.Redis.DB,
		log,
	)
	if err != nil {
		// Не фатально, но предупреждаем
		log.Warnw("Failed to initialize Redis cache, continuing without caching", "error", err)
	} else {
		log.Infow("Redis cache initialized successfully")
		defer func() {
			if err := redisCache.Close(); err != nil {
				log.Errorw("Error closing Redis connection", "error", err)
			}
		}()
	}

	// Репозитории
	baseSubsRepo := repository.NewPostgresSubscriptionRepository(pool, log)
	invoiceRepo := repository.NewPostgresInvoiceRepository(pool, log)
	ledgerRepo := repository.NewPostgresEventLedgerRepository(pool, log)
	userRepo := repository.NewPostgresUserRepository(pool, log)
	txManager := repository.NewPgxTxManager(pool, log)

	var subsRepo repository.SubscriptionRepository = baseSubsRepo
	var cacheInvalidator repository.SubscriptionCacheInvalidator
	if redisCache != nil {
		cached := repository.NewCachedSubscriptionRepository(baseSubsRepo, redisCache, log)
		subsRepo = cached
		cacheInvalidator = cached
		log.Infow("Using cached subscription repository")
	} else {
		log.Infow("Using non-cached subscription repository")
	}

	// Инициализируем клиент Stripe
	stripeClient := stripe.NewStripeClient(cfg.Stripe.APIKey, log)
	webhookVerifier := stripe.NewWebhookVerifier(cfg.Stripe.WebhookSecret, log)

	// Инициализируем Kafka Producer
	var producer kafka.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		producer = kafka.NewProducer(cfg.Kafka.Brokers, log)
		log.Infow("Kafka producer initialized", "brokers", cfg.Kafka.Brokers)
		defer func() {
			if err := producer.Close(); err != nil {
				log.Errorw("Error closing Kafka producer", "error", err)
			}
		}()
	} else {
		producer = kafka.NoOpProducer{}
		log.Warnw("Kafka brokers are not configured, continuing without event publishing")
	}

	// Резолвер тарифов из сконфигурированных цен
	plans := billing.NewPlanResolver(cfg.Stripe.PriceIDPro, cfg.Stripe.PriceIDPremium, billingMetrics, log)

	// Service layer
	subscriptionService := service.NewSubscriptionService(userRepo, subsRepo, stripeClient, plans, billingMetrics, log)
	webhookService := service.NewWebhookService(service.WebhookServiceDeps{
		Verifier: webhookVerifier,
		Tx:       txManager,
		// Вебхуки пишут напрямую в БД; кеш сбрасывается после коммита
		Subs:     baseSubsRepo,
		Invoices: invoiceRepo,
		Ledger:   ledgerRepo,
		Plans:    plans,
		Cache:    cacheInvalidator,
		Producer: producer,
		Metrics:  billingMetrics,
		Log:      log,
	})

	// HTTP сервер
	router := rest.SetupRouter(subscriptionService, webhookService, registry, cfg, log)
	server := rest.NewServer(router, cfg, log)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatalw("Failed to start HTTP server", "error", err)
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Infow("Shutdown signal received")

	// Даем 10 секунд на завершение текущих запросов
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("HTTP server shutdown error", "error", err)
	} else {
		log.Infow("HTTP server gracefully stopped")
	}

	log.Infow("Cleanup finished. Goodbye!")
}

// initLogger инициализирует новый логгер
func initLogger() *logger.Logger {
	logLevel := logger.INFO
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = logger.DEBUG
	}
	return logger.New(logLevel)
}
