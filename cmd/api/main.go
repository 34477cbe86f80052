package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dcabot/backend/internal/config"
	"dcabot/backend/internal/exchange"
	"dcabot/backend/internal/handler"
	"dcabot/backend/internal/metrics"
	"dcabot/backend/internal/middleware"
	"dcabot/backend/internal/repository"
	"dcabot/backend/internal/service"
	"dcabot/backend/pkg/jwt"
	"dcabot/backend/pkg/logger"
	"dcabot/backend/pkg/redis"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Load .env file (ignore error in production)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(logger.Options{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	log := logger.GetLogger()

	log.Info("Starting DCA bot engine...")
	log.Infof("Environment: %s", cfg.Server.Env)

	log.Info("Connecting to Redis...")
	redisClient, err := redis.New(redis.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Fatal("Failed to connect to Redis", err)
	}
	defer redisClient.Close()
	redis.InitKeys(cfg.Redis.KeyPrefix)
	log.Info("✓ Redis connected")

	if cfg.Metrics.Enabled {
		metrics.InitMetrics()
	}

	// Repositories
	botRepo := repository.NewBotRepository(redisClient)
	runRepo := repository.NewRunRepository(redisClient)
	conditionRepo := repository.NewConditionRepository(redisClient)
	tradeRepo := repository.NewTradeRepository(redisClient)
	logRepo := repository.NewLogRepository(redisClient)
	exchangeKeyRepo := repository.NewExchangeKeyRepository(redisClient)

	// Exchanges
	gateways := exchange.NewFactory(exchange.FactoryConfig{
		BinanceBaseURL:      cfg.Exchange.BinanceBaseURL,
		IndodaxAPIURL:       cfg.Exchange.IndodaxAPIURL,
		PaperQuoteBalance:   cfg.Exchange.PaperQuoteBalance,
		DisableInstrumented: !cfg.Metrics.Enabled,
	})

	// Services
	exchangeKeyService := service.NewExchangeKeyService(exchangeKeyRepo, gateways, cfg.Encryption.Key)
	events := service.NewEventService(logRepo, redisClient)
	coordinator := service.NewRunCoordinator(service.CoordinatorDeps{
		Bots:         botRepo,
		Runs:         runRepo,
		Conditions:   conditionRepo,
		Trades:       tradeRepo,
		Logs:         logRepo,
		Events:       events,
		Preflight:    service.NewPreflightChecker(exchangeKeyService, gateways),
		Creds:        exchangeKeyService,
		Gateways:     gateways,
		OrderTimeout: cfg.Exchange.OrderTimeout,
	})
	evaluator := service.NewConditionEvaluator(conditionRepo, botRepo, events, cfg.Engine.ConditionValidity, nil)
	triggers := service.NewTriggerService(botRepo, conditionRepo, logRepo, events, evaluator, coordinator, nil)
	queries := service.NewBotService(botRepo, runRepo, conditionRepo, tradeRepo, logRepo)

	sweeper := service.NewConditionSweeper(evaluator, redisClient, cfg.Engine.SweepInterval, cfg.Engine.SweepLockTTL)
	sweeper.Start()

	hubCtx, stopHub := context.WithCancel(context.Background())
	hub := service.NewEventHub(redisClient, cfg.CORS.AllowedOrigins)
	go func() {
		if err := hub.Run(hubCtx); err != nil {
			log.Error("Event hub stopped", err)
		}
	}()

	jwtManager := jwt.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpire)

	if cfg.Server.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(middleware.Recovery(log))
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log))
	router.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	if cfg.Metrics.Enabled {
		router.Use(middleware.Metrics())
		router.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := redisClient.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "Redis connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"redis":  "connected",
		})
	})

	handler.RegisterRoutes(router, handler.Handlers{
		Bots:         handler.NewBotHandler(coordinator, queries, cfg.Server.PublicURL),
		ExchangeKeys: handler.NewExchangeKeyHandler(exchangeKeyService),
		Webhooks:     handler.NewWebhookHandler(triggers),
		Events:       hub,
	},
		middleware.AuthMiddleware(jwtManager),
		middleware.RateLimit(redisClient, cfg.RateLimit.RequestsPerMinute),
		middleware.WebhookRateLimit(redisClient, cfg.RateLimit.WebhookRequestsPerMinute),
	)

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infof("Server starting on %s", cfg.Server.Address())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", err)
		}
	}()

	log.Info("✓ Server started successfully")

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")
	sweeper.Stop()
	stopHub()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", err)
	}

	log.Info("Server exited")
}
