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

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hrishabh6/algocrack/internal/config"
	handler "github.com/hrishabh6/algocrack/internal/delivery/http"
	"github.com/hrishabh6/algocrack/internal/publisher"
	"github.com/hrishabh6/algocrack/internal/repository/postgres"
	redisrepo "github.com/hrishabh6/algocrack/internal/repository/redis"
	"github.com/hrishabh6/algocrack/internal/usecase"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger, err := cfg.NewLogger()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting algocrack API server")

	// Set Gin mode
	gin.SetMode(cfg.Server.GinMode)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to PostgreSQL
	dbPool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer dbPool.Close()

	if err := dbPool.Ping(ctx); err != nil {
		logger.Fatal("Failed to ping PostgreSQL", zap.Error(err))
	}
	logger.Info("Connected to PostgreSQL")

	// Connect to Redis
	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		logger.Fatal("Failed to parse Redis URL", zap.Error(err))
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()

	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("Failed to ping Redis", zap.Error(err))
	}
	logger.Info("Connected to Redis")

	// Initialize RabbitMQ publisher
	pub, err := publisher.NewRabbitMQPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue, logger)
	if err != nil {
		logger.Fatal("Failed to initialize RabbitMQ publisher", zap.Error(err))
	}
	defer pub.Close()
	logger.Info("Connected to RabbitMQ", zap.String("queue", cfg.RabbitMQ.Queue))

	// Initialize repositories
	subRepo := postgres.NewPostgresSubmissionRepository(dbPool)
	questionRepo := postgres.NewPostgresQuestionRepository(dbPool)
	statsRepo := postgres.NewPostgresStatisticsRepository(dbPool)
	events := redisrepo.NewRedisStatusEvents(rdb)

	// Initialize use cases
	submitUC := usecase.NewSubmitCodeUsecase(subRepo, questionRepo, pub, logger)
	getSubUC := usecase.NewGetSubmissionUsecase(subRepo, logger)
	getStatsUC := usecase.NewGetQuestionStatisticsUsecase(questionRepo, statsRepo, logger)

	// Initialize router
	router := handler.NewRouter(ctx, &handler.RouterDeps{
		SubmitUC:        submitUC,
		GetSubUC:        getSubUC,
		GetStatsUC:      getStatsUC,
		Events:          events,
		Logger:          logger,
		RateLimitPerMin: cfg.Server.RateLimit,
		HealthChecks: map[string]handler.HealthCheck{
			"postgres": dbPool.Ping,
			"redis": func(ctx context.Context) error {
				return rdb.Ping(ctx).Err()
			},
		},
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("API server listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down API server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("API server stopped")
}
