package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hrishabh6/algocrack/internal/config"
	amqpdelivery "github.com/hrishabh6/algocrack/internal/delivery/amqp"
	"github.com/hrishabh6/algocrack/internal/domain"
	"github.com/hrishabh6/algocrack/internal/executor"
	"github.com/hrishabh6/algocrack/internal/judge"
	"github.com/hrishabh6/algocrack/internal/pool"
	"github.com/hrishabh6/algocrack/internal/repository/postgres"
	redisrepo "github.com/hrishabh6/algocrack/internal/repository/redis"
	"github.com/hrishabh6/algocrack/internal/stats"
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
	logger = logger.With(zap.String("worker_id", cfg.Worker.ID))

	logger.Info("Starting algocrack judge worker")

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
	redisOpts, err := goredis.ParseURL(cfg.Redis.URL)
	if err != nil {
		logger.Fatal("Invalid Redis URL", zap.Error(err))
	}
	redisClient := goredis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Connected to Redis")

	// Initialize repositories
	subRepo := postgres.NewPostgresSubmissionRepository(dbPool)
	questionRepo := postgres.NewPostgresQuestionRepository(dbPool)
	statsRepo := postgres.NewPostgresStatisticsRepository(dbPool)
	metricsRepo := postgres.NewPostgresMetricsRepository(dbPool)
	idempotencyStore := redisrepo.NewRedisIdempotencyStore(redisClient, cfg.Worker.LockTTL)
	events := redisrepo.NewRedisStatusEvents(redisClient)

	// Initialize sandbox executor
	languages, err := executor.WithOverrides(executor.DefaultLanguages(), cfg.Sandbox.CompileCmd, cfg.Sandbox.RunCmd)
	if err != nil {
		logger.Fatal("Invalid language command override", zap.Error(err))
	}
	sandboxExec := executor.NewSandboxExecutor(
		cfg.Sandbox.NsjailPath,
		cfg.Sandbox.ConfigDir,
		cfg.Sandbox.CompileCacheDir,
		languages,
		logger,
	)

	// Initialize judging
	aggregator := stats.NewAggregator(statsRepo, cfg.Judge.StatsRetryBaseDelay, cfg.Judge.StatsRetryMaxDelay, logger)
	coordinator := judge.NewCoordinator(subRepo, metricsRepo, events, sandboxExec, aggregator, judge.Config{
		WorkerID:           cfg.Worker.ID,
		MaxInfraRetries:    cfg.Judge.MaxInfraRetries,
		RetryBaseDelay:     cfg.Judge.RetryBaseDelay,
		RetryMaxDelay:      cfg.Judge.RetryMaxDelay,
		RunParallelism:     cfg.Judge.RunParallelism,
		DefaultTimeLimitMs: cfg.Sandbox.DefaultTimeLimitMs,
		MemoryLimitKB:      cfg.Sandbox.DefaultMemoryLimitKB,
	}, logger)

	// Initialize use case
	processUC := usecase.NewProcessSubmissionUsecase(subRepo, questionRepo, idempotencyStore, coordinator, aggregator, cfg.Worker.ID, logger)
	if hb := cfg.Worker.LockTTL / 3; hb > 0 {
		processUC.WithLockHeartbeat(hb)
	}

	// Unbuffered: a delivery is only taken off the consumer when a worker is free.
	jobsChan := make(chan *domain.SubmissionMessage)

	// Initialize AMQP consumer
	consumer, err := amqpdelivery.NewConsumer(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue, cfg.Worker.PoolSize, jobsChan, logger)
	if err != nil {
		logger.Fatal("Failed to initialize AMQP consumer", zap.Error(err))
	}
	defer consumer.Close()
	logger.Info("Connected to RabbitMQ", zap.String("queue", cfg.RabbitMQ.Queue))

	// Start worker pool
	workerPool := pool.NewWorkerPool(cfg.Worker.PoolSize, jobsChan, processUC, logger)
	workerPool.Start(ctx)

	// Start AMQP consumer in a goroutine
	go func() {
		if err := consumer.Start(ctx); err != nil {
			logger.Error("AMQP consumer error", zap.Error(err))
			cancel()
		}
	}()

	// Start Prometheus metrics server
	metricsSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Worker.MetricsPort),
		ReadHeaderTimeout: 5 * time.Second,
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsSrv.Handler = mux
	go func() {
		logger.Info("Metrics server listening", zap.String("addr", metricsSrv.Addr))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	logger.Info("Shutting down worker...")
	cancel()

	// Wait for workers to finish in-flight submissions
	workerPool.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = metricsSrv.Shutdown(shutdownCtx)

	logger.Info("Worker stopped")
}
