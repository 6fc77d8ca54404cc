package http

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hrishabh6/algocrack/internal/delivery/http/middleware"
	"github.com/hrishabh6/algocrack/internal/repository"
	"github.com/hrishabh6/algocrack/internal/usecase"
)

// maxBodyBytes leaves room for JSON escaping around the 1 MB source limit.
const maxBodyBytes = 2 << 20

// RouterDeps groups everything the HTTP layer needs.
type RouterDeps struct {
	SubmitUC   *usecase.SubmitCodeUsecase
	GetSubUC   *usecase.GetSubmissionUsecase
	GetStatsUC *usecase.GetQuestionStatisticsUsecase
	Events     repository.StatusEvents
	Logger     *zap.Logger

	RateLimitPerMin int
	StreamPoll      time.Duration
	HealthChecks    map[string]HealthCheck
}

// NewRouter creates and configures the Gin router with all routes and middleware.
// ctx bounds background work started by middleware.
func NewRouter(ctx context.Context, deps *RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS())
	router.Use(middleware.Logger(deps.Logger))

	// Metrics endpoint (no rate limiting)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 group
	v1 := router.Group("/api/v1")
	{
		// Health check (no rate limiting)
		healthHandler := NewHealthHandler(deps.HealthChecks, deps.Logger)
		v1.GET("/health", healthHandler.Health)

		// Languages
		langHandler := NewLanguageHandler()
		v1.GET("/languages", langHandler.List)

		// Submissions
		subHandler := NewSubmissionHandler(deps.SubmitUC, deps.GetSubUC, deps.Logger)
		v1.POST("/submissions",
			middleware.RateLimiter(ctx, deps.RateLimitPerMin),
			middleware.BodySizeLimit(maxBodyBytes),
			subHandler.Submit,
		)
		v1.GET("/submissions/:id", subHandler.GetByID)

		// WebSocket for real-time updates
		wsHandler := NewWebSocketHandler(deps.GetSubUC, deps.Events, deps.StreamPoll, deps.Logger)
		v1.GET("/submissions/:id/stream", wsHandler.Stream)

		// Question statistics
		statsHandler := NewStatisticsHandler(deps.GetStatsUC, deps.Logger)
		v1.GET("/questions/:id/statistics", statsHandler.Get)
	}

	return router
}
