package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/hrishabh6/algocrack/internal/domain"
	"github.com/hrishabh6/algocrack/internal/usecase"
)

// StatisticsHandler serves per-question aggregates.
type StatisticsHandler struct {
	getStatsUC *usecase.GetQuestionStatisticsUsecase
	logger     *zap.Logger
}

// NewStatisticsHandler creates a new StatisticsHandler.
func NewStatisticsHandler(getStatsUC *usecase.GetQuestionStatisticsUsecase, logger *zap.Logger) *StatisticsHandler {
	return &StatisticsHandler{getStatsUC: getStatsUC, logger: logger}
}

// Get handles GET /api/v1/questions/:id/statistics
func (h *StatisticsHandler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid question ID"})
		return
	}

	stats, err := h.getStatsUC.Execute(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrQuestionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Question not found"})
			return
		}
		h.logger.Error("Get statistics failed", zap.Error(err), zap.Int64("question_id", id))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, StatisticsResponse{
		QuestionStatistics: stats,
		AcceptanceRate:     stats.AcceptanceRate(),
	})
}
