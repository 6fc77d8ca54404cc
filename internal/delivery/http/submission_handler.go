package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hrishabh6/algocrack/internal/domain"
	"github.com/hrishabh6/algocrack/internal/usecase"
)

const userIDHeader = "X-User-ID"

// SubmissionHandler handles HTTP requests for code submissions.
type SubmissionHandler struct {
	submitUC *usecase.SubmitCodeUsecase
	getSubUC *usecase.GetSubmissionUsecase
	logger   *zap.Logger
}

// NewSubmissionHandler creates a new SubmissionHandler.
func NewSubmissionHandler(submitUC *usecase.SubmitCodeUsecase, getSubUC *usecase.GetSubmissionUsecase, logger *zap.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		submitUC: submitUC,
		getSubUC: getSubUC,
		logger:   logger,
	}
}

// Submit handles POST /api/v1/submissions
func (h *SubmissionHandler) Submit(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body: " + err.Error(),
		})
		return
	}
	if req.UserID == "" {
		req.UserID = c.GetHeader(userIDHeader)
	}

	sub, err := h.submitUC.Execute(c.Request.Context(), &usecase.SubmitRequest{
		UserID:     req.UserID,
		QuestionID: req.QuestionID,
		Language:   req.Language,
		Code:       req.Code,
		Mode:       req.Mode,
		IPAddress:  c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
	})
	if err != nil {
		var verr *domain.ValidationError
		switch {
		case errors.As(err, &verr):
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "field": verr.Field})
		case errors.Is(err, domain.ErrEmptySourceCode):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, domain.ErrPayloadTooLarge):
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
		case errors.Is(err, domain.ErrQuestionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Question not found"})
		case errors.Is(err, domain.ErrPublishFailed):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Service temporarily unavailable"})
		default:
			h.logger.Error("Submit code failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}

	c.JSON(http.StatusAccepted, SubmitResponse{
		SubmissionID: sub.SubmissionID,
		Status:       sub.Status,
		QueuedAt:     sub.QueuedAt,
	})
}

// GetByID handles GET /api/v1/submissions/:id
func (h *SubmissionHandler) GetByID(c *gin.Context) {
	idStr := c.Param("id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid submission ID format"})
		return
	}

	sub, err := h.getSubUC.Execute(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrSubmissionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Submission not found"})
			return
		}
		h.logger.Error("Get submission failed", zap.Error(err), zap.String("submission_id", idStr))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, sub)
}
