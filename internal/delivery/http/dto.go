package http

import (
	"time"

	"github.com/google/uuid"

	"github.com/hrishabh6/algocrack/internal/domain"
)

// SubmitRequest is the body of POST /api/v1/submissions.
type SubmitRequest struct {
	UserID     string          `json:"user_id"`
	QuestionID int64           `json:"question_id" binding:"required"`
	Language   domain.Language `json:"language" binding:"required"`
	Code       string          `json:"code" binding:"required"`
	Mode       domain.Mode     `json:"mode"`
}

// SubmitResponse is returned when a submission has been queued.
type SubmitResponse struct {
	SubmissionID uuid.UUID               `json:"submission_id"`
	Status       domain.SubmissionStatus `json:"status"`
	QueuedAt     time.Time               `json:"queued_at"`
}

// StatisticsResponse adds the derived acceptance rate to the stored aggregate.
type StatisticsResponse struct {
	*domain.QuestionStatistics
	AcceptanceRate float64 `json:"acceptance_rate"`
}

// LanguageInfo describes a language the judge can run.
type LanguageInfo struct {
	Name     domain.Language `json:"name"`
	Version  string          `json:"version"`
	Compiler string          `json:"compiler,omitempty"`
}
