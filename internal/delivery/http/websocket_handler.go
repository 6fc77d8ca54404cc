package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/hrishabh6/algocrack/internal/domain"
	"github.com/hrishabh6/algocrack/internal/repository"
	"github.com/hrishabh6/algocrack/internal/usecase"
)

const (
	defaultPollInterval = 2 * time.Second
	writeTimeout        = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development; restrict in production
	},
}

// WebSocketHandler streams submission status until the submission is terminal.
// It pushes on every status event and polls as a fallback for missed events.
type WebSocketHandler struct {
	getSubUC     *usecase.GetSubmissionUsecase
	events       repository.StatusEvents
	pollInterval time.Duration
	logger       *zap.Logger
}

// NewWebSocketHandler creates a new WebSocketHandler. events may be nil, in which
// case the handler only polls.
func NewWebSocketHandler(getSubUC *usecase.GetSubmissionUsecase, events repository.StatusEvents, pollInterval time.Duration, logger *zap.Logger) *WebSocketHandler {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &WebSocketHandler{
		getSubUC:     getSubUC,
		events:       events,
		pollInterval: pollInterval,
		logger:       logger,
	}
}

// Stream handles GET /api/v1/submissions/:id/stream (WebSocket upgrade)
func (h *WebSocketHandler) Stream(c *gin.Context) {
	idStr := c.Param("id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid submission ID format"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	h.logger.Debug("WebSocket connection opened", zap.String("submission_id", idStr))

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// The client never sends anything meaningful; reading only detects disconnects.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	var updates <-chan domain.StatusEvent
	if h.events != nil {
		ch, stop, err := h.events.Subscribe(ctx, id)
		if err != nil {
			h.logger.Warn("Status event subscription failed, polling only", zap.Error(err), zap.String("submission_id", idStr))
		} else {
			defer stop()
			updates = ch
		}
	}

	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	var lastStatus domain.SubmissionStatus
	for {
		sub, err := h.getSubUC.Execute(ctx, id)
		if err != nil {
			msg := "Internal server error"
			if errors.Is(err, domain.ErrSubmissionNotFound) {
				msg = "Submission not found"
			}
			h.write(conn, gin.H{"error": msg})
			return
		}

		if sub.Status != lastStatus {
			if err := h.write(conn, sub); err != nil {
				h.logger.Debug("WebSocket write failed (client disconnected)", zap.Error(err))
				return
			}
			lastStatus = sub.Status
		}

		// Stop streaming once the submission reaches a terminal state
		if sub.Status.IsTerminal() {
			h.logger.Debug("Submission reached terminal state, closing WebSocket", zap.String("submission_id", idStr))
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"),
				time.Now().Add(writeTimeout))
			return
		}

		select {
		case <-ctx.Done():
			return
		case _, ok := <-updates:
			if !ok {
				updates = nil
			}
		case <-ticker.C:
		}
	}
}

func (h *WebSocketHandler) write(conn *websocket.Conn, v any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(v)
}
