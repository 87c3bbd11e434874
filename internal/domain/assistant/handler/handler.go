// Package handler exposes the grounded assistant over HTTP.
package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/FACorreiaa/radiology-revenue-tracker/internal/domain/assistant"
	"github.com/FACorreiaa/radiology-revenue-tracker/internal/domain/common"
)

// Assistant is the model client used by the handler.
type Assistant interface {
	Ask(ctx context.Context, query string) (*assistant.Answer, error)
	Speak(ctx context.Context, text string) (*assistant.Speech, error)
}

// AssistantHandler serves /assistant routes.
type AssistantHandler struct {
	client Assistant // nil when no API key is configured
	logger *slog.Logger
}

// NewAssistantHandler constructs the handler. A nil client answers every
// request with a not-configured error.
func NewAssistantHandler(client Assistant, logger *slog.Logger) *AssistantHandler {
	return &AssistantHandler{client: client, logger: logger}
}

// RegisterRoutes mounts the assistant routes.
func (h *AssistantHandler) RegisterRoutes(r *gin.RouterGroup) {
	g := r.Group("/assistant")
	g.POST("/ask", h.Ask)
	g.POST("/speech", h.Speech)
}

type askRequest struct {
	Query string `json:"query"`
}

// Ask answers a question grounded on web search results.
func (h *AssistantHandler) Ask(c *gin.Context) {
	if h.client == nil {
		h.writeError(c, fmt.Errorf("%w: assistant", common.ErrNotConfigured))
		return
	}

	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, fmt.Errorf("%w: %w", common.ErrInvalidRequest, err))
		return
	}

	answer, err := h.client.Ask(c.Request.Context(), req.Query)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, answer)
}

type speechRequest struct {
	Text string `json:"text"`
}

// Speech reads a short text aloud.
func (h *AssistantHandler) Speech(c *gin.Context) {
	if h.client == nil {
		h.writeError(c, fmt.Errorf("%w: assistant", common.ErrNotConfigured))
		return
	}

	var req speechRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, fmt.Errorf("%w: %w", common.ErrInvalidRequest, err))
		return
	}

	speech, err := h.client.Speak(c.Request.Context(), req.Text)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, speech)
}

func (h *AssistantHandler) writeError(c *gin.Context, err error) {
	status := common.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Warn("assistant request failed", slog.Any("error", err))
	}
	c.AbortWithStatusJSON(status, gin.H{"error": common.UserMessage(err)})
}
