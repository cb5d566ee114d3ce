package genai

import (
	"net/http"

	apierrors "github.com/aipro/chat-backend/internal/errors"
	"github.com/aipro/chat-backend/internal/logger"
	"github.com/gin-gonic/gin"
)

// Handler serves the direct generation endpoint.
type Handler struct {
	service *Service
	logger  *logger.Logger
}

// NewHandler creates a new generation handler.
func NewHandler(service *Service, logger *logger.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger.WithComponent("genai-handler"),
	}
}

// Generate handles POST /generate: one-shot content generation without
// conversation persistence.
func (h *Handler) Generate(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.AbortWithBadRequest(c, "Invalid request body")
		return
	}

	result, err := h.service.Generate(c.Request.Context(), req.Contents, req.Model)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, GenerateResponse{
		Success:   true,
		Text:      result.Text,
		Model:     result.Model,
		Attempt:   result.Attempt,
		Timestamp: result.Timestamp,
	})
}
