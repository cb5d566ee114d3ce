package conversation

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	apierrors "github.com/aipro/chat-backend/internal/errors"
	"github.com/aipro/chat-backend/internal/genai"
	"github.com/aipro/chat-backend/internal/logger"
	"github.com/gin-gonic/gin"
)

const defaultPageSize = 20

// Handler serves the chat and conversation endpoints.
type Handler struct {
	service *Service
	store   Store
	logger  *logger.Logger
}

// NewHandler creates a new conversation handler.
func NewHandler(service *Service, store Store, logger *logger.Logger) *Handler {
	return &Handler{
		service: service,
		store:   store,
		logger:  logger.WithComponent("conversation-handler"),
	}
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId"`
	SessionID      string `json:"sessionId"`
	Model          string `json:"model"`
}

// MessageResponse is the wire shape of one message.
type MessageResponse struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// Pagination is the pagination block of list and search responses.
type Pagination struct {
	Current int  `json:"current"`
	Total   int  `json:"total"`
	HasNext bool `json:"hasNext"`
	HasPrev bool `json:"hasPrev"`
}

// SendMessage handles POST /chat. The model whitelist is validated here,
// identically to /generate, before any conversation state is touched.
func (h *Handler) SendMessage(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.AbortWithBadRequest(c, "Invalid request body")
		return
	}

	if strings.TrimSpace(req.Message) == "" {
		apierrors.AbortWithBadRequest(c, "Message must be a non-empty string")
		return
	}

	if req.Model != "" && !genai.IsValidModel(req.Model) {
		apierrors.Respond(c, apierrors.New(apierrors.KindInvalidModel,
			fmt.Sprintf("Invalid model. Supported models: %s", strings.Join(genai.ValidModels(), ", "))))
		return
	}

	ctx := c.Request.Context()
	if req.SessionID != "" {
		ctx = logger.WithSessionID(ctx, req.SessionID)
	}

	out, err := h.service.SendMessage(ctx, SendMessageInput{
		Text:           req.Message,
		ConversationID: req.ConversationID,
		SessionID:      req.SessionID,
		Model:          req.Model,
	})
	if err != nil {
		apierrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"conversationId": out.ConversationID,
		"sessionId":      out.SessionID,
		"message": MessageResponse{
			Role:      out.AssistantMessage.Role,
			Content:   out.AssistantMessage.Content,
			Timestamp: out.AssistantMessage.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"),
		},
		"conversationTitle": out.ConversationTitle,
	})
}

// ListConversations handles GET /conversations.
func (h *Handler) ListConversations(c *gin.Context) {
	page, limit := pageParams(c)

	conversations, total, err := h.store.List(c.Request.Context(), ListOptions{
		SessionID: c.Query("sessionId"),
		Limit:     limit,
		Skip:      (page - 1) * limit,
	})
	if err != nil {
		apierrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"conversations": conversations,
		"pagination":    paginationOf(page, limit, total),
	})
}

// SearchConversations handles GET /conversations/search. A blank query is a
// 400.
func (h *Handler) SearchConversations(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		apierrors.AbortWithBadRequest(c, "Search query is required")
		return
	}

	page, limit := pageParams(c)

	conversations, total, err := h.store.Search(c.Request.Context(), query, SearchOptions{
		Limit: limit,
		Skip:  (page - 1) * limit,
	})
	if err != nil {
		apierrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"conversations": conversations,
		"query":         query,
		"pagination":    paginationOf(page, limit, total),
	})
}

// GetConversation handles GET /conversations/:id.
func (h *Handler) GetConversation(c *gin.Context) {
	conv, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		apierrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"conversation": conv,
	})
}

// DeleteConversation handles DELETE /conversations/:id.
func (h *Handler) DeleteConversation(c *gin.Context) {
	_, err := h.store.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		apierrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Conversation deleted successfully",
	})
}

func pageParams(c *gin.Context) (page, limit int) {
	page = 1
	if parsed, err := strconv.Atoi(c.Query("page")); err == nil && parsed > 0 {
		page = parsed
	}

	limit = defaultPageSize
	if parsed, err := strconv.Atoi(c.Query("limit")); err == nil && parsed > 0 {
		limit = parsed
	}

	return page, limit
}

// paginationOf computes total page count and the prev/next flags. Total is
// at least 1 so an empty collection still reports page 1 of 1.
func paginationOf(page, limit, total int) Pagination {
	totalPages := (total + limit - 1) / limit
	if totalPages < 1 {
		totalPages = 1
	}

	return Pagination{
		Current: page,
		Total:   totalPages,
		HasNext: page < totalPages,
		HasPrev: page > 1,
	}
}
