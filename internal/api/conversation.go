package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/petrelay/petrelay/internal/middleware"
	"github.com/petrelay/petrelay/internal/repository"
	"go.uber.org/zap"
)

type ConversationHandler struct {
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	logger        *zap.Logger
}

func NewConversationHandler(
	conversations repository.ConversationRepository,
	messages repository.MessageRepository,
	logger *zap.Logger,
) *ConversationHandler {
	return &ConversationHandler{
		conversations: conversations,
		messages:      messages,
		logger:        logger,
	}
}

// List handles GET /v1/conversations, most recently active first.
func (h *ConversationHandler) List(c *gin.Context) {
	orgID := middleware.GetOrgID(c)

	conversations, err := h.conversations.ListByOrganization(c.Request.Context(), orgID)
	if err != nil {
		h.logger.Error("failed to list conversations", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list conversations"})
		return
	}

	c.JSON(http.StatusOK, conversations)
}

// ListMessages handles GET /v1/conversations/:id/messages?before=123&limit=50
//
// Cursor pagination: "before" is a message ID ("give me messages older than
// this"), 0 means start from the latest. Limit defaults to 50, capped at 100.
func (h *ConversationHandler) ListMessages(c *gin.Context) {
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}

	orgID := middleware.GetOrgID(c)

	conversation, err := h.conversations.GetByID(c.Request.Context(), orgID, conversationID)
	if err != nil {
		h.logger.Error("failed to get conversation", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get conversation"})
		return
	}
	if conversation == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	}

	var before int64
	if b := c.Query("before"); b != "" {
		before, err = strconv.ParseInt(b, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'before' parameter"})
			return
		}
	}

	limit := 50
	if l := c.Query("limit"); l != "" {
		limit, err = strconv.Atoi(l)
		if err != nil || limit < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'limit' parameter"})
			return
		}
		if limit > 100 {
			limit = 100
		}
	}

	messages, err := h.messages.ListByConversation(c.Request.Context(), orgID, conversationID, before, limit)
	if err != nil {
		h.logger.Error("failed to list messages", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list messages"})
		return
	}

	c.JSON(http.StatusOK, messages)
}
