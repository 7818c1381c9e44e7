package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/petrelay/petrelay/internal/queue"
	"github.com/petrelay/petrelay/internal/worker"
	"go.uber.org/zap"
)

// WebhookHandler receives inbound messages from the WhatsApp session gateway
// and puts them on the message queue. The gateway authenticates with the
// shared token, not a user JWT.
type WebhookHandler struct {
	manager     *queue.Manager
	maxAttempts int
	token       string
	logger      *zap.Logger
}

func NewWebhookHandler(manager *queue.Manager, maxAttempts int, token string, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		manager:     manager,
		maxAttempts: maxAttempts,
		token:       token,
		logger:      logger,
	}
}

type inboundWebhookRequest struct {
	OrganizationID string `json:"organizationId" binding:"required,uuid"`
	InstanceID     string `json:"instanceId" binding:"required"`
	From           string `json:"from" binding:"required"`
	Content        string `json:"content" binding:"required"`
}

// Inbound handles POST /v1/webhooks/inbound
func (h *WebhookHandler) Inbound(c *gin.Context) {
	if !h.authorized(c) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid gateway token"})
		return
	}

	var req inboundWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	jobID, err := h.manager.Enqueue(c.Request.Context(), queue.QueueMessages, worker.InboundMessage{
		OrganizationID: req.OrganizationID,
		InstanceID:     req.InstanceID,
		From:           req.From,
		Content:        req.Content,
	}, h.maxAttempts)
	if err != nil {
		h.logger.Error("failed to enqueue inbound message", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue message"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"job_id": jobID})
}

func (h *WebhookHandler) authorized(c *gin.Context) bool {
	if h.token == "" {
		// No token configured: open webhook (development only).
		return true
	}
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(parts[1]), []byte(h.token)) == 1
}
