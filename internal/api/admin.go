package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/petrelay/petrelay/internal/queue"
	"go.uber.org/zap"
)

// AdminHandler is the queue monitoring surface mounted under /admin/queues.
// Routing-wise it sits behind AuthMiddleware plus the OwnerGate: JWT,
// organization membership, and an active authorized owner number.
type AdminHandler struct {
	manager     *queue.Manager
	maxAttempts int
	logger      *zap.Logger
}

func NewAdminHandler(manager *queue.Manager, maxAttempts int, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{manager: manager, maxAttempts: maxAttempts, logger: logger}
}

// Counts handles GET /admin/queues
func (h *AdminHandler) Counts(c *gin.Context) {
	counts, err := h.manager.Counts(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to get queue counts", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get queue counts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"queues": counts})
}

// DeadLetters handles GET /admin/queues/dead-letter?limit=50
func (h *AdminHandler) DeadLetters(c *gin.Context) {
	limit := int64(50)
	if l := c.Query("limit"); l != "" {
		n, err := strconv.ParseInt(l, 10, 64)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'limit' parameter"})
			return
		}
		limit = n
	}

	letters, err := h.manager.DeadLetters(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list dead letters", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list dead letters"})
		return
	}

	c.JSON(http.StatusOK, letters)
}

// RetryDeadLetter handles POST /admin/queues/dead-letter/:id/retry, the
// manual replay path; nothing reprocesses dead letters automatically.
func (h *AdminHandler) RetryDeadLetter(c *gin.Context) {
	jobID := c.Param("id")
	if jobID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing job id"})
		return
	}

	if err := h.manager.RetryDeadLetter(c.Request.Context(), jobID, h.maxAttempts); err != nil {
		h.logger.Warn("dead letter retry failed", zap.String("job_id", jobID), zap.Error(err))
		c.JSON(http.StatusNotFound, gin.H{"error": "dead letter not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "requeued"})
}
