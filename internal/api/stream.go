package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/petrelay/petrelay/internal/middleware"
	"github.com/petrelay/petrelay/internal/ws"
	"go.uber.org/zap"
)

// StreamHandler upgrades dashboard clients onto the live message feed.
type StreamHandler struct {
	hub    *ws.Hub
	logger *zap.Logger
}

func NewStreamHandler(hub *ws.Hub, logger *zap.Logger) *StreamHandler {
	return &StreamHandler{hub: hub, logger: logger}
}

// Connect handles GET /v1/stream. AuthMiddleware has already validated the
// JWT, so the organization comes from the claims; a client only ever joins
// its own room.
func (h *StreamHandler) Connect(c *gin.Context) {
	orgID := middleware.GetOrgID(c)

	if err := h.hub.HandleConnection(c.Writer, c.Request, orgID); err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "websocket upgrade failed"})
		return
	}
}
