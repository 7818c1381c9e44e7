package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/petrelay/petrelay/internal/middleware"
	"github.com/petrelay/petrelay/internal/repository"
	"go.uber.org/zap"
)

type OwnerNumberHandler struct {
	repo   repository.OwnerNumberRepository
	logger *zap.Logger
}

func NewOwnerNumberHandler(repo repository.OwnerNumberRepository, logger *zap.Logger) *OwnerNumberHandler {
	return &OwnerNumberHandler{repo: repo, logger: logger}
}

// Role is advisory only: validated here, never enforced downstream.
var validOwnerRoles = map[string]bool{
	"owner":   true,
	"manager": true,
	"admin":   true,
}

type registerOwnerNumberRequest struct {
	PhoneNumber string `json:"phone_number" binding:"required"`
	Name        string `json:"name"`
	Role        string `json:"role"`
}

// Register handles POST /v1/owner-numbers
func (h *OwnerNumberHandler) Register(c *gin.Context) {
	var req registerOwnerNumberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Role == "" {
		req.Role = "owner"
	}
	if !validOwnerRoles[req.Role] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "role must be one of: owner, manager, admin"})
		return
	}

	orgID := middleware.GetOrgID(c)
	number, err := h.repo.Register(c.Request.Context(), orgID, req.PhoneNumber, req.Name, req.Role)
	if err != nil {
		h.logger.Error("failed to register owner number", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register owner number"})
		return
	}

	c.JSON(http.StatusCreated, number)
}

// List handles GET /v1/owner-numbers
func (h *OwnerNumberHandler) List(c *gin.Context) {
	orgID := middleware.GetOrgID(c)

	numbers, err := h.repo.ListByOrganization(c.Request.Context(), orgID)
	if err != nil {
		h.logger.Error("failed to list owner numbers", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list owner numbers"})
		return
	}

	c.JSON(http.StatusOK, numbers)
}

// Deactivate handles DELETE /v1/owner-numbers/:id. The row is kept with
// is_active=false; allow-list entries are never hard-deleted.
func (h *OwnerNumberHandler) Deactivate(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid owner number id"})
		return
	}

	orgID := middleware.GetOrgID(c)
	if err := h.repo.Deactivate(c.Request.Context(), orgID, id); err != nil {
		h.logger.Error("failed to deactivate owner number", zap.Error(err))
		c.JSON(http.StatusNotFound, gin.H{"error": "owner number not found"})
		return
	}

	c.Status(http.StatusNoContent)
}
