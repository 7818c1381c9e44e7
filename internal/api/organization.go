package api

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/petrelay/petrelay/internal/middleware"
	"github.com/petrelay/petrelay/internal/repository"
	"go.uber.org/zap"
)

type OrganizationHandler struct {
	repo   repository.OrganizationRepository
	logger *zap.Logger
}

func NewOrganizationHandler(repo repository.OrganizationRepository, logger *zap.Logger) *OrganizationHandler {
	return &OrganizationHandler{repo: repo, logger: logger}
}

// Get handles GET /v1/organization
func (h *OrganizationHandler) Get(c *gin.Context) {
	orgID := middleware.GetOrgID(c)

	org, err := h.repo.GetByID(c.Request.Context(), orgID)
	if err != nil {
		h.logger.Error("failed to get organization", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get organization"})
		return
	}
	if org == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "organization not found"})
		return
	}

	c.JSON(http.StatusOK, org)
}

type updateSettingsRequest struct {
	Settings json.RawMessage `json:"settings" binding:"required"`
}

// UpdateSettings handles PATCH /v1/organization/settings, replacing the
// settings sub-record wholesale.
func (h *OrganizationHandler) UpdateSettings(c *gin.Context) {
	var req updateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !json.Valid(req.Settings) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "settings must be valid JSON"})
		return
	}

	orgID := middleware.GetOrgID(c)
	org, err := h.repo.UpdateSettings(c.Request.Context(), orgID, req.Settings)
	if err != nil {
		h.logger.Error("failed to update settings", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update settings"})
		return
	}
	if org == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "organization not found"})
		return
	}

	c.JSON(http.StatusOK, org)
}
