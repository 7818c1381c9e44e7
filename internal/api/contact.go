package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/petrelay/petrelay/internal/middleware"
	"github.com/petrelay/petrelay/internal/repository"
	"go.uber.org/zap"
)

type ContactHandler struct {
	repo   repository.ContactRepository
	logger *zap.Logger
}

func NewContactHandler(repo repository.ContactRepository, logger *zap.Logger) *ContactHandler {
	return &ContactHandler{repo: repo, logger: logger}
}

type createContactRequest struct {
	PhoneNumber string `json:"phone_number" binding:"required"`
	Name        string `json:"name"`
}

// Create handles POST /v1/contacts, the manual path; most contacts are
// created lazily by the worker on first inbound message.
func (h *ContactHandler) Create(c *gin.Context) {
	var req createContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	orgID := middleware.GetOrgID(c)

	existing, err := h.repo.GetByPhone(c.Request.Context(), orgID, req.PhoneNumber)
	if err != nil {
		h.logger.Error("failed to check existing contact", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create contact"})
		return
	}
	if existing != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "contact already exists"})
		return
	}

	contact, err := h.repo.Create(c.Request.Context(), orgID, req.PhoneNumber, req.Name)
	if err != nil {
		h.logger.Error("failed to create contact", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create contact"})
		return
	}

	c.JSON(http.StatusCreated, contact)
}

// List handles GET /v1/contacts
func (h *ContactHandler) List(c *gin.Context) {
	orgID := middleware.GetOrgID(c)

	contacts, err := h.repo.ListByOrganization(c.Request.Context(), orgID)
	if err != nil {
		h.logger.Error("failed to list contacts", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list contacts"})
		return
	}

	c.JSON(http.StatusOK, contacts)
}

// GetByID handles GET /v1/contacts/:id
func (h *ContactHandler) GetByID(c *gin.Context) {
	contactID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contact id"})
		return
	}

	orgID := middleware.GetOrgID(c)
	contact, err := h.repo.GetByID(c.Request.Context(), orgID, contactID)
	if err != nil {
		h.logger.Error("failed to get contact", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get contact"})
		return
	}
	if contact == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "contact not found"})
		return
	}

	c.JSON(http.StatusOK, contact)
}
