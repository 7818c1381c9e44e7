package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/petrelay/petrelay/internal/middleware"
	"github.com/petrelay/petrelay/internal/repository"
	"go.uber.org/zap"
)

type PetHandler struct {
	pets     repository.PetRepository
	contacts repository.ContactRepository
	logger   *zap.Logger
}

func NewPetHandler(pets repository.PetRepository, contacts repository.ContactRepository, logger *zap.Logger) *PetHandler {
	return &PetHandler{pets: pets, contacts: contacts, logger: logger}
}

type createPetRequest struct {
	Name    string `json:"name" binding:"required"`
	Species string `json:"species"`
	Breed   string `json:"breed"`
	Notes   string `json:"notes"`
}

// Create handles POST /v1/contacts/:id/pets
func (h *PetHandler) Create(c *gin.Context) {
	contactID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contact id"})
		return
	}

	var req createPetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	orgID := middleware.GetOrgID(c)

	// The contact must exist in this organization before a pet hangs off it.
	contact, err := h.contacts.GetByID(c.Request.Context(), orgID, contactID)
	if err != nil {
		h.logger.Error("failed to get contact", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create pet"})
		return
	}
	if contact == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "contact not found"})
		return
	}

	pet, err := h.pets.Create(c.Request.Context(), orgID, contactID, req.Name, req.Species, req.Breed, req.Notes)
	if err != nil {
		h.logger.Error("failed to create pet", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create pet"})
		return
	}

	c.JSON(http.StatusCreated, pet)
}

// ListByContact handles GET /v1/contacts/:id/pets
func (h *PetHandler) ListByContact(c *gin.Context) {
	contactID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contact id"})
		return
	}

	orgID := middleware.GetOrgID(c)
	pets, err := h.pets.ListByContact(c.Request.Context(), orgID, contactID)
	if err != nil {
		h.logger.Error("failed to list pets", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list pets"})
		return
	}

	c.JSON(http.StatusOK, pets)
}

// Deactivate handles DELETE /v1/pets/:id; soft-delete, the row stays.
func (h *PetHandler) Deactivate(c *gin.Context) {
	petID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid pet id"})
		return
	}

	orgID := middleware.GetOrgID(c)
	if err := h.pets.Deactivate(c.Request.Context(), orgID, petID); err != nil {
		h.logger.Error("failed to deactivate pet", zap.Error(err))
		c.JSON(http.StatusNotFound, gin.H{"error": "pet not found"})
		return
	}

	c.Status(http.StatusNoContent)
}
