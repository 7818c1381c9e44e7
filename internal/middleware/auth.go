package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/petrelay/petrelay/internal/auth"
	"github.com/petrelay/petrelay/internal/repository"
)

// Context keys for claims stored in gin.Context. Constants so a typo fails
// to compile instead of silently returning nil.
const (
	ContextKeyUserID = "user_id"
	ContextKeyOrgID  = "organization_id"
	ContextKeyEmail  = "email"
)

// AuthMiddleware validates the Bearer JWT and stores the claims in the
// request context. Invalid or missing tokens abort with 401 before any
// handler runs.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing authorization header",
			})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid authorization format, expected: Bearer <token>",
			})
			return
		}

		claims, err := auth.ParseToken(parts[1], secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid or expired token",
			})
			return
		}

		c.Set(ContextKeyUserID, claims.UserID)
		c.Set(ContextKeyOrgID, claims.OrganizationID)
		c.Set(ContextKeyEmail, claims.Email)

		c.Next()
	}
}

// OwnerGate is the extra fence in front of the queue admin surface: on top
// of a valid JWT, the caller's own phone number must be an active authorized
// owner number of their organization. Operational tooling is for staff, not
// every dashboard login.
func OwnerGate(users repository.UserRepository, owners repository.OwnerNumberRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID := GetOrgID(c)
		userID := GetUserID(c)

		user, err := users.GetByID(c.Request.Context(), orgID, userID)
		if err != nil || user == nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "not a member of this organization",
			})
			return
		}
		if user.PhoneNumber == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "no phone number registered for this account",
			})
			return
		}

		isOwner, err := owners.IsActiveOwner(c.Request.Context(), orgID, user.PhoneNumber)
		if err != nil || !isOwner {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "queue admin requires an authorized owner number",
			})
			return
		}

		c.Next()
	}
}

func GetUserID(c *gin.Context) uuid.UUID {
	val, exists := c.Get(ContextKeyUserID)
	if !exists {
		return uuid.Nil
	}
	id, ok := val.(uuid.UUID)
	if !ok {
		return uuid.Nil
	}
	return id
}

func GetOrgID(c *gin.Context) uuid.UUID {
	val, exists := c.Get(ContextKeyOrgID)
	if !exists {
		return uuid.Nil
	}
	id, ok := val.(uuid.UUID)
	if !ok {
		return uuid.Nil
	}
	return id
}

func GetEmail(c *gin.Context) string {
	val, exists := c.Get(ContextKeyEmail)
	if !exists {
		return ""
	}
	email, ok := val.(string)
	if !ok {
		return ""
	}
	return email
}
