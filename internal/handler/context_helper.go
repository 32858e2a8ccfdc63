package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/aabhi25/chronalive/internal/middleware"
	"github.com/aabhi25/chronalive/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

func actorFromContext(c *gin.Context) (userID, schoolID string) {
	if claims := claimsFromContext(c); claims != nil {
		return claims.UserID, claims.SchoolID
	}
	return "", ""
}
