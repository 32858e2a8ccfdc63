package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aabhi25/chronalive/internal/models"
	"github.com/aabhi25/chronalive/internal/repository"
)

// Audit creates middleware that records an audit trail entry after successful requests.
// Services write richer domain audits for the operations they own; this covers the
// request envelope (who called what, from where).
func Audit(repo *repository.AuditRepository, action, entityType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now().UTC()
		c.Next()

		if c.Writer.Status() >= 400 {
			return
		}

		var userID *string
		var schoolID string
		if claims, ok := CurrentClaims(c); ok {
			userID = &claims.UserID
			schoolID = claims.SchoolID
		}

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		_ = repo.CreateAuditLog(c.Request.Context(), &models.AuditLog{
			UserID:      userID,
			SchoolID:    schoolID,
			Action:      action,
			EntityType:  entityType,
			Description: fmt.Sprintf("%s %s -> %d in %dms", c.Request.Method, path, c.Writer.Status(), time.Since(start).Milliseconds()),
			IPAddress:   c.ClientIP(),
			UserAgent:   c.GetHeader("User-Agent"),
		})
	}
}
