package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aabhi25/chronalive/internal/models"
	appErrors "github.com/aabhi25/chronalive/pkg/errors"
)

// Envelope represents the common response contract.
type Envelope struct {
	Data       interface{}                `json:"data,omitempty"`
	Error      *appErrors.Error           `json:"error,omitempty"`
	Conflicts  []models.TimetableConflict `json:"conflicts,omitempty"`
	Pagination *models.Pagination         `json:"pagination,omitempty"`
	Meta       map[string]interface{}     `json:"meta,omitempty"`
}

// JSON sends a success response with optional pagination metadata.
func JSON(c *gin.Context, status int, data interface{}, pagination *models.Pagination, meta ...map[string]interface{}) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	envelope := Envelope{Data: data, Pagination: pagination}
	if len(meta) > 0 && meta[0] != nil {
		envelope.Meta = meta[0]
	}
	c.JSON(status, envelope)
}

// Created responds with HTTP 201 Created.
func Created(c *gin.Context, data interface{}) {
	JSON(c, http.StatusCreated, data, nil)
}

// Error sends an error response converting the error to the common structure.
// Conflict lists carried by a TimetableConflictError are surfaced verbatim so
// clients can render day/period/competing-class detail without re-deriving it.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	envelope := Envelope{Error: appErr}

	var conflictErr *models.TimetableConflictError
	if errors.As(err, &conflictErr) {
		appErr = appErrors.Clone(appErrors.ErrConflict, conflictErr.Message)
		envelope.Error = appErr
		envelope.Conflicts = conflictErr.Conflicts
	}

	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.JSON(appErr.Status, envelope)
}

// NoContent sends a 204 response.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
